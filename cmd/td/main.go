package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdesk/internal/config"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/server"
	"taskdesk/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdesk CLI",
	Long: `Taskdesk tracks a small team's tasks and prospective clients.
- Workspace: your working directory; data lives in .taskdesk/tasks.json.
- Tasks: work items with priority, category, optional deadline, and a
  three-column status board (To Do, In Progress, Done).
- Clients: prospects moving through the sales pipeline (Lead ... Won/Lost)
  with an append-only meeting history.
- Partners: the team roster; task assignees refer to partners by name.
- Backups: each task mutation snapshots the document first; the last 10
  snapshots are kept under .taskdesk/backups.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("author", "local-user", "author recorded in the activity log")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("author", rootCmd.PersistentFlags().Lookup("author"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(partnerCmd())
	rootCmd.AddCommand(categoryCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default taskdesk.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the board at a glance",
		Long:  "Counts per status column, overdue tasks, and roster sizes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				s := e.Summarize()
				if viper.GetBool("json") {
					return printJSON(s)
				}
				for _, status := range domain.TaskStatuses {
					fmt.Printf("%-12s %d\n", status, s.TasksByStatus[status])
				}
				fmt.Printf("Overdue      %d\n", s.OverdueTasks)
				fmt.Printf("Clients      %d\n", s.Clients)
				fmt.Printf("Partners     %d\n", s.Partners)
				if s.Seeded {
					fmt.Println("(no store on disk yet; showing defaults)")
				}
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskCommentCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.Title) == "" {
				return fmt.Errorf("--title required")
			}
			if due != "" {
				opts.DueDate = &due
			}
			return withEngine(func(e *engine.Engine) error {
				t, err := e.NewTask(opts)
				if err != nil {
					return err
				}
				t = e.AddTask(t, viper.GetString("author"))
				warnSaveFailure(e)
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Assignee, "assignee", "", "partner name")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "High, Medium, or Low (default Medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category (default General)")
	cmd.Flags().StringArrayVar(&opts.Links, "link", nil, "related URL (repeatable)")
	cmd.Flags().StringVar(&opts.MeetingSummary, "meeting-summary", "", "meeting summary")
	cmd.Flags().StringVar(&opts.Client, "client", "", "client name")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var status, client, assignee string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				var tasks []domain.Task
				for _, t := range e.ListTasks() {
					if status != "" && t.Status != status {
						continue
					}
					if client != "" && t.Client != client {
						continue
					}
					if assignee != "" && t.Assignee != assignee {
						continue
					}
					tasks = append(tasks, t)
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due", "Assignee", "Client"})
				now := time.Now()
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, dueLabel(t, now), t.Assignee, t.Client})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&client, "client", "", "filter by client name")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee")
	return cmd
}

// dueLabel condenses the deadline for table output.
func dueLabel(t domain.Task, now time.Time) string {
	if t.Status == domain.StatusDone {
		return "done"
	}
	days, ok := domain.DaysUntilDue(t.DueDate, now)
	if !ok {
		return ""
	}
	switch {
	case days < 0:
		return fmt.Sprintf("overdue %dd", -days)
	case days == 0:
		return "today"
	default:
		return fmt.Sprintf("in %dd", days)
	}
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				t, ok := e.GetTask(args[0])
				if !ok {
					return fmt.Errorf("task %s not found", args[0])
				}
				return printJSON(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, assignee, priority, status, due, category, meetingSummary, client string
	var links []string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task (only the given flags change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("assignee") {
				patch.Assignee = &assignee
			}
			if cmd.Flags().Changed("priority") {
				patch.Priority = &priority
			}
			if cmd.Flags().Changed("status") {
				patch.Status = &status
			}
			if cmd.Flags().Changed("due") {
				patch.DueDate = &due
			}
			patch.ClearDueDate = clearDue
			if cmd.Flags().Changed("category") {
				patch.Category = &category
			}
			if cmd.Flags().Changed("link") {
				patch.Links = &links
			}
			if cmd.Flags().Changed("meeting-summary") {
				patch.MeetingSummary = &meetingSummary
			}
			if cmd.Flags().Changed("client") {
				patch.Client = &client
			}
			return withEngine(func(e *engine.Engine) error {
				t, err := e.UpdateTask(args[0], patch, viper.GetString("author"))
				if err != nil {
					return err
				}
				warnSaveFailure(e)
				return printJSON(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&assignee, "assignee", "", "partner name")
	cmd.Flags().StringVar(&priority, "priority", "", "High, Medium, or Low")
	cmd.Flags().StringVar(&status, "status", "", "To Do, In Progress, or Done")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringArrayVar(&links, "link", nil, "related URL (repeatable, replaces the list)")
	cmd.Flags().StringVar(&meetingSummary, "meeting-summary", "", "meeting summary")
	cmd.Flags().StringVar(&client, "client", "", "client name")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task (recoverable only via backups)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				if !e.DeleteTask(args[0], viper.GetString("author")) {
					fmt.Println("no such task; nothing deleted")
				}
				warnSaveFailure(e)
				return nil
			})
		},
	}
}

func taskCommentCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Add a comment to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" {
				return fmt.Errorf("--text required")
			}
			return withEngine(func(e *engine.Engine) error {
				c, err := e.AddComment(args[0], text, viper.GetString("author"))
				if err != nil {
					return err
				}
				warnSaveFailure(e)
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func clientCmd() *cobra.Command {
	client := &cobra.Command{
		Use:   "client",
		Short: "Manage prospective clients",
	}
	client.AddCommand(clientCreateCmd())
	client.AddCommand(clientListCmd())
	client.AddCommand(clientShowCmd())
	client.AddCommand(clientUpdateCmd())
	client.AddCommand(clientDeleteCmd())
	client.AddCommand(clientMeetingCmd())
	return client
}

func clientCreateCmd() *cobra.Command {
	var opts engine.ClientCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.Name) == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(func(e *engine.Engine) error {
				c, err := e.NewClient(opts)
				if err != nil {
					return err
				}
				c = e.AddClient(c, viper.GetString("author"))
				warnSaveFailure(e)
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "client name")
	cmd.Flags().StringVar(&opts.ContactName, "contact-name", "", "contact person")
	cmd.Flags().StringVar(&opts.ContactEmail, "contact-email", "", "contact email")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&opts.Status, "status", "", "pipeline status (default Lead)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func clientListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				var clients []domain.Client
				for _, c := range e.ListClients() {
					if status != "" && c.Status != status {
						continue
					}
					clients = append(clients, c)
				}
				if viper.GetBool("json") {
					return printJSON(clients)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Contact", "Email", "Meetings"})
				for _, c := range clients {
					tw.AppendRow(table.Row{c.ID, c.Name, c.Status, c.ContactName, c.ContactEmail, len(c.Meetings)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by pipeline status")
	return cmd
}

func clientShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				c, ok := e.GetClient(args[0])
				if !ok {
					return fmt.Errorf("client %s not found", args[0])
				}
				return printJSON(c)
			})
		},
	}
}

func clientUpdateCmd() *cobra.Command {
	var name, contactName, contactEmail, phone, notes, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a client (only the given flags change)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.ClientPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("contact-name") {
				patch.ContactName = &contactName
			}
			if cmd.Flags().Changed("contact-email") {
				patch.ContactEmail = &contactEmail
			}
			if cmd.Flags().Changed("phone") {
				patch.Phone = &phone
			}
			if cmd.Flags().Changed("notes") {
				patch.Notes = &notes
			}
			if cmd.Flags().Changed("status") {
				patch.Status = &status
			}
			return withEngine(func(e *engine.Engine) error {
				c, err := e.UpdateClient(args[0], patch, viper.GetString("author"))
				if err != nil {
					return err
				}
				warnSaveFailure(e)
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "client name (tasks keep the old name)")
	cmd.Flags().StringVar(&contactName, "contact-name", "", "contact person")
	cmd.Flags().StringVar(&contactEmail, "contact-email", "", "contact email")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&status, "status", "", "pipeline status")
	return cmd
}

func clientDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client (tasks keep their client name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				if !e.DeleteClient(args[0], viper.GetString("author")) {
					fmt.Println("no such client; nothing deleted")
				}
				warnSaveFailure(e)
				return nil
			})
		},
	}
}

func clientMeetingCmd() *cobra.Command {
	var summary, date, nextSteps string
	cmd := &cobra.Command{
		Use:   "meeting <id>",
		Short: "Record a meeting with a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if summary == "" {
				return fmt.Errorf("--summary required")
			}
			return withEngine(func(e *engine.Engine) error {
				m, err := e.AddMeeting(args[0], summary, date, nextSteps, viper.GetString("author"))
				if err != nil {
					return err
				}
				warnSaveFailure(e)
				return printJSON(m)
			})
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "what was discussed")
	cmd.Flags().StringVar(&date, "date", "", "meeting date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&nextSteps, "next-steps", "", "agreed next steps")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func partnerCmd() *cobra.Command {
	partner := &cobra.Command{
		Use:   "partner",
		Short: "Manage the partner roster",
	}
	partner.AddCommand(partnerListCmd())
	partner.AddCommand(partnerSetCmd())
	return partner
}

func partnerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List partners",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				partners := e.ListPartners()
				if viper.GetBool("json") {
					return printJSON(partners)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Email"})
				for _, p := range partners {
					tw.AppendRow(table.Row{p.Name, p.Email})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func partnerSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set name=email [name=email ...]",
		Short: "Replace the whole roster",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var partners []domain.Partner
			for _, arg := range args {
				name, email, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return fmt.Errorf("expected name=email, got %q", arg)
				}
				partners = append(partners, domain.Partner{Name: name, Email: email})
			}
			return withEngine(func(e *engine.Engine) error {
				e.ReplacePartners(partners, viper.GetString("author"))
				warnSaveFailure(e)
				return printJSON(e.ListPartners())
			})
		},
	}
}

func categoryCmd() *cobra.Command {
	category := &cobra.Command{
		Use:   "category",
		Short: "Task categories",
	}
	category.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Categories())
				}
				for _, c := range e.Categories() {
					fmt.Println(c)
				}
				return nil
			})
		},
	})
	return category
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report tasks whose client or assignee no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				issues := e.CheckReferences()
				if viper.GetBool("json") {
					return printJSON(issues)
				}
				if len(issues) == 0 {
					fmt.Println("all references resolve")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task", "Title", "Field", "Dangling value"})
				for _, is := range issues {
					tw.AppendRow(table.Row{is.TaskID, is.TaskTitle, is.Field, is.Value})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func backupCmd() *cobra.Command {
	backup := &cobra.Command{
		Use:   "backup",
		Short: "Inspect document backups",
	}
	backup.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backup snapshots, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.Store{Workspace: viper.GetString("workspace")}
			names, err := st.Backups()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(names)
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	})
	return backup
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{
		Use:   "log",
		Short: "Activity log",
	}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				evts, err := e.Events.Tail(n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				for _, evt := range evts {
					fmt.Printf("%s  %-14s %s %s %s\n", evt.TS, evt.Type, evt.EntityKind, evt.EntityID, evt.Author)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := store.EnsureWorkspace(workspace); err != nil {
				return err
			}
			e, err := engine.Open(workspace)
			if err != nil {
				return err
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Taskdesk API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(fn func(*engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	e, err := engine.Open(workspace)
	if err != nil {
		return err
	}
	return fn(e)
}

// warnSaveFailure surfaces a swallowed write failure. The mutation already
// took effect in memory, so this is a warning, not an error.
func warnSaveFailure(e *engine.Engine) {
	if err := e.LastSaveErr(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not persist %s: %v\n", store.Path(e.Store.Workspace), err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
