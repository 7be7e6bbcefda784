package engine

import "taskdesk/internal/domain"

// ReferenceIssue flags a task whose by-name reference no longer resolves.
type ReferenceIssue struct {
	TaskID    string `json:"task_id"`
	TaskTitle string `json:"task_title"`
	Field     string `json:"field" enum:"client,assignee"`
	Value     string `json:"value"`
}

// CheckReferences reconciles soft references: tasks keep dangling client or
// assignee names after a rename or delete, and this pass reports them. It
// never rewrites anything; lenient entry stays the write-time contract.
func (e *Engine) CheckReferences() []ReferenceIssue {
	clients := map[string]bool{}
	for _, c := range e.Doc.Clients {
		clients[c.Name] = true
	}
	partners := map[string]bool{}
	for _, p := range e.Doc.Partners {
		partners[p.Name] = true
	}
	var issues []ReferenceIssue
	for _, t := range e.Doc.Tasks {
		if t.Client != "" && !clients[t.Client] {
			issues = append(issues, ReferenceIssue{TaskID: t.ID, TaskTitle: t.Title, Field: "client", Value: t.Client})
		}
		if t.Assignee != "" && !partners[t.Assignee] {
			issues = append(issues, ReferenceIssue{TaskID: t.ID, TaskTitle: t.Title, Field: "assignee", Value: t.Assignee})
		}
	}
	return issues
}

// Summary aggregates counts for the status command and the API.
type Summary struct {
	TasksByStatus map[string]int `json:"tasks_by_status"`
	OverdueTasks  int            `json:"overdue_tasks"`
	Clients       int            `json:"clients"`
	Partners      int            `json:"partners"`
	Seeded        bool           `json:"seeded"`
}

func (e *Engine) Summarize() Summary {
	s := Summary{
		TasksByStatus: map[string]int{},
		Clients:       len(e.Doc.Clients),
		Partners:      len(e.Doc.Partners),
		Seeded:        e.seeded,
	}
	now := e.now()
	for _, t := range e.Doc.Tasks {
		s.TasksByStatus[t.Status]++
		if t.Status != domain.StatusDone && domain.IsOverdue(t.DueDate, now) {
			s.OverdueTasks++
		}
	}
	return s
}
