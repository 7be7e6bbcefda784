// Package server exposes the tracker over HTTP. The engine itself assumes a
// single writer, so every handler goes through one mutex; last-writer-wins
// saves never race within one process.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task abc: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type srv struct {
	e  *engine.Engine
	mu sync.Mutex
}

// New returns an HTTP handler exposing the taskdesk API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Taskdesk API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := &srv{e: cfg.Engine}
	registerHealth(group)
	registerSummary(group, s)
	registerTasks(group, s)
	registerClients(group, s)
	registerPartners(group, s)
	registerCategories(group, s)
	registerCheck(group, s)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "invalid") || strings.Contains(strings.ToLower(msg), "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerSummary(api huma.API, s *srv) {
	huma.Register(api, huma.Operation{
		OperationID: "summary",
		Method:      http.MethodGet,
		Path:        "/summary",
		Summary:     "Document summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Summary `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return &struct {
			Body engine.Summary `json:"body"`
		}{Body: s.e.Summarize()}, nil
	})
}

func registerTasks(api huma.API, s *srv) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Author string            `header:"X-Author"`
		Body   CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		t, err := s.e.NewTask(engine.TaskCreateOptions{
			Title:          input.Body.Title,
			Description:    stringOrEmpty(input.Body.Description),
			Assignee:       stringOrEmpty(input.Body.Assignee),
			Priority:       stringOrEmpty(input.Body.Priority),
			DueDate:        input.Body.DueDate,
			Category:       stringOrEmpty(input.Body.Category),
			Links:          input.Body.Links,
			MeetingSummary: stringOrEmpty(input.Body.MeetingSummary),
			Client:         stringOrEmpty(input.Body.Client),
		})
		if err != nil {
			return nil, handleError(err)
		}
		t = s.e.AddTask(t, input.Author)
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Client   string `query:"client"`
		Assignee string `query:"assignee"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		items := []domain.Task{}
		for _, t := range s.e.ListTasks() {
			if input.Status != "" && t.Status != input.Status {
				continue
			}
			if input.Client != "" && t.Client != input.Client {
				continue
			}
			if input.Assignee != "" && t.Assignee != input.Assignee {
				continue
			}
			items = append(items, t)
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		t, ok := s.e.GetTask(input.ID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "task "+input.ID+" not found", nil)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string            `path:"id"`
		Author string            `header:"X-Author"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		t, err := s.e.UpdateTask(input.ID, engine.TaskPatch{
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Assignee:       input.Body.Assignee,
			Priority:       input.Body.Priority,
			Status:         input.Body.Status,
			DueDate:        input.Body.DueDate,
			ClearDueDate:   input.Body.ClearDueDate,
			Category:       input.Body.Category,
			Links:          input.Body.Links,
			MeetingSummary: input.Body.MeetingSummary,
			Client:         input.Body.Client,
		}, input.Author)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Author string `header:"X-Author"`
	}) (*struct {
		Body deleteResult `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		deleted := s.e.DeleteTask(input.ID, input.Author)
		return &struct {
			Body deleteResult `json:"body"`
		}{Body: deleteResult{Deleted: deleted}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/comments",
		Summary:       "Add comment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string            `path:"id"`
		Author string            `header:"X-Author"`
		Body   AddCommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		if input.Body.Text == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		author := input.Body.Author
		if author == "" {
			author = input.Author
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		c, err := s.e.AddComment(input.ID, input.Body.Text, author)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})
}

func registerClients(api huma.API, s *srv) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Author string              `header:"X-Author"`
		Body   CreateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		c, err := s.e.NewClient(engine.ClientCreateOptions{
			Name:         input.Body.Name,
			ContactName:  stringOrEmpty(input.Body.ContactName),
			ContactEmail: stringOrEmpty(input.Body.ContactEmail),
			Phone:        stringOrEmpty(input.Body.Phone),
			Notes:        stringOrEmpty(input.Body.Notes),
			Status:       stringOrEmpty(input.Body.Status),
		})
		if err != nil {
			return nil, handleError(err)
		}
		c = s.e.AddClient(c, input.Author)
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body clientList `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		items := []domain.Client{}
		for _, c := range s.e.ListClients() {
			if input.Status != "" && c.Status != input.Status {
				continue
			}
			items = append(items, c)
		}
		return &struct {
			Body clientList `json:"body"`
		}{Body: clientList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.e.GetClient(input.ID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "client "+input.ID+" not found", nil)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPatch,
		Path:        "/clients/{id}",
		Summary:     "Update client",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string              `path:"id"`
		Author string              `header:"X-Author"`
		Body   UpdateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c, err := s.e.UpdateClient(input.ID, engine.ClientPatch{
			Name:         input.Body.Name,
			ContactName:  input.Body.ContactName,
			ContactEmail: input.Body.ContactEmail,
			Phone:        input.Body.Phone,
			Notes:        input.Body.Notes,
			Status:       input.Body.Status,
		}, input.Author)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-client",
		Method:      http.MethodDelete,
		Path:        "/clients/{id}",
		Summary:     "Delete client",
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Author string `header:"X-Author"`
	}) (*struct {
		Body deleteResult `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		deleted := s.e.DeleteClient(input.ID, input.Author)
		return &struct {
			Body deleteResult `json:"body"`
		}{Body: deleteResult{Deleted: deleted}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-meeting",
		Method:        http.MethodPost,
		Path:          "/clients/{id}/meetings",
		Summary:       "Add meeting",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string            `path:"id"`
		Author string            `header:"X-Author"`
		Body   AddMeetingRequest `json:"body"`
	}) (*struct {
		Body domain.Meeting `json:"body"`
	}, error) {
		if input.Body.Summary == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "summary is required", nil)
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		m, err := s.e.AddMeeting(input.ID, input.Body.Summary, input.Body.Date, input.Body.NextSteps, input.Author)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Meeting `json:"body"`
		}{Body: m}, nil
	})
}

func registerPartners(api huma.API, s *srv) {
	huma.Register(api, huma.Operation{
		OperationID: "list-partners",
		Method:      http.MethodGet,
		Path:        "/partners",
		Summary:     "List partners",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body partnerList `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return &struct {
			Body partnerList `json:"body"`
		}{Body: partnerList{Items: s.e.ListPartners()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "replace-partners",
		Method:      http.MethodPut,
		Path:        "/partners",
		Summary:     "Replace the partner roster",
	}, func(ctx context.Context, input *struct {
		Author string                 `header:"X-Author"`
		Body   ReplacePartnersRequest `json:"body"`
	}) (*struct {
		Body partnerList `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.e.ReplacePartners(input.Body.Partners, input.Author)
		return &struct {
			Body partnerList `json:"body"`
		}{Body: partnerList{Items: s.e.ListPartners()}}, nil
	})
}

func registerCategories(api huma.API, s *srv) {
	huma.Register(api, huma.Operation{
		OperationID: "list-categories",
		Method:      http.MethodGet,
		Path:        "/categories",
		Summary:     "List categories",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body categoryList `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return &struct {
			Body categoryList `json:"body"`
		}{Body: categoryList{Items: s.e.Categories()}}, nil
	})
}

func registerCheck(api huma.API, s *srv) {
	huma.Register(api, huma.Operation{
		OperationID: "check-references",
		Method:      http.MethodGet,
		Path:        "/check",
		Summary:     "Report dangling client/assignee references",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Issues []engine.ReferenceIssue `json:"issues"`
		} `json:"body"`
	}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := &struct {
			Body struct {
				Issues []engine.ReferenceIssue `json:"issues"`
			} `json:"body"`
		}{}
		out.Body.Issues = s.e.CheckReferences()
		if out.Body.Issues == nil {
			out.Body.Issues = []engine.ReferenceIssue{}
		}
		return out, nil
	})
}
