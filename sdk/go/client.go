package taskdesksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskdesk HTTP API client.
type Client struct {
	BaseURL    string
	Author     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Task mirrors the API task model.
type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Assignee       string    `json:"assignee"`
	Priority       string    `json:"priority"`
	Status         string    `json:"status"`
	DueDate        *string   `json:"due_date"`
	Category       string    `json:"category"`
	Links          []string  `json:"links"`
	MeetingSummary string    `json:"meeting_summary"`
	Client         string    `json:"client"`
	Comments       []Comment `json:"comments"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
}

type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

// TrackedClient mirrors the API client model. Named to avoid colliding with
// the SDK's own Client type.
type TrackedClient struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	Phone        string    `json:"phone"`
	Notes        string    `json:"notes"`
	Status       string    `json:"status"`
	Meetings     []Meeting `json:"meetings"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

type Meeting struct {
	ID        string `json:"id"`
	Summary   string `json:"summary"`
	Date      string `json:"date"`
	NextSteps string `json:"next_steps"`
	CreatedAt string `json:"created_at"`
}

type Partner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Summary mirrors the API document summary.
type Summary struct {
	TasksByStatus map[string]int `json:"tasks_by_status"`
	OverdueTasks  int            `json:"overdue_tasks"`
	Clients       int            `json:"clients"`
	Partners      int            `json:"partners"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task with the given title and optional fields.
func (c *Client) CreateTask(ctx context.Context, title string, fields map[string]any) (Task, error) {
	body := map[string]any{"title": title}
	for k, v := range fields {
		body[k] = v
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// Tasks lists tasks, optionally filtered by status.
func (c *Client) Tasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := "v0/tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// UpdateTask patches a task; only the provided fields change.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "v0/tasks/"+url.PathEscape(id), fields, &resp)
	return resp, err
}

// DeleteTask deletes a task; ok reports whether anything was removed.
func (c *Client) DeleteTask(ctx context.Context, id string) (bool, error) {
	var resp struct {
		Deleted bool `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "v0/tasks/"+url.PathEscape(id), nil, &resp)
	return resp.Deleted, err
}

// AddComment appends a comment to a task.
func (c *Client) AddComment(ctx context.Context, taskID, text string) (Comment, error) {
	var resp Comment
	body := map[string]any{"text": text}
	err := c.do(ctx, http.MethodPost, "v0/tasks/"+url.PathEscape(taskID)+"/comments", body, &resp)
	return resp, err
}

// CreateClient creates a tracked client.
func (c *Client) CreateClient(ctx context.Context, name string, fields map[string]any) (TrackedClient, error) {
	body := map[string]any{"name": name}
	for k, v := range fields {
		body[k] = v
	}
	var resp TrackedClient
	err := c.do(ctx, http.MethodPost, "v0/clients", body, &resp)
	return resp, err
}

// AddMeeting records a meeting with a client.
func (c *Client) AddMeeting(ctx context.Context, clientID, summary, date, nextSteps string) (Meeting, error) {
	body := map[string]any{"summary": summary, "date": date, "next_steps": nextSteps}
	var resp Meeting
	err := c.do(ctx, http.MethodPost, "v0/clients/"+url.PathEscape(clientID)+"/meetings", body, &resp)
	return resp, err
}

// Partners returns the roster.
func (c *Client) Partners(ctx context.Context) ([]Partner, error) {
	var resp struct {
		Items []Partner `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/partners", nil, &resp)
	return resp.Items, err
}

// Summary returns board counts.
func (c *Client) Summary(ctx context.Context) (Summary, error) {
	var resp Summary
	err := c.do(ctx, http.MethodGet, "v0/summary", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	// Fall back locally for zero-value Clients; never mutate shared state.
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Author != "" {
		req.Header.Set("X-Author", c.Author)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
