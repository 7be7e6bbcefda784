// Package engine exposes the operation set over the tracker document. An
// Engine is one logical session: it loads the document once, serves every
// read from the cached copy, and writes through to the store on mutation.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/config"
	"taskdesk/internal/domain"
	"taskdesk/internal/events"
	"taskdesk/internal/store"
)

var ErrNotFound = errors.New("not found")

type Engine struct {
	Store  store.Store
	Events events.Writer
	Config *config.Config
	Doc    *domain.Document
	Now    func() time.Time

	seeded      bool
	lastSaveErr error
}

// Open starts a session for a workspace: optional config, store with the
// configured retention, and the document loaded (or seeded) into the cache.
func Open(workspace string) (*Engine, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	st := store.Store{Workspace: workspace, Retention: cfg.Retention()}
	e := New(st, cfg)
	return e, nil
}

// New builds a session over an existing store. Config may be nil.
func New(st store.Store, cfg *config.Config) *Engine {
	doc, seeded := st.Load()
	if seeded && cfg != nil {
		applyConfigDefaults(&doc, cfg)
	}
	return &Engine{
		Store:  st,
		Events: events.Writer{Path: store.EventLogPath(st.Workspace)},
		Config: cfg,
		Doc:    &doc,
		Now:    time.Now,
		seeded: seeded,
	}
}

// applyConfigDefaults replaces the built-in seed roster and categories with
// the configured ones. Only relevant for a fresh (seeded) document.
func applyConfigDefaults(doc *domain.Document, cfg *config.Config) {
	if len(cfg.Partners) > 0 {
		doc.Partners = doc.Partners[:0]
		for _, p := range cfg.Partners {
			doc.Partners = append(doc.Partners, domain.Partner{Name: p.Name, Email: p.Email})
		}
	}
	if len(cfg.Categories) > 0 {
		doc.Categories = append([]string(nil), cfg.Categories...)
	}
}

// Seeded reports whether this session started from the default document
// rather than a persisted one.
func (e *Engine) Seeded() bool { return e.seeded }

// LastSaveErr returns the most recent write-through failure, or nil. Save
// failures never abort an operation; the cached document stays authoritative
// for the rest of the session.
func (e *Engine) LastSaveErr() error { return e.lastSaveErr }

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// timestampLayout carries a fixed-width microsecond fraction: mutations in
// the same wall-clock second still get distinct, lexically ordered values,
// and RFC3339 parsers accept the result.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(timestampLayout)
}

func (e *Engine) newID() string { return uuid.NewString() }

// persist writes the cached document through to the store, best-effort.
func (e *Engine) persist() {
	e.lastSaveErr = e.Store.Save(*e.Doc)
}

// backup snapshots the pre-mutation on-disk state. Failures never block the
// save that follows.
func (e *Engine) backup() {
	_ = e.Store.Backup()
}

func (e *Engine) event(evtType, entityKind, entityID, author string, detail map[string]any) {
	if w := e.Events; w.Path != "" {
		w.Now = e.Now
		_ = w.Append(evtType, entityKind, entityID, author, detail)
	}
}

// TaskCreateOptions are parameters for constructing a task.
type TaskCreateOptions struct {
	Title          string
	Description    string
	Assignee       string
	Priority       string
	DueDate        *string
	Category       string
	Links          []string
	MeetingSummary string
	Client         string
}

// NewTask constructs a task without touching the document. An empty title is
// accepted here; callers enforce required-title at their boundary. Priority
// defaults to Medium, status to To Do.
func (e *Engine) NewTask(opts TaskCreateOptions) (domain.Task, error) {
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidTaskPriority(priority) {
		return domain.Task{}, fmt.Errorf("invalid priority %q", opts.Priority)
	}
	category := opts.Category
	if category == "" {
		category = domain.DefaultCategory
	}
	links := opts.Links
	if links == nil {
		links = []string{}
	}
	now := e.timestamp()
	return domain.Task{
		ID:             e.newID(),
		Title:          opts.Title,
		Description:    opts.Description,
		Assignee:       opts.Assignee,
		Priority:       priority,
		Status:         domain.StatusToDo,
		DueDate:        opts.DueDate,
		Category:       category,
		Links:          links,
		MeetingSummary: opts.MeetingSummary,
		Client:         opts.Client,
		Comments:       []domain.Comment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// AddTask snapshots the pre-append state, appends, and persists.
func (e *Engine) AddTask(t domain.Task, author string) domain.Task {
	e.backup()
	e.Doc.Tasks = append(e.Doc.Tasks, t)
	e.persist()
	e.event("task.create", "task", t.ID, author, map[string]any{"title": t.Title})
	return cloneTask(t)
}

// TaskPatch is a shallow merge: each set field overwrites, unset fields keep
// their prior value. ClearDueDate removes the deadline.
type TaskPatch struct {
	Title          *string
	Description    *string
	Assignee       *string
	Priority       *string
	Status         *string
	DueDate        *string
	ClearDueDate   bool
	Category       *string
	Links          *[]string
	MeetingSummary *string
	Client         *string
}

// UpdateTask merges the patch into the task with the given id and bumps
// updated_at. Unknown ids return ErrNotFound rather than the historical
// silent no-op; callers that want the lenient behavior can ignore it.
func (e *Engine) UpdateTask(id string, patch TaskPatch, author string) (domain.Task, error) {
	if patch.Priority != nil && !domain.ValidTaskPriority(*patch.Priority) {
		return domain.Task{}, fmt.Errorf("invalid priority %q", *patch.Priority)
	}
	if patch.Status != nil && !domain.ValidTaskStatus(*patch.Status) {
		return domain.Task{}, fmt.Errorf("invalid status %q", *patch.Status)
	}
	idx := -1
	for i := range e.Doc.Tasks {
		if e.Doc.Tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	t := &e.Doc.Tasks[idx]
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Assignee != nil {
		t.Assignee = *patch.Assignee
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.ClearDueDate {
		t.DueDate = nil
	} else if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	if patch.Links != nil {
		t.Links = *patch.Links
	}
	if patch.MeetingSummary != nil {
		t.MeetingSummary = *patch.MeetingSummary
	}
	if patch.Client != nil {
		t.Client = *patch.Client
	}
	t.UpdatedAt = e.timestamp()
	e.backup()
	e.persist()
	e.event("task.update", "task", id, author, nil)
	return cloneTask(*t), nil
}

// DeleteTask filters the task out of the collection. Deleting an absent id
// is a no-op, so the call is idempotent; deleted reports whether anything
// was removed. Deletion is unrecoverable except via backups.
func (e *Engine) DeleteTask(id, author string) (deleted bool) {
	kept := e.Doc.Tasks[:0]
	for _, t := range e.Doc.Tasks {
		if t.ID == id {
			deleted = true
			continue
		}
		kept = append(kept, t)
	}
	e.Doc.Tasks = kept
	e.backup()
	e.persist()
	if deleted {
		e.event("task.delete", "task", id, author, nil)
	}
	return deleted
}

// GetTask returns the first task with the given id.
func (e *Engine) GetTask(id string) (domain.Task, bool) {
	for _, t := range e.Doc.Tasks {
		if t.ID == id {
			return cloneTask(t), true
		}
	}
	return domain.Task{}, false
}

// ListTasks returns the tasks in creation order.
func (e *Engine) ListTasks() []domain.Task {
	out := make([]domain.Task, 0, len(e.Doc.Tasks))
	for _, t := range e.Doc.Tasks {
		out = append(out, cloneTask(t))
	}
	return out
}

// cloneTask copies the nested slices so callers cannot alias the cached
// document through a snapshot.
func cloneTask(t domain.Task) domain.Task {
	t.Links = append(make([]string, 0, len(t.Links)), t.Links...)
	t.Comments = append(make([]domain.Comment, 0, len(t.Comments)), t.Comments...)
	return t
}

// AddComment appends an immutable comment to a task and bumps updated_at.
// Comments are lighter-weight than task mutations and take no backup.
func (e *Engine) AddComment(taskID, text, author string) (domain.Comment, error) {
	for i := range e.Doc.Tasks {
		if e.Doc.Tasks[i].ID != taskID {
			continue
		}
		c := domain.Comment{
			ID:        e.newID(),
			Text:      text,
			Author:    author,
			CreatedAt: e.timestamp(),
		}
		e.Doc.Tasks[i].Comments = append(e.Doc.Tasks[i].Comments, c)
		e.Doc.Tasks[i].UpdatedAt = c.CreatedAt
		e.persist()
		e.event("task.comment", "task", taskID, author, nil)
		return c, nil
	}
	return domain.Comment{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}
