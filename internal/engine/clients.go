package engine

import (
	"fmt"

	"taskdesk/internal/domain"
)

// ClientCreateOptions are parameters for constructing a client.
type ClientCreateOptions struct {
	Name         string
	ContactName  string
	ContactEmail string
	Phone        string
	Notes        string
	Status       string
}

// NewClient constructs a client without touching the document. Status
// defaults to Lead.
func (e *Engine) NewClient(opts ClientCreateOptions) (domain.Client, error) {
	status := opts.Status
	if status == "" {
		status = domain.ClientStatusLead
	}
	if !domain.ValidClientStatus(status) {
		return domain.Client{}, fmt.Errorf("invalid client status %q", opts.Status)
	}
	now := e.timestamp()
	return domain.Client{
		ID:           e.newID(),
		Name:         opts.Name,
		ContactName:  opts.ContactName,
		ContactEmail: opts.ContactEmail,
		Phone:        opts.Phone,
		Notes:        opts.Notes,
		Status:       status,
		Meetings:     []domain.Meeting{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// AddClient appends and persists. Client mutations take no backup snapshot:
// the roster is low-volume and recoverable from task history, so only task
// mutations pay the snapshot cost.
func (e *Engine) AddClient(c domain.Client, author string) domain.Client {
	e.Doc.Clients = append(e.Doc.Clients, c)
	e.persist()
	e.event("client.create", "client", c.ID, author, map[string]any{"name": c.Name})
	return cloneClient(c)
}

// ClientPatch mirrors TaskPatch: set fields overwrite, unset fields keep
// their prior value. Renaming a client does not cascade to tasks that
// reference the old name.
type ClientPatch struct {
	Name         *string
	ContactName  *string
	ContactEmail *string
	Phone        *string
	Notes        *string
	Status       *string
}

func (e *Engine) UpdateClient(id string, patch ClientPatch, author string) (domain.Client, error) {
	if patch.Status != nil && !domain.ValidClientStatus(*patch.Status) {
		return domain.Client{}, fmt.Errorf("invalid client status %q", *patch.Status)
	}
	idx := -1
	for i := range e.Doc.Clients {
		if e.Doc.Clients[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Client{}, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	c := &e.Doc.Clients[idx]
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.ContactName != nil {
		c.ContactName = *patch.ContactName
	}
	if patch.ContactEmail != nil {
		c.ContactEmail = *patch.ContactEmail
	}
	if patch.Phone != nil {
		c.Phone = *patch.Phone
	}
	if patch.Notes != nil {
		c.Notes = *patch.Notes
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	c.UpdatedAt = e.timestamp()
	e.persist()
	e.event("client.update", "client", id, author, nil)
	return cloneClient(*c), nil
}

// DeleteClient filters the client out. Tasks referencing the client by name
// keep their dangling reference; CheckReferences surfaces those.
func (e *Engine) DeleteClient(id, author string) (deleted bool) {
	kept := e.Doc.Clients[:0]
	for _, c := range e.Doc.Clients {
		if c.ID == id {
			deleted = true
			continue
		}
		kept = append(kept, c)
	}
	e.Doc.Clients = kept
	e.persist()
	if deleted {
		e.event("client.delete", "client", id, author, nil)
	}
	return deleted
}

// GetClient returns the first client with the given id.
func (e *Engine) GetClient(id string) (domain.Client, bool) {
	for _, c := range e.Doc.Clients {
		if c.ID == id {
			return cloneClient(c), true
		}
	}
	return domain.Client{}, false
}

// ListClients returns the clients in creation order.
func (e *Engine) ListClients() []domain.Client {
	out := make([]domain.Client, 0, len(e.Doc.Clients))
	for _, c := range e.Doc.Clients {
		out = append(out, cloneClient(c))
	}
	return out
}

// cloneClient copies the meeting history so callers cannot alias the cached
// document through a snapshot.
func cloneClient(c domain.Client) domain.Client {
	c.Meetings = append(make([]domain.Meeting, 0, len(c.Meetings)), c.Meetings...)
	return c
}

// AddMeeting appends an immutable meeting record to a client and bumps its
// updated_at.
func (e *Engine) AddMeeting(clientID, summary, date, nextSteps, author string) (domain.Meeting, error) {
	for i := range e.Doc.Clients {
		if e.Doc.Clients[i].ID != clientID {
			continue
		}
		m := domain.Meeting{
			ID:        e.newID(),
			Summary:   summary,
			Date:      date,
			NextSteps: nextSteps,
			CreatedAt: e.timestamp(),
		}
		e.Doc.Clients[i].Meetings = append(e.Doc.Clients[i].Meetings, m)
		e.Doc.Clients[i].UpdatedAt = m.CreatedAt
		e.persist()
		e.event("client.meeting", "client", clientID, author, nil)
		return m, nil
	}
	return domain.Meeting{}, fmt.Errorf("client %s: %w", clientID, ErrNotFound)
}
