package domain

import "encoding/json"

// Document is the single persisted root object. The whole document is read
// and replaced on every mutation; there is no partial update at the storage
// level.
type Document struct {
	Partners   []Partner `json:"partners"`
	Tasks      []Task    `json:"tasks"`
	Clients    []Client  `json:"clients"`
	Categories []string  `json:"categories"`
}

type Partner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnmarshalJSON accepts both the structured shape and legacy bare-string
// entries ("Avi" instead of {"name":"Avi"}). Legacy entries are normalized
// on the next save.
func (p *Partner) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Name)
	}
	type partner Partner
	var v partner
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Partner(v)
	return nil
}

type Task struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Assignee       string    `json:"assignee"`
	Priority       string    `json:"priority" enum:"High,Medium,Low"`
	Status         string    `json:"status" enum:"To Do,In Progress,Done"`
	DueDate        *string   `json:"due_date"`
	Category       string    `json:"category"`
	Links          []string  `json:"links"`
	MeetingSummary string    `json:"meeting_summary"`
	Client         string    `json:"client"`
	Comments       []Comment `json:"comments"`
	CreatedAt      string    `json:"created_at" format:"date-time"`
	UpdatedAt      string    `json:"updated_at" format:"date-time"`
}

// Comment is append-only; there is no edit or delete operation.
type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	Phone        string    `json:"phone"`
	Notes        string    `json:"notes"`
	Status       string    `json:"status" enum:"Lead,Contacted,Meeting,Proposal,Negotiation,Won,Lost"`
	Meetings     []Meeting `json:"meetings"`
	CreatedAt    string    `json:"created_at" format:"date-time"`
	UpdatedAt    string    `json:"updated_at" format:"date-time"`
}

// Meeting is append-only, like Comment.
type Meeting struct {
	ID        string `json:"id"`
	Summary   string `json:"summary"`
	Date      string `json:"date"`
	NextSteps string `json:"next_steps"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"

	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"

	ClientStatusLead        = "Lead"
	ClientStatusContacted   = "Contacted"
	ClientStatusMeeting     = "Meeting"
	ClientStatusProposal    = "Proposal"
	ClientStatusNegotiation = "Negotiation"
	ClientStatusWon         = "Won"
	ClientStatusLost        = "Lost"

	DefaultCategory = "General"
)

var TaskStatuses = []string{StatusToDo, StatusInProgress, StatusDone}

var TaskPriorities = []string{PriorityHigh, PriorityMedium, PriorityLow}

var ClientStatuses = []string{
	ClientStatusLead,
	ClientStatusContacted,
	ClientStatusMeeting,
	ClientStatusProposal,
	ClientStatusNegotiation,
	ClientStatusWon,
	ClientStatusLost,
}

func ValidTaskStatus(s string) bool   { return contains(TaskStatuses, s) }
func ValidTaskPriority(s string) bool { return contains(TaskPriorities, s) }
func ValidClientStatus(s string) bool { return contains(ClientStatuses, s) }

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// DefaultDocument returns the seed document used when no store exists yet
// or the persisted file is malformed.
func DefaultDocument() Document {
	return Document{
		Partners: []Partner{
			{Name: "Avi", Email: "aviluv@oporto-carbon.com"},
			{Name: "Sivan", Email: "SivanLa@bdo.co.il"},
			{Name: "Lihi", Email: "LihieI@bdo.co.il"},
		},
		Tasks:      []Task{},
		Clients:    []Client{},
		Categories: DefaultCategories(),
	}
}

// DefaultCategories returns the built-in category list in display order.
func DefaultCategories() []string {
	return []string{"Development", "Marketing", "Operations", "Finance", "Legal", "General"}
}
