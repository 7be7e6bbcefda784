package server

import "taskdesk/internal/domain"

// Request payloads

type CreateTaskRequest struct {
	Title          string   `json:"title"`
	Description    *string  `json:"description,omitempty"`
	Assignee       *string  `json:"assignee,omitempty"`
	Priority       *string  `json:"priority,omitempty" enum:"High,Medium,Low"`
	DueDate        *string  `json:"due_date,omitempty"`
	Category       *string  `json:"category,omitempty"`
	Links          []string `json:"links,omitempty"`
	MeetingSummary *string  `json:"meeting_summary,omitempty"`
	Client         *string  `json:"client,omitempty"`
}

type UpdateTaskRequest struct {
	Title          *string   `json:"title,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Assignee       *string   `json:"assignee,omitempty"`
	Priority       *string   `json:"priority,omitempty" enum:"High,Medium,Low"`
	Status         *string   `json:"status,omitempty" enum:"To Do,In Progress,Done"`
	DueDate        *string   `json:"due_date,omitempty"`
	ClearDueDate   bool      `json:"clear_due_date,omitempty"`
	Category       *string   `json:"category,omitempty"`
	Links          *[]string `json:"links,omitempty"`
	MeetingSummary *string   `json:"meeting_summary,omitempty"`
	Client         *string   `json:"client,omitempty"`
}

type AddCommentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

type CreateClientRequest struct {
	Name         string  `json:"name"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	Status       *string `json:"status,omitempty" enum:"Lead,Contacted,Meeting,Proposal,Negotiation,Won,Lost"`
}

type UpdateClientRequest struct {
	Name         *string `json:"name,omitempty"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	Status       *string `json:"status,omitempty" enum:"Lead,Contacted,Meeting,Proposal,Negotiation,Won,Lost"`
}

type AddMeetingRequest struct {
	Summary   string `json:"summary"`
	Date      string `json:"date"`
	NextSteps string `json:"next_steps,omitempty"`
}

type ReplacePartnersRequest struct {
	Partners []domain.Partner `json:"partners"`
}

// Response payloads

type taskList struct {
	Items []domain.Task `json:"items"`
}

type clientList struct {
	Items []domain.Client `json:"items"`
}

type partnerList struct {
	Items []domain.Partner `json:"items"`
}

type categoryList struct {
	Items []string `json:"items"`
}

type deleteResult struct {
	Deleted bool `json:"deleted"`
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
