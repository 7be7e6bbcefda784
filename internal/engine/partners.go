package engine

import "taskdesk/internal/domain"

// PartnerNames projects the roster to names in display order.
func (e *Engine) PartnerNames() []string {
	names := make([]string, 0, len(e.Doc.Partners))
	for _, p := range e.Doc.Partners {
		names = append(names, p.Name)
	}
	return names
}

// PartnerEmail returns the email of the first partner with the given name,
// or "" when absent. First match is the lookup contract; the document does
// not enforce unique names.
func (e *Engine) PartnerEmail(name string) string {
	for _, p := range e.Doc.Partners {
		if p.Name == name {
			return p.Email
		}
	}
	return ""
}

// ReplacePartners swaps the whole roster and persists immediately.
func (e *Engine) ReplacePartners(partners []domain.Partner, author string) {
	if partners == nil {
		partners = []domain.Partner{}
	}
	e.Doc.Partners = partners
	e.persist()
	e.event("partners.replace", "partners", "", author, map[string]any{"count": len(partners)})
}

// ListPartners returns the roster in display order.
func (e *Engine) ListPartners() []domain.Partner {
	return append([]domain.Partner(nil), e.Doc.Partners...)
}

// ClientNames projects client names in creation order.
func (e *Engine) ClientNames() []string {
	names := make([]string, 0, len(e.Doc.Clients))
	for _, c := range e.Doc.Clients {
		names = append(names, c.Name)
	}
	return names
}

// Categories returns the category list offered to tasks. Task.Category is
// not constrained to it; unlisted values are tolerated.
func (e *Engine) Categories() []string {
	return append([]string(nil), e.Doc.Categories...)
}
