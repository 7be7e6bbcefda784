package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"taskdesk/internal/domain"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so backup slots get distinct names.
func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestLoadMissingStoreSeedsDefaults(t *testing.T) {
	s := Store{Workspace: t.TempDir()}
	doc, seeded := s.Load()
	if !seeded {
		t.Fatalf("expected seeded document")
	}
	if len(doc.Partners) != 3 {
		t.Fatalf("expected 3 default partners, got %d", len(doc.Partners))
	}
	if doc.Partners[0].Name != "Avi" || doc.Partners[1].Name != "Sivan" || doc.Partners[2].Name != "Lihi" {
		t.Fatalf("unexpected partner order: %+v", doc.Partners)
	}
	if len(doc.Tasks) != 0 || len(doc.Clients) != 0 {
		t.Fatalf("expected empty tasks and clients")
	}
	want := []string{"Development", "Marketing", "Operations", "Finance", "Legal", "General"}
	if !reflect.DeepEqual(doc.Categories, want) {
		t.Fatalf("categories = %v, want %v", doc.Categories, want)
	}
}

func TestLoadMalformedStoreSeedsDefaults(t *testing.T) {
	dir := t.TempDir()
	if _, err := EnsureWorkspace(dir); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	if err := os.WriteFile(Path(dir), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := Store{Workspace: dir}
	doc, seeded := s.Load()
	if !seeded {
		t.Fatalf("malformed store should degrade to defaults")
	}
	if len(doc.Partners) != 3 {
		t.Fatalf("expected default partners, got %+v", doc.Partners)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := Store{Workspace: t.TempDir()}
	due := "2024-06-30"
	doc := domain.Document{
		Partners: []domain.Partner{{Name: "Dana", Email: "dana@example.com"}},
		Tasks: []domain.Task{{
			ID:             "t-1",
			Title:          "Draft budget",
			Description:    "Q3 numbers",
			Assignee:       "Dana",
			Priority:       domain.PriorityHigh,
			Status:         domain.StatusInProgress,
			DueDate:        &due,
			Category:       "Finance",
			Links:          []string{"https://example.com/sheet"},
			MeetingSummary: "kickoff notes",
			Client:         "Acme",
			Comments: []domain.Comment{
				{ID: "c-1", Text: "first", Author: "Dana", CreatedAt: "2024-01-01T10:00:00Z"},
			},
			CreatedAt: "2024-01-01T09:00:00Z",
			UpdatedAt: "2024-01-01T10:00:00Z",
		}},
		Clients: []domain.Client{{
			ID:           "cl-1",
			Name:         "Acme",
			ContactName:  "Wile",
			ContactEmail: "wile@acme.test",
			Phone:        "555-0100",
			Notes:        "met at expo",
			Status:       domain.ClientStatusProposal,
			Meetings: []domain.Meeting{
				{ID: "m-1", Summary: "intro call", Date: "2024-01-05", NextSteps: "send deck", CreatedAt: "2024-01-05T12:00:00Z"},
			},
			CreatedAt: "2024-01-01T08:00:00Z",
			UpdatedAt: "2024-01-05T12:00:00Z",
		}},
		Categories: domain.DefaultCategories(),
	}
	if err := s.Save(doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, seeded := s.Load()
	if seeded {
		t.Fatalf("unexpected seeding on round trip")
	}
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, doc)
	}
}

func TestLoadNormalizesLegacyPartnerShape(t *testing.T) {
	dir := t.TempDir()
	if _, err := EnsureWorkspace(dir); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	raw := `{"partners": ["Avi", {"name": "Sivan", "email": "SivanLa@bdo.co.il"}], "tasks": [], "clients": []}`
	if err := os.WriteFile(Path(dir), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := Store{Workspace: dir}
	doc, seeded := s.Load()
	if seeded {
		t.Fatalf("legacy file should load, not seed")
	}
	if len(doc.Partners) != 2 {
		t.Fatalf("expected 2 partners, got %+v", doc.Partners)
	}
	if doc.Partners[0].Name != "Avi" || doc.Partners[0].Email != "" {
		t.Fatalf("bare string entry not normalized: %+v", doc.Partners[0])
	}
	if doc.Partners[1].Email != "SivanLa@bdo.co.il" {
		t.Fatalf("structured entry mangled: %+v", doc.Partners[1])
	}
	if len(doc.Categories) != 6 {
		t.Fatalf("missing categories should fill with defaults, got %v", doc.Categories)
	}
}

func TestBackupSkippedWithoutPersistedFile(t *testing.T) {
	s := Store{Workspace: t.TempDir()}
	if err := s.Backup(); err != nil {
		t.Fatalf("backup without file should be a silent no-op: %v", err)
	}
	names, err := s.Backups()
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no backups, got %v", names)
	}
}

func TestBackupRetentionBound(t *testing.T) {
	s := Store{Workspace: t.TempDir(), Now: newFakeClock().Now}
	if err := s.Save(domain.DefaultDocument()); err != nil {
		t.Fatalf("save: %v", err)
	}
	var all []string
	for i := 0; i < 15; i++ {
		if err := s.Backup(); err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
		names, err := s.Backups()
		if err != nil {
			t.Fatalf("backups: %v", err)
		}
		all = append(all, names[len(names)-1])
	}
	names, err := s.Backups()
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	if len(names) != 10 {
		t.Fatalf("expected 10 retained backups, got %d", len(names))
	}
	if !reflect.DeepEqual(names, all[5:]) {
		t.Fatalf("retained set is not the most recent 10:\n got %v\nwant %v", names, all[5:])
	}
}

func TestSaveUnwritableBackend(t *testing.T) {
	// Workspace path is a regular file, so the data directory can never be
	// created. Save must fail without panicking; Load still serves defaults.
	dir := t.TempDir()
	ws := filepath.Join(dir, "ws")
	if err := os.WriteFile(ws, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := Store{Workspace: ws}
	if err := s.Save(domain.DefaultDocument()); err == nil {
		t.Fatalf("expected save error on unwritable backend")
	}
	if _, seeded := s.Load(); !seeded {
		t.Fatalf("expected defaults from unreadable store")
	}
}
