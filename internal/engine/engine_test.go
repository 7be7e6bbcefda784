package engine_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskdesk/internal/config"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/store"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now advances one second per call so updated_at strictly increases and
// backup slots get distinct names.
func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestEnv(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	clock := newFakeClock()
	st := store.Store{Workspace: dir, Now: clock.Now}
	e := engine.New(st, nil)
	e.Now = clock.Now
	return e
}

// reopen starts a fresh session over the same workspace, simulating a new
// process reading the durable store.
func reopen(t *testing.T, e *engine.Engine) *engine.Engine {
	t.Helper()
	fresh := engine.New(e.Store, nil)
	fresh.Now = e.Now
	return fresh
}

func backupCount(t *testing.T, e *engine.Engine) int {
	t.Helper()
	names, err := e.Store.Backups()
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	return len(names)
}

func TestCreateThenFind(t *testing.T) {
	e := newTestEnv(t)
	task, err := e.NewTask(engine.TaskCreateOptions{Title: "Draft budget"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.ID == "" {
		t.Fatalf("expected generated id")
	}
	if task.Status != domain.StatusToDo || task.Priority != domain.PriorityMedium || task.Category != domain.DefaultCategory {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	e.AddTask(task, "tester")

	fresh := reopen(t, e)
	if fresh.Seeded() {
		t.Fatalf("store should be persisted after AddTask")
	}
	tasks := fresh.ListTasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.Title != "Draft budget" || got.Status != domain.StatusToDo || got.ID != task.ID {
		t.Fatalf("unexpected task after reload: %+v", got)
	}
	if len(got.Comments) != 0 || len(got.Links) != 0 {
		t.Fatalf("expected empty comments and links: %+v", got)
	}
}

func TestUpdateMergesAndBumpsUpdatedAt(t *testing.T) {
	e := newTestEnv(t)
	task, err := e.NewTask(engine.TaskCreateOptions{Title: "A", Priority: domain.PriorityLow})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	e.AddTask(task, "tester")
	before := task.UpdatedAt

	high := domain.PriorityHigh
	updated, err := e.UpdateTask(task.ID, engine.TaskPatch{Priority: &high}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "A" {
		t.Fatalf("merge replaced unrelated field: %+v", updated)
	}
	if updated.Priority != domain.PriorityHigh {
		t.Fatalf("priority not applied: %+v", updated)
	}
	// The fixed-width fraction keeps lexical order chronological.
	if updated.UpdatedAt <= before {
		t.Fatalf("updated_at %s not after %s", updated.UpdatedAt, before)
	}
	if updated.CreatedAt != task.CreatedAt {
		t.Fatalf("created_at must be immutable")
	}
}

func TestUpdateClearsDueDate(t *testing.T) {
	e := newTestEnv(t)
	due := "2024-06-30"
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "deadline", DueDate: &due})
	e.AddTask(task, "tester")
	updated, err := e.UpdateTask(task.ID, engine.TaskPatch{ClearDueDate: true}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DueDate != nil {
		t.Fatalf("due date not cleared: %+v", updated.DueDate)
	}
}

func TestUpdateUnknownTask(t *testing.T) {
	e := newTestEnv(t)
	title := "x"
	_, err := e.UpdateTask("missing-id", engine.TaskPatch{Title: &title}, "tester")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRejectsUnknownEnumValues(t *testing.T) {
	e := newTestEnv(t)
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "enum"})
	e.AddTask(task, "tester")
	bad := "Blocked"
	if _, err := e.UpdateTask(task.ID, engine.TaskPatch{Status: &bad}, "tester"); err == nil {
		t.Fatalf("expected invalid status error")
	}
	worst := "Critical"
	if _, err := e.UpdateTask(task.ID, engine.TaskPatch{Priority: &worst}, "tester"); err == nil {
		t.Fatalf("expected invalid priority error")
	}
	// Any member-to-member transition is legal, including Done back to To Do.
	done := domain.StatusDone
	if _, err := e.UpdateTask(task.ID, engine.TaskPatch{Status: &done}, "tester"); err != nil {
		t.Fatalf("to Done: %v", err)
	}
	todo := domain.StatusToDo
	if _, err := e.UpdateTask(task.ID, engine.TaskPatch{Status: &todo}, "tester"); err != nil {
		t.Fatalf("Done back to To Do: %v", err)
	}
}

func TestTimestampsIncreaseWithinOneSecond(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	clock := func() time.Time {
		n++
		return base.Add(time.Duration(n) * 250 * time.Millisecond)
	}
	st := store.Store{Workspace: t.TempDir(), Now: clock}
	e := engine.New(st, nil)
	e.Now = clock

	task, err := e.NewTask(engine.TaskCreateOptions{Title: "rapid"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	e.AddTask(task, "tester")
	title := "renamed"
	updated, err := e.UpdateTask(task.ID, engine.TaskPatch{Title: &title}, "tester")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UpdatedAt <= task.UpdatedAt {
		t.Fatalf("same-second update must still increase updated_at: %s then %s", task.UpdatedAt, updated.UpdatedAt)
	}
	if _, err := time.Parse(time.RFC3339, updated.UpdatedAt); err != nil {
		t.Fatalf("timestamp must stay RFC3339-parseable: %v", err)
	}

	first, err := e.AddComment(task.ID, "first", "Avi")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	second, err := e.AddComment(task.ID, "second", "Avi")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if second.CreatedAt <= first.CreatedAt {
		t.Fatalf("same-second comments must still increase created_at: %s then %s", first.CreatedAt, second.CreatedAt)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "gone"})
	e.AddTask(task, "tester")
	keep, _ := e.NewTask(engine.TaskCreateOptions{Title: "stays"})
	e.AddTask(keep, "tester")

	if !e.DeleteTask(task.ID, "tester") {
		t.Fatalf("expected first delete to remove the task")
	}
	if e.DeleteTask(task.ID, "tester") {
		t.Fatalf("second delete must be a no-op")
	}
	if e.DeleteTask("never-created", "tester") {
		t.Fatalf("deleting an unknown id must be a no-op")
	}
	tasks := reopen(t, e).ListTasks()
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Fatalf("collection changed by no-op deletes: %+v", tasks)
	}
}

func TestDanglingClientReferenceSurvivesDeletion(t *testing.T) {
	e := newTestEnv(t)
	acme, err := e.NewClient(engine.ClientCreateOptions{Name: "Acme"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	e.AddClient(acme, "tester")
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "pitch deck", Client: "Acme"})
	e.AddTask(task, "tester")

	if !e.DeleteClient(acme.ID, "tester") {
		t.Fatalf("delete client failed")
	}
	fresh := reopen(t, e)
	if len(fresh.ListClients()) != 0 {
		t.Fatalf("client not removed")
	}
	got, ok := fresh.GetTask(task.ID)
	if !ok || got.Client != "Acme" {
		t.Fatalf("task lost its client reference: %+v", got)
	}
	issues := fresh.CheckReferences()
	if len(issues) != 1 || issues[0].Field != "client" || issues[0].Value != "Acme" {
		t.Fatalf("reconciliation should flag the dangling name: %+v", issues)
	}
}

func TestCommentsAccumulateInOrder(t *testing.T) {
	e := newTestEnv(t)
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "talkative"})
	e.AddTask(task, "tester")
	backupsBefore := backupCount(t, e)

	first, err := e.AddComment(task.ID, "first", "Avi")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	second, err := e.AddComment(task.ID, "second", "Sivan")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	got, _ := reopen(t, e).GetTask(task.ID)
	if len(got.Comments) != 2 || got.Comments[0].Text != "first" || got.Comments[1].Text != "second" {
		t.Fatalf("unexpected comment order: %+v", got.Comments)
	}
	if !(second.CreatedAt > first.CreatedAt) {
		t.Fatalf("comment timestamps not increasing: %s, %s", first.CreatedAt, second.CreatedAt)
	}
	if got.UpdatedAt != second.CreatedAt {
		t.Fatalf("comment should bump updated_at")
	}
	if backupCount(t, e) != backupsBefore {
		t.Fatalf("comments must not take backups")
	}
	if _, err := e.AddComment("missing", "text", "Avi"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBackupPolicyCoversTasksOnly(t *testing.T) {
	e := newTestEnv(t)
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "first"})
	e.AddTask(task, "tester") // no file on disk yet, backup skipped
	if n := backupCount(t, e); n != 0 {
		t.Fatalf("first append should not find a file to back up, got %d", n)
	}
	title := "renamed"
	if _, err := e.UpdateTask(task.ID, engine.TaskPatch{Title: &title}, "tester"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := backupCount(t, e); n != 1 {
		t.Fatalf("task update should snapshot, got %d backups", n)
	}

	c, _ := e.NewClient(engine.ClientCreateOptions{Name: "Globex"})
	e.AddClient(c, "tester")
	notes := "big fish"
	if _, err := e.UpdateClient(c.ID, engine.ClientPatch{Notes: &notes}, "tester"); err != nil {
		t.Fatalf("update client: %v", err)
	}
	e.DeleteClient(c.ID, "tester")
	if n := backupCount(t, e); n != 1 {
		t.Fatalf("client mutations must not snapshot, got %d backups", n)
	}
}

func TestMeetingsAppendInOrder(t *testing.T) {
	e := newTestEnv(t)
	c, _ := e.NewClient(engine.ClientCreateOptions{Name: "Initech", Status: domain.ClientStatusMeeting})
	e.AddClient(c, "tester")
	if _, err := e.AddMeeting(c.ID, "intro", "2024-02-01", "send deck", "tester"); err != nil {
		t.Fatalf("add meeting: %v", err)
	}
	if _, err := e.AddMeeting(c.ID, "follow-up", "2024-02-08", "", "tester"); err != nil {
		t.Fatalf("add meeting: %v", err)
	}
	got, ok := reopen(t, e).GetClient(c.ID)
	if !ok {
		t.Fatalf("client lost")
	}
	if len(got.Meetings) != 2 || got.Meetings[0].Summary != "intro" || got.Meetings[1].Summary != "follow-up" {
		t.Fatalf("unexpected meetings: %+v", got.Meetings)
	}
	if got.UpdatedAt != got.Meetings[1].CreatedAt {
		t.Fatalf("meeting should bump updated_at")
	}
	if _, err := e.AddMeeting("missing", "s", "", "", "t"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientRenameDoesNotCascade(t *testing.T) {
	e := newTestEnv(t)
	c, _ := e.NewClient(engine.ClientCreateOptions{Name: "Acme"})
	e.AddClient(c, "tester")
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "proposal", Client: "Acme"})
	e.AddTask(task, "tester")

	name := "Acme Holdings"
	if _, err := e.UpdateClient(c.ID, engine.ClientPatch{Name: &name}, "tester"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, _ := e.GetTask(task.ID)
	if got.Client != "Acme" {
		t.Fatalf("rename must not cascade to tasks: %+v", got)
	}
}

func TestPartnerAccessors(t *testing.T) {
	e := newTestEnv(t)
	names := e.PartnerNames()
	if len(names) != 3 || names[0] != "Avi" {
		t.Fatalf("unexpected default roster: %v", names)
	}
	if got := e.PartnerEmail("Sivan"); got != "SivanLa@bdo.co.il" {
		t.Fatalf("partner email = %q", got)
	}
	if got := e.PartnerEmail("Nobody"); got != "" {
		t.Fatalf("missing partner should yield empty email, got %q", got)
	}

	e.ReplacePartners([]domain.Partner{{Name: "Dana", Email: "dana@example.com"}}, "tester")
	fresh := reopen(t, e)
	if got := fresh.PartnerNames(); len(got) != 1 || got[0] != "Dana" {
		t.Fatalf("replace not persisted: %v", got)
	}
}

func TestClientNamesAndCategories(t *testing.T) {
	e := newTestEnv(t)
	a, _ := e.NewClient(engine.ClientCreateOptions{Name: "Acme"})
	b, _ := e.NewClient(engine.ClientCreateOptions{Name: "Globex"})
	e.AddClient(a, "tester")
	e.AddClient(b, "tester")
	names := e.ClientNames()
	if len(names) != 2 || names[0] != "Acme" || names[1] != "Globex" {
		t.Fatalf("unexpected client names: %v", names)
	}
	if cats := e.Categories(); len(cats) != 6 || cats[5] != "General" {
		t.Fatalf("unexpected categories: %v", cats)
	}
}

func TestSnapshotsDoNotAliasDocument(t *testing.T) {
	e := newTestEnv(t)
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "shared", Links: []string{"https://example.com/doc"}})
	e.AddTask(task, "tester")
	if _, err := e.AddComment(task.ID, "note", "Avi"); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	snap := e.ListTasks()
	snap[0].Links[0] = "mutated"
	snap[0].Comments[0].Text = "mutated"
	got, _ := e.GetTask(task.ID)
	if got.Links[0] != "https://example.com/doc" || got.Comments[0].Text != "note" {
		t.Fatalf("snapshot writes leaked into the document: %+v", got)
	}
	got.Comments[0].Text = "mutated again"
	if fresh, _ := e.GetTask(task.ID); fresh.Comments[0].Text != "note" {
		t.Fatalf("get result must not alias the document: %+v", fresh)
	}

	c, _ := e.NewClient(engine.ClientCreateOptions{Name: "Acme"})
	e.AddClient(c, "tester")
	if _, err := e.AddMeeting(c.ID, "intro", "2024-02-01", "", "tester"); err != nil {
		t.Fatalf("add meeting: %v", err)
	}
	clients := e.ListClients()
	clients[0].Meetings[0].Summary = "mutated"
	if gotC, _ := e.GetClient(c.ID); gotC.Meetings[0].Summary != "intro" {
		t.Fatalf("client snapshot writes leaked into the document: %+v", gotC)
	}
}

func TestSaveFailureKeepsMemoryAuthoritative(t *testing.T) {
	dir := t.TempDir()
	ws := filepath.Join(dir, "ws")
	if err := os.WriteFile(ws, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	e := engine.New(store.Store{Workspace: ws}, nil)
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "volatile"})
	e.AddTask(task, "tester")
	if e.LastSaveErr() == nil {
		t.Fatalf("expected save failure to be recorded")
	}
	if got, ok := e.GetTask(task.ID); !ok || got.Title != "volatile" {
		t.Fatalf("in-memory state must stay authoritative: %+v", got)
	}
}

func TestConfigSeedsFreshDocument(t *testing.T) {
	cfg := &config.Config{
		Partners:   []config.Partner{{Name: "Dana", Email: "dana@example.com"}},
		Categories: []string{"Consulting", "General"},
	}
	e := engine.New(store.Store{Workspace: t.TempDir()}, cfg)
	if !e.Seeded() {
		t.Fatalf("expected seeded session")
	}
	if names := e.PartnerNames(); len(names) != 1 || names[0] != "Dana" {
		t.Fatalf("config roster not applied: %v", names)
	}
	if cats := e.Categories(); len(cats) != 2 || cats[0] != "Consulting" {
		t.Fatalf("config categories not applied: %v", cats)
	}
}

func TestConfigIgnoredForExistingDocument(t *testing.T) {
	dir := t.TempDir()
	e := engine.New(store.Store{Workspace: dir}, nil)
	task, _ := e.NewTask(engine.TaskCreateOptions{Title: "persisted"})
	e.AddTask(task, "tester")

	cfg := &config.Config{Partners: []config.Partner{{Name: "Dana"}}}
	fresh := engine.New(store.Store{Workspace: dir}, cfg)
	if fresh.Seeded() {
		t.Fatalf("existing document must not reseed")
	}
	if names := fresh.PartnerNames(); len(names) != 3 {
		t.Fatalf("config must not override a persisted roster: %v", names)
	}
}
