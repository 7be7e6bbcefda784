// Package store owns the on-disk representation of the document: a single
// JSON file replaced wholesale on every save, plus a rolling backup window.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"taskdesk/internal/domain"
)

const (
	dataFileName  = "tasks.json"
	backupDirName = "backups"
	backupPrefix  = "tasks_backup_"

	// DefaultRetention bounds the backup window when Store.Retention is unset.
	DefaultRetention = 10
)

type Store struct {
	Workspace string
	// Retention is the number of backup slots kept; 0 means DefaultRetention.
	Retention int
	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Store) retention() int {
	if s.Retention <= 0 {
		return DefaultRetention
	}
	return s.Retention
}

func dataDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".taskdesk")
}

// EnsureWorkspace creates the workspace data directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := dataDir(workspace)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Path returns the document path for a workspace.
func Path(workspace string) string {
	return filepath.Join(dataDir(workspace), dataFileName)
}

// BackupDir returns the backup directory for a workspace.
func BackupDir(workspace string) string {
	return filepath.Join(dataDir(workspace), backupDirName)
}

// EventLogPath returns the activity log path for a workspace.
func EventLogPath(workspace string) string {
	return filepath.Join(dataDir(workspace), "events.jsonl")
}

// Load reads the persisted document. A missing file or malformed content
// degrades to the default document; seeded reports when that happened.
// Load never fails: the tool must keep working on a corrupted store.
func (s Store) Load() (doc domain.Document, seeded bool) {
	data, err := os.ReadFile(Path(s.Workspace))
	if err != nil {
		return domain.DefaultDocument(), true
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.DefaultDocument(), true
	}
	normalize(&doc)
	return doc, false
}

// Save serializes the full document and replaces the persisted copy.
// On an unwritable backend the caller's in-memory copy stays authoritative;
// the error is informational only.
func (s Store) Save(doc domain.Document) error {
	if _, err := EnsureWorkspace(s.Workspace); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return os.WriteFile(Path(s.Workspace), append(data, '\n'), 0o644)
}

// Backup copies the current persisted file into a timestamped slot and
// prunes old slots down to the retention bound. Skipped silently when no
// file has been persisted yet; failures must not block the following save.
func (s Store) Backup() error {
	src := Path(s.Workspace)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	dir := BackupDir(s.Workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := backupPrefix + s.now().Format("20060102_150405") + ".json"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return err
	}
	return s.prune()
}

func (s Store) prune() error {
	names, err := s.Backups()
	if err != nil {
		return err
	}
	keep := s.retention()
	for len(names) > keep {
		if err := os.Remove(filepath.Join(BackupDir(s.Workspace), names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}

// Backups lists backup file names sorted oldest first. The timestamp suffix
// makes lexical order chronological.
func (s Store) Backups() ([]string, error) {
	entries, err := os.ReadDir(BackupDir(s.Workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// normalize fills defaults for absent optional fields so that load(save(doc))
// round-trips and older files keep working.
func normalize(doc *domain.Document) {
	if doc.Partners == nil {
		doc.Partners = []domain.Partner{}
	}
	if doc.Tasks == nil {
		doc.Tasks = []domain.Task{}
	}
	if doc.Clients == nil {
		doc.Clients = []domain.Client{}
	}
	if len(doc.Categories) == 0 {
		doc.Categories = domain.DefaultCategories()
	}
	for i := range doc.Tasks {
		if doc.Tasks[i].Links == nil {
			doc.Tasks[i].Links = []string{}
		}
		if doc.Tasks[i].Comments == nil {
			doc.Tasks[i].Comments = []domain.Comment{}
		}
	}
	for i := range doc.Clients {
		if doc.Clients[i].Meetings == nil {
			doc.Clients[i].Meetings = []domain.Meeting{}
		}
	}
}
