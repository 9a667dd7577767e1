package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nrkitap/adboard/internal/domain"
)

// columns is the CSV header. The password column was added after launch;
// ensureHeader migrates older files that predate it.
var columns = []string{
	"id",
	"created_utc",
	"kind",
	"title",
	"price",
	"phone",
	"description",
	"photos",
	"password",
}

const photoSep = ";"

// SubmissionStore persists submissions as rows of a single CSV file.
// The file is the system of record: appends go straight to disk and the
// admin area downloads it verbatim. A mutex serializes writers within
// the process; nothing guards against concurrent writers from other
// processes.
type SubmissionStore struct {
	mu   sync.Mutex
	path string
}

func NewSubmissionStore(path string) *SubmissionStore {
	return &SubmissionStore{path: path}
}

// Append writes one submission row, creating the file with a header row
// on first use.
func (s *SubmissionStore) Append(ctx context.Context, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureHeader(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open submissions file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(encodeRow(sub)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write submission row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush submission row: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close submissions file: %w", err)
	}
	return nil
}

// All returns every stored submission in insertion order. Rows with a
// blank id are skipped. A missing file is an empty store, not an error.
func (s *SubmissionStore) All(ctx context.Context) ([]*domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Find returns the submission with the given id, or nil if absent.
func (s *SubmissionStore) Find(ctx context.Context, id string) (*domain.Submission, error) {
	subs, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, nil
}

// Rewrite replaces the whole file with the given submissions. The new
// contents are written to a temp file and renamed into place so readers
// never observe a half-written file.
func (s *SubmissionStore) Rewrite(ctx context.Context, subs []*domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, sub := range subs {
		if err := w.Write(encodeRow(sub)); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush rows: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace submissions file: %w", err)
	}
	return nil
}

// Export streams the raw CSV bytes, for the admin download.
func (s *SubmissionStore) Export(ctx context.Context) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no submissions recorded yet")
		}
		return nil, fmt.Errorf("failed to open submissions file: %w", err)
	}
	return f, nil
}

// ensureHeader creates the file with the expected header if it does not
// exist. An existing file whose header lacks the password column gets it
// appended, padding old rows with an empty value. Headers that differ in
// any other way are left untouched to avoid data loss.
func (s *SubmissionStore) ensureHeader() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		return s.writeRows([][]string{columns})
	}

	rows, err := s.readRawRows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return s.writeRows([][]string{columns})
	}

	header := rows[0]
	if equalRow(header, columns) {
		return nil
	}
	if !containsField(header, "password") {
		migrated := make([][]string, 0, len(rows))
		migrated = append(migrated, append(header, "password"))
		for _, r := range rows[1:] {
			migrated = append(migrated, append(r, ""))
		}
		return s.writeRows(migrated)
	}
	return nil
}

func (s *SubmissionStore) readAll() ([]*domain.Submission, error) {
	rows, err := s.readRawRows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		idx[name] = i
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var subs []*domain.Submission
	for _, row := range rows[1:] {
		id := field(row, "id")
		if id == "" {
			continue
		}

		var photos []string
		if raw := field(row, "photos"); raw != "" {
			for _, p := range strings.Split(raw, photoSep) {
				if p != "" {
					photos = append(photos, p)
				}
			}
		}

		created, _ := time.Parse(time.RFC3339, field(row, "created_utc"))

		subs = append(subs, &domain.Submission{
			ID:          id,
			CreatedAt:   created,
			Kind:        domain.ParseKind(field(row, "kind")),
			Title:       field(row, "title"),
			Price:       field(row, "price"),
			Phone:       field(row, "phone"),
			Description: field(row, "description"),
			Photos:      photos,
			Password:    field(row, "password"),
		})
	}
	return subs, nil
}

func (s *SubmissionStore) readRawRows() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open submissions file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions file: %w", err)
	}
	return rows, nil
}

func (s *SubmissionStore) writeRows(rows [][]string) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create submissions file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close submissions file: %w", err)
	}
	return nil
}

func encodeRow(sub *domain.Submission) []string {
	return []string{
		sub.ID,
		sub.CreatedAt.UTC().Format(time.RFC3339),
		string(sub.Kind),
		sub.Title,
		sub.Price,
		sub.Phone,
		sub.Description,
		strings.Join(sub.Photos, photoSep),
		sub.Password,
	}
}

func equalRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsField(header []string, name string) bool {
	for _, h := range header {
		if h == name {
			return true
		}
	}
	return false
}
