package service

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nrkitap/adboard/internal/domain"
	"github.com/nrkitap/adboard/internal/photostore"
)

// submissionRepository is the subset of store.SubmissionStore that
// SubmissionService requires.
type submissionRepository interface {
	Append(ctx context.Context, sub *domain.Submission) error
	All(ctx context.Context) ([]*domain.Submission, error)
	Find(ctx context.Context, id string) (*domain.Submission, error)
	Rewrite(ctx context.Context, subs []*domain.Submission) error
	Export(ctx context.Context) (io.ReadCloser, error)
}

// ValidationError is a user-facing rejection of a form submission. Its
// message is shown on the form; anything else is a system failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a form-level rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// allowedExtensions is the photo type policy; anything else is rejected
// before a single byte is written.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// UploadPolicy caps what a single submission may attach.
type UploadPolicy struct {
	MaxFiles      int
	MaxFileBytes  int64
	MaxTotalBytes int64
}

// NewUploadPolicy converts the configured MB limits into byte caps.
func NewUploadPolicy(maxFiles, maxFileMB, maxTotalMB int) UploadPolicy {
	return UploadPolicy{
		MaxFiles:      maxFiles,
		MaxFileBytes:  int64(maxFileMB) << 20,
		MaxTotalBytes: int64(maxTotalMB) << 20,
	}
}

// PhotoFile is one uploaded file, decoupled from the HTTP layer. Size
// must be known up front so the policy can reject before reading.
type PhotoFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// NewSubmission carries the validated-to-be form fields of one ad.
type NewSubmission struct {
	Kind        domain.Kind
	Title       string
	Price       string
	Phone       string
	Description string
	Password    string
	Photos      []PhotoFile
}

type SubmissionService struct {
	repo   submissionRepository
	photos photostore.Store
	policy UploadPolicy
	logger *slog.Logger
}

func NewSubmissionService(repo submissionRepository, photos photostore.Store, policy UploadPolicy, logger *slog.Logger) *SubmissionService {
	return &SubmissionService{
		repo:   repo,
		photos: photos,
		policy: policy,
		logger: logger,
	}
}

// Create validates the submission, assigns it an id, stores the photos
// (sell only) and appends the CSV row. Validation failures write
// nothing. If the row append fails after photos were stored, the photos
// are removed so no orphan directory remains.
func (s *SubmissionService) Create(ctx context.Context, in NewSubmission) (*domain.Submission, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	sub := &domain.Submission{
		ID:          NewID(),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Kind:        in.Kind,
		Title:       strings.TrimSpace(in.Title),
		Price:       strings.TrimSpace(in.Price),
		Phone:       strings.TrimSpace(in.Phone),
		Description: strings.TrimSpace(in.Description),
		Password:    strings.TrimSpace(in.Password),
	}

	if in.Kind == domain.KindSell && len(in.Photos) > 0 {
		saved, err := s.savePhotos(ctx, sub.ID, in.Photos)
		if err != nil {
			if cerr := s.photos.DeleteAll(ctx, sub.ID); cerr != nil {
				s.logger.Error("failed to clean up photos after save error", "id", sub.ID, "error", cerr)
			}
			return nil, err
		}
		sub.Photos = saved
	}

	if err := s.repo.Append(ctx, sub); err != nil {
		if len(sub.Photos) > 0 {
			if cerr := s.photos.DeleteAll(ctx, sub.ID); cerr != nil {
				s.logger.Error("failed to clean up photos after append error", "id", sub.ID, "error", cerr)
			}
		}
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}

	s.logger.Info("submission created",
		"id", sub.ID,
		"kind", sub.Kind,
		"photos", len(sub.Photos),
	)
	return sub, nil
}

func (s *SubmissionService) validate(in NewSubmission) error {
	if !in.Kind.Valid() {
		return validationf("choose buy or sell")
	}
	if strings.TrimSpace(in.Title) == "" {
		return validationf("title is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return validationf("phone is required")
	}
	if in.Kind != domain.KindSell {
		return nil
	}
	return s.validatePhotos(in.Photos, s.policy.MaxFiles)
}

func (s *SubmissionService) validatePhotos(photos []PhotoFile, maxFiles int) error {
	if maxFiles > 0 && len(photos) > maxFiles {
		return validationf("too many photos: at most %d allowed", maxFiles)
	}
	var total int64
	for _, p := range photos {
		ext := strings.ToLower(filepath.Ext(p.Name))
		if !allowedExtensions[ext] {
			return validationf("unsupported photo type: %s", p.Name)
		}
		if p.Size > s.policy.MaxFileBytes {
			return validationf("photo %s exceeds the %d MB limit", p.Name, s.policy.MaxFileBytes>>20)
		}
		total += p.Size
	}
	if total > s.policy.MaxTotalBytes {
		return validationf("photos exceed the total %d MB limit", s.policy.MaxTotalBytes>>20)
	}
	return nil
}

func (s *SubmissionService) savePhotos(ctx context.Context, id string, photos []PhotoFile) ([]string, error) {
	saved := make([]string, 0, len(photos))
	for _, p := range photos {
		rc, err := p.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %s: %w", p.Name, err)
		}
		name, err := s.photos.Save(ctx, id, SanitizeFilename(p.Name), rc)
		if cerr := rc.Close(); cerr != nil {
			s.logger.Error("failed to close upload", "name", p.Name, "error", cerr)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save photo %s: %w", p.Name, err)
		}
		saved = append(saved, name)
	}
	return saved, nil
}

// List returns stored submissions newest first, capped at limit
// (unlimited when limit <= 0).
func (s *SubmissionService) List(ctx context.Context, limit int) ([]*domain.Submission, error) {
	subs, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

// Get returns the submission with the given id, or nil when absent.
func (s *SubmissionService) Get(ctx context.Context, id string) (*domain.Submission, error) {
	return s.repo.Find(ctx, id)
}

// Unlock checks a card password in constant time. Cards without a
// password are always unlocked.
func (s *SubmissionService) Unlock(ctx context.Context, id, password string) (bool, error) {
	sub, err := s.repo.Find(ctx, id)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, fmt.Errorf("submission not found")
	}
	if !sub.Locked() {
		return true, nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(sub.Password)) == 1, nil
}

// Update edits a card's fields and resynchronizes its photos column
// with the photo store. Admin only.
func (s *SubmissionService) Update(ctx context.Context, id, title, price, phone, description, password string) (*domain.Submission, error) {
	subs, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	var target *domain.Submission
	for _, sub := range subs {
		if sub.ID == id {
			target = sub
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("submission not found")
	}

	target.Title = strings.TrimSpace(title)
	target.Price = strings.TrimSpace(price)
	target.Phone = strings.TrimSpace(phone)
	target.Description = strings.TrimSpace(description)
	target.Password = strings.TrimSpace(password)

	names, err := s.photos.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	target.Photos = names

	if err := s.repo.Rewrite(ctx, subs); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}
	return target, nil
}

// Delete removes the CSV row and the card's photos. Admin only.
func (s *SubmissionService) Delete(ctx context.Context, id string) error {
	subs, err := s.repo.All(ctx)
	if err != nil {
		return err
	}

	kept := subs[:0]
	for _, sub := range subs {
		if sub.ID != id {
			kept = append(kept, sub)
		}
	}
	if err := s.repo.Rewrite(ctx, kept); err != nil {
		return fmt.Errorf("failed to remove submission: %w", err)
	}

	if err := s.photos.DeleteAll(ctx, id); err != nil {
		s.logger.Error("failed to delete photos", "id", id, "error", err)
	}
	s.logger.Info("submission deleted", "id", id)
	return nil
}

// AddPhotos stores additional photos on an existing card and resyncs
// its photos column. Admin only; the per-submission count cap does not
// apply here, only type and size limits.
func (s *SubmissionService) AddPhotos(ctx context.Context, id string, photos []PhotoFile) (int, error) {
	sub, err := s.repo.Find(ctx, id)
	if err != nil {
		return 0, err
	}
	if sub == nil {
		return 0, fmt.Errorf("submission not found")
	}
	if len(photos) == 0 {
		return 0, validationf("no files selected")
	}
	if err := s.validatePhotos(photos, 0); err != nil {
		return 0, err
	}

	saved, err := s.savePhotos(ctx, id, photos)
	if err != nil {
		return 0, err
	}
	if err := s.resyncPhotos(ctx, id); err != nil {
		return len(saved), err
	}
	return len(saved), nil
}

// RemovePhoto deletes one photo file and resyncs the card's photos
// column. Admin only.
func (s *SubmissionService) RemovePhoto(ctx context.Context, id, filename string) error {
	if err := s.photos.Delete(ctx, id, filename); err != nil && !errors.Is(err, photostore.ErrNotFound) {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return s.resyncPhotos(ctx, id)
}

// ExportCSV streams the raw submissions file for the admin download.
func (s *SubmissionService) ExportCSV(ctx context.Context) (io.ReadCloser, error) {
	return s.repo.Export(ctx)
}

// resyncPhotos rewrites a card's photos column from what the photo
// store actually holds.
func (s *SubmissionService) resyncPhotos(ctx context.Context, id string) error {
	subs, err := s.repo.All(ctx)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if sub.ID != id {
			continue
		}
		names, err := s.photos.List(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list photos: %w", err)
		}
		sub.Photos = names
		return s.repo.Rewrite(ctx, subs)
	}
	return fmt.Errorf("submission not found")
}

// NewID returns a fresh 10 character upper-case hex identifier.
func NewID() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:])[:10])
}

// SanitizeFilename strips path elements and anything outside a safe
// character set from an uploaded filename.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
