package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrkitap/adboard/internal/domain"
	"github.com/nrkitap/adboard/internal/photostore/local"
	"github.com/nrkitap/adboard/internal/store"
)

func newTestService(t *testing.T) (*SubmissionService, *store.SubmissionStore, string) {
	t.Helper()
	csvPath := filepath.Join(t.TempDir(), "submissions.csv")
	uploads := t.TempDir()

	repo := store.NewSubmissionStore(csvPath)
	photos, err := local.New(uploads)
	require.NoError(t, err)

	svc := NewSubmissionService(repo, photos, NewUploadPolicy(5, 10, 25), slog.Default())
	return svc, repo, uploads
}

func photoFile(name string, data []byte) PhotoFile {
	return PhotoFile{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func validBuy() NewSubmission {
	return NewSubmission{
		Kind:  domain.KindBuy,
		Title: "Looking for chemistry books",
		Phone: "+7 700 123 4567",
	}
}

func validSell(photos ...PhotoFile) NewSubmission {
	return NewSubmission{
		Kind:        domain.KindSell,
		Title:       "Physics textbook, grade 10",
		Price:       "3000",
		Phone:       "+7 701 765 4321",
		Description: "Barely used",
		Photos:      photos,
	}
}

func TestCreateBuyAppendsRowWithoutPhotos(t *testing.T) {
	svc, repo, uploads := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validBuy())
	require.NoError(t, err)
	require.Len(t, sub.ID, 10)

	subs, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, domain.KindBuy, subs[0].Kind)
	assert.Empty(t, subs[0].Photos)

	entries, err := os.ReadDir(uploads)
	require.NoError(t, err)
	assert.Empty(t, entries, "buy submissions must not create upload directories")
}

func TestCreateSellStoresPhotosAndRow(t *testing.T) {
	svc, repo, uploads := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validSell(
		photoFile("cover.jpg", []byte("a")),
		photoFile("back.png", []byte("b")),
		photoFile("spine.webp", []byte("c")),
	))
	require.NoError(t, err)
	require.Len(t, sub.Photos, 3)

	entries, err := os.ReadDir(filepath.Join(uploads, sub.ID))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	stored, err := repo.Find(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.ElementsMatch(t, sub.Photos, stored.Photos)
}

func TestCreateRejectsTooManyPhotos(t *testing.T) {
	svc, repo, uploads := newTestService(t)
	ctx := context.Background()

	var photos []PhotoFile
	for i := 0; i < 6; i++ {
		photos = append(photos, photoFile("p.jpg", []byte("x")))
	}

	_, err := svc.Create(ctx, validSell(photos...))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	subs, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs, "rejected submission must not write a row")

	entries, err := os.ReadDir(uploads)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected submission must not write files")
}

func TestCreateRejectsBadFileType(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), validSell(photoFile("malware.exe", []byte("x"))))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestCreateRejectsOversizedPhoto(t *testing.T) {
	svc, _, _ := newTestService(t)

	big := PhotoFile{
		Name: "huge.jpg",
		Size: 11 << 20,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(nil)), nil
		},
	}
	_, err := svc.Create(context.Background(), validSell(big))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestCreateRequiredFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	missingTitle := validBuy()
	missingTitle.Title = "   "
	_, err := svc.Create(ctx, missingTitle)
	assert.True(t, IsValidation(err))

	missingPhone := validBuy()
	missingPhone.Phone = ""
	_, err = svc.Create(ctx, missingPhone)
	assert.True(t, IsValidation(err))

	badKind := validBuy()
	badKind.Kind = domain.Kind("trade")
	_, err = svc.Create(ctx, badKind)
	assert.True(t, IsValidation(err))
}

func TestCreateAssignsDistinctIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, validBuy())
	require.NoError(t, err)
	second, err := svc.Create(ctx, validBuy())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestBuyIgnoresAttachedPhotos(t *testing.T) {
	svc, repo, uploads := newTestService(t)
	ctx := context.Background()

	in := validBuy()
	in.Photos = []PhotoFile{photoFile("sneaky.jpg", []byte("x"))}

	sub, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, sub.Photos)

	stored, err := repo.Find(ctx, sub.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Photos)

	entries, err := os.ReadDir(uploads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListNewestFirstWithLimit(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"OLD0000001", "MID0000002", "NEW0000003"} {
		require.NoError(t, repo.Append(ctx, &domain.Submission{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Kind:      domain.KindSell,
			Title:     "t",
			Phone:     "p",
		}))
	}

	subs, err := svc.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "NEW0000003", subs[0].ID)
	assert.Equal(t, "MID0000002", subs[1].ID)
}

func TestUnlock(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, &domain.Submission{
		ID:       "LOCKED0001",
		Kind:     domain.KindSell,
		Title:    "t",
		Phone:    "p",
		Password: "sekret",
	}))
	require.NoError(t, repo.Append(ctx, &domain.Submission{
		ID:    "OPEN000002",
		Kind:  domain.KindSell,
		Title: "t",
		Phone: "p",
	}))

	ok, err := svc.Unlock(ctx, "LOCKED0001", "sekret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Unlock(ctx, "LOCKED0001", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	// No password set: always unlocked.
	ok, err = svc.Unlock(ctx, "OPEN000002", "")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Unlock(ctx, "MISSING000", "x")
	assert.Error(t, err)
}

func TestDeleteRemovesRowAndPhotos(t *testing.T) {
	svc, repo, uploads := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validSell(photoFile("a.jpg", []byte("a"))))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, sub.ID))

	stored, err := repo.Find(ctx, sub.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = os.Stat(filepath.Join(uploads, sub.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateEditsFieldsAndResyncsPhotos(t *testing.T) {
	svc, repo, uploads := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validSell(photoFile("a.jpg", []byte("a"))))
	require.NoError(t, err)

	// A file appearing on disk outside the service is picked up on save.
	require.NoError(t, os.WriteFile(filepath.Join(uploads, sub.ID, "b.jpg"), []byte("b"), 0644))

	updated, err := svc.Update(ctx, sub.ID, "New title", "9999", sub.Phone, "desc", "")
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, updated.Photos)

	stored, err := repo.Find(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "New title", stored.Title)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, stored.Photos)
}

func TestAddAndRemovePhotos(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, validSell(photoFile("a.jpg", []byte("a"))))
	require.NoError(t, err)

	n, err := svc.AddPhotos(ctx, sub.ID, []PhotoFile{photoFile("b.jpg", []byte("b"))})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.Find(ctx, sub.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, stored.Photos)

	require.NoError(t, svc.RemovePhoto(ctx, sub.ID, "a.jpg"))

	stored, err = repo.Find(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.jpg"}, stored.Photos)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\boot.ini", "boot.ini"},
		{"my photo (1).png", "my_photo__1_.png"},
		{"....", "file"},
		{"", "file"},
		{"кітап.jpg", "_____.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 10)
	assert.Equal(t, id, SanitizeFilename(id), "ids must be filesystem-safe")
}
