package store

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrkitap/adboard/internal/domain"
)

func testSubmission(id string) *domain.Submission {
	return &domain.Submission{
		ID:        id,
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Kind:      domain.KindSell,
		Title:     "Algebra textbook",
		Price:     "4500",
		Phone:     "+7 700 000 0000",
		Photos:    []string{"cover.jpg", "spine.jpg"},
	}
}

func TestAppendCreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	s := NewSubmissionStore(path)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testSubmission("AB12CD34EF")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, columns, rows[0])
	assert.Equal(t, "AB12CD34EF", rows[1][0])
	assert.Equal(t, "cover.jpg;spine.jpg", rows[1][7])
}

func TestAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	s := NewSubmissionStore(path)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testSubmission("AAAA000001")))

	second := testSubmission("BBBB000002")
	second.Kind = domain.KindBuy
	second.Photos = nil
	second.Description = "looking for, cheap\n\"any condition\""
	require.NoError(t, s.Append(ctx, second))

	subs, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, "AAAA000001", subs[0].ID)
	assert.Equal(t, domain.KindSell, subs[0].Kind)
	assert.Equal(t, []string{"cover.jpg", "spine.jpg"}, subs[0].Photos)

	assert.Equal(t, domain.KindBuy, subs[1].Kind)
	assert.Empty(t, subs[1].Photos)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), subs[1].CreatedAt)
}

func TestFind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	s := NewSubmissionStore(path)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testSubmission("FINDME0001")))

	sub, err := s.Find(ctx, "FINDME0001")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "Algebra textbook", sub.Title)

	missing, err := s.Find(ctx, "NOPE000000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAllOnMissingFile(t *testing.T) {
	s := NewSubmissionStore(filepath.Join(t.TempDir(), "submissions.csv"))

	subs, err := s.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestHeaderMigrationAddsPasswordColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	legacy := "id,created_utc,kind,title,price,phone,description,photos\n" +
		"OLD0000001,2025-11-01T10:00:00Z,sell,Old row,1000,+7 701 111 1111,,a.jpg\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	s := NewSubmissionStore(path)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, testSubmission("NEW0000002")))

	subs, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "OLD0000001", subs[0].ID)
	assert.Empty(t, subs[0].Password)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, columns, rows[0])
}

func TestRewriteDropsRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	s := NewSubmissionStore(path)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testSubmission("KEEP000001")))
	require.NoError(t, s.Append(ctx, testSubmission("DROP000002")))

	subs, err := s.All(ctx)
	require.NoError(t, err)

	var kept []*domain.Submission
	for _, sub := range subs {
		if sub.ID != "DROP000002" {
			kept = append(kept, sub)
		}
	}
	require.NoError(t, s.Rewrite(ctx, kept))

	subs, err = s.All(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "KEEP000001", subs[0].ID)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not remain")
}

func TestBlankIDRowsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.csv")
	s := NewSubmissionStore(path)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, testSubmission("REAL000001")))
	require.NoError(t, s.Append(ctx, &domain.Submission{ID: "", Kind: domain.KindSell}))

	subs, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "REAL000001", subs[0].ID)
}
