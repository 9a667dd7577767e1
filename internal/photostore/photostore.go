package photostore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the requested photo does not exist.
var ErrNotFound = errors.New("photo not found")

// Store keeps the photos of a submission under its id. Filenames are
// expected to be sanitized by the caller; implementations must still
// reject anything that escapes the submission's namespace.
type Store interface {
	// Save stores the file under the submission id and returns the name
	// actually used (a suffix is added on collision).
	Save(ctx context.Context, submissionID, filename string, r io.Reader) (string, error)
	// Open returns the photo bytes and its MIME type.
	Open(ctx context.Context, submissionID, filename string) (io.ReadCloser, string, error)
	// List returns the submission's photo filenames in sorted order.
	List(ctx context.Context, submissionID string) ([]string, error)
	Delete(ctx context.Context, submissionID, filename string) error
	// DeleteAll removes every photo of the submission. Removing an id
	// that has no photos is not an error.
	DeleteAll(ctx context.Context, submissionID string) error
}
