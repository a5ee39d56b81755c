package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/amaumene/trackarr/internal/models"
)

// Stage orders streams inside one run. Lower stages run first regardless of
// the order the caller passes streams in.
type Stage int

const (
	// StageCreate rows create a draft for their natural key or augment it
	StageCreate Stage = iota
	// StageLookupOrCreate rows attach to an existing draft, creating one only when absent
	StageLookupOrCreate
)

func (s Stage) String() string {
	switch s {
	case StageCreate:
		return "create"
	case StageLookupOrCreate:
		return "lookup_or_create"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Row is one decoded input row, already normalized to the canonical scales
type Row struct {
	Key        string
	Lot        models.MediaLot
	Source     models.MediaSource
	Identifier string

	Seen        *models.ImportSeen
	Review      *models.ImportReview
	Collections []string
}

// RowParseError marks a single malformed row. The reader stays usable.
type RowParseError struct {
	Err error
}

func (e *RowParseError) Error() string {
	return e.Err.Error()
}

func (e *RowParseError) Unwrap() error {
	return e.Err
}

func rowError(format string, args ...any) error {
	return &RowParseError{Err: fmt.Errorf(format, args...)}
}

// RowReader yields rows. Next returns io.EOF when done, a *RowParseError for a
// bad row, and any other error when the stream itself broke.
type RowReader interface {
	Next() (Row, error)
	Close() error
}

// Opener opens the raw bytes of a stream
type Opener func(ctx context.Context) (io.ReadCloser, error)

// FileOpener opens a local file
func FileOpener(path string) Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return f, nil
	}
}

// Stream is one named input of a run
type Stream struct {
	Name  string
	Stage Stage
	// Lot is reported on failed items when every row of the stream has the same lot
	Lot  *models.MediaLot
	Open func(ctx context.Context) (RowReader, error)
}

func isRowError(err error) bool {
	var rowErr *RowParseError
	return errors.As(err, &rowErr)
}

func lotPtr(lot models.MediaLot) *models.MediaLot {
	return &lot
}
