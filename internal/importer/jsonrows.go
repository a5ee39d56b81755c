package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

type jsonDecodeFunc func(raw json.RawMessage) (Row, error)

// jsonRowReader walks the elements of a JSON array. The array must parse as a
// whole; a bad element only fails its own row.
type jsonRowReader struct {
	elements []json.RawMessage
	pos      int
	decode   jsonDecodeFunc
}

func jsonStream(open Opener, decode jsonDecodeFunc) func(ctx context.Context) (RowReader, error) {
	return func(ctx context.Context) (RowReader, error) {
		rc, err := open(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read: %w", err)
		}

		var elements []json.RawMessage
		if err := json.Unmarshal(data, &elements); err != nil {
			return nil, fmt.Errorf("failed to parse JSON array: %w", err)
		}
		return &jsonRowReader{elements: elements, decode: decode}, nil
	}
}

func (r *jsonRowReader) Next() (Row, error) {
	if r.pos >= len(r.elements) {
		return Row{}, io.EOF
	}
	raw := r.elements[r.pos]
	r.pos++
	return r.decode(raw)
}

func (r *jsonRowReader) Close() error {
	return nil
}
