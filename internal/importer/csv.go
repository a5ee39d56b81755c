package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvRecord gives access to one CSV row by header name
type csvRecord struct {
	header map[string]int
	fields []string
}

// Get returns the trimmed value of a column, or "" when the column is absent
func (r csvRecord) Get(column string) string {
	i, ok := r.header[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

type csvDecodeFunc func(rec csvRecord) (Row, error)

type csvRowReader struct {
	closer io.Closer
	reader *csv.Reader
	header map[string]int
	decode csvDecodeFunc
}

// csvStream opens a header-first CSV and decodes each record with decode
func csvStream(open Opener, required []string, decode csvDecodeFunc) func(ctx context.Context) (RowReader, error) {
	return func(ctx context.Context) (RowReader, error) {
		rc, err := open(ctx)
		if err != nil {
			return nil, err
		}

		reader := csv.NewReader(rc)
		reader.FieldsPerRecord = -1

		names, err := reader.Read()
		if err != nil {
			rc.Close()
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("file is empty")
			}
			return nil, fmt.Errorf("failed to read header: %w", err)
		}

		header := make(map[string]int, len(names))
		for i, name := range names {
			// Excel likes to start files with a byte order mark
			name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
			header[name] = i
		}
		for _, column := range required {
			if _, ok := header[column]; !ok {
				rc.Close()
				return nil, fmt.Errorf("missing column %q", column)
			}
		}

		return &csvRowReader{closer: rc, reader: reader, header: header, decode: decode}, nil
	}
}

func (r *csvRowReader) Next() (Row, error) {
	fields, err := r.reader.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return Row{}, &RowParseError{Err: err}
		}
		return Row{}, err
	}
	return r.decode(csvRecord{header: r.header, fields: fields})
}

func (r *csvRowReader) Close() error {
	return r.closer.Close()
}
