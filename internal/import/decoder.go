// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// RecordSource yields records one at a time and returns io.EOF after the last one.
type RecordSource interface {
	Next() (Record, error)
}

// RecordStream decodes one source lazily. Only the record being decoded is
// held in memory. The stream accepts a top-level JSON array of documents or a
// sequence of concatenated (newline-delimited) documents, both in MongoDB
// Extended JSON, so {"$oid": ...} and {"$date": ...} values become native BSON types.
type RecordStream struct {
	src     Source
	closers []io.Closer
	rerr    *readErrRecorder
	br      *bufio.Reader
	buf     []byte

	started bool
	array   bool
	index   int
	err     error
}

// OpenStream opens src for decoding. The caller must Close the stream.
func OpenStream(src Source) (*RecordStream, error) {
	if src.err != nil {
		return nil, src.err
	}

	s := &RecordStream{src: src}
	r, err := s.open()
	if err != nil {
		s.Close()
		return nil, s.fileError(-1, err)
	}

	s.rerr = &readErrRecorder{r: r}
	s.br = bufio.NewReaderSize(s.rerr, 64*1024)
	return s, nil
}

func (s *RecordStream) open() (io.Reader, error) {
	var r io.Reader
	if s.src.Entry != "" {
		zr, err := zip.OpenReader(s.src.Path)
		if err != nil {
			return nil, fmt.Errorf("open zip: %w", err)
		}
		s.closers = append(s.closers, zr)

		entry, err := openEntry(zr, s.src.Entry)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, entry)
		r = entry
	} else {
		f, err := os.Open(s.src.Path)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		s.closers = append(s.closers, f)
		r = f
	}

	if !strings.HasSuffix(s.src.Path, ".gz") || s.src.Entry != "" {
		return r, nil
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	s.closers = append(s.closers, gz)
	return gz, nil
}

func openEntry(zr *zip.ReadCloser, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", name, err)
		}
		return rc, nil
	}
	return nil, fmt.Errorf("zip entry %s not found", name)
}

// readErrRecorder keeps the first non-EOF read error of the underlying reader.
type readErrRecorder struct {
	r   io.Reader
	err error
}

func (e *readErrRecorder) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && e.err == nil {
		e.err = err
	}
	return n, err
}

// Next returns the next record, or io.EOF when the source is exhausted.
// Any malformed content fails the stream with an ErrDecode FileError; the
// error is sticky.
func (s *RecordStream) Next() (Record, error) {
	if s.err != nil {
		return nil, s.err
	}

	rec, err := s.next()
	if err != nil {
		// Report the underlying read error rather than the truncation it caused.
		if s.rerr.err != nil {
			err = s.rerr.err
		}
		if !errors.Is(err, io.EOF) {
			err = s.fileError(s.index, err)
		}
		s.err = err
		return nil, err
	}
	s.index++
	return rec, nil
}

func (s *RecordStream) next() (Record, error) {
	if !s.started {
		s.started = true
		if err := s.detectLayout(); err != nil {
			return nil, err
		}
	}

	if s.array {
		return s.nextElement()
	}

	b, err := s.peekSignificant()
	if err != nil {
		return nil, err // io.EOF after the last document
	}
	if b == ',' {
		return nil, errors.New("unexpected ',' between documents")
	}
	return s.readRecord()
}

// nextElement reads one array element and the separator that precedes it.
func (s *RecordStream) nextElement() (Record, error) {
	b, err := s.peekSignificant()
	if err != nil {
		return nil, unexpectedEOF(err)
	}

	switch {
	case b == ']':
		_, _ = s.br.ReadByte()
		return nil, s.endArray()
	case s.index == 0:
	case b == ',':
		_, _ = s.br.ReadByte()
		if b, err = s.peekSignificant(); err != nil {
			return nil, unexpectedEOF(err)
		}
		if b == ']' {
			return nil, errors.New("trailing ',' in array")
		}
	default:
		return nil, fmt.Errorf("expected ',' or ']' after array element, found %q", b)
	}
	return s.readRecord()
}

// detectLayout peeks at the first significant byte. A '[' starts array
// mode and is consumed; anything else is read as a document sequence.
func (s *RecordStream) detectLayout() error {
	if bom, err := s.br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = s.br.Discard(3)
	}
	b, err := s.peekSignificant()
	if err != nil {
		return err // io.EOF: empty source
	}
	if b == '[' {
		_, _ = s.br.ReadByte()
		s.array = true
	}
	return nil
}

// peekSignificant skips whitespace and returns the next byte without consuming it.
func (s *RecordStream) peekSignificant() (byte, error) {
	for {
		b, err := s.br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = s.br.ReadByte()
			continue
		}
		return b[0], nil
	}
}

// endArray requires nothing but whitespace after the closing bracket.
func (s *RecordStream) endArray() error {
	b, err := s.peekSignificant()
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected %q after top-level array", b)
}

// readRecord reads exactly one JSON object from the stream. Bytes after its
// closing brace are left for the next call.
func (s *RecordStream) readRecord() (Record, error) {
	b, err := s.br.ReadByte()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	if b != '{' {
		return nil, errors.New("record is not an object")
	}

	s.buf = append(s.buf[:0], b)
	depth, inString, escaped := 1, false, false
	for depth > 0 {
		if b, err = s.br.ReadByte(); err != nil {
			return nil, unexpectedEOF(err)
		}
		s.buf = append(s.buf, b)
		switch {
		case escaped:
			escaped = false
		case inString:
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		case b == '"':
			inString = true
		case b == '{' || b == '[':
			depth++
		case b == '}' || b == ']':
			depth--
		}
	}
	return toRecord(s.buf)
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// toRecord converts one JSON object to a document.
func toRecord(raw []byte) (Record, error) {
	if !json.Valid(raw) {
		return nil, errors.New("invalid json object")
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, fmt.Errorf("extended json: %w", err)
	}
	return doc, nil
}

func (s *RecordStream) fileError(record int, err error) error {
	return &FileError{
		File:       s.src.Name,
		Collection: s.src.Collection,
		Record:     record,
		Err:        fmt.Errorf("%w: %w", ErrDecode, err),
	}
}

// Decoded returns how many records have been returned so far.
func (s *RecordStream) Decoded() int {
	return s.index
}

// All returns the stream as an iterator. Iteration stops after the first error.
func (s *RecordStream) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the file and decompressor.
func (s *RecordStream) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
