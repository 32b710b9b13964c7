// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package dataimport

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func gzipSource(t *testing.T, content string) Source {
	t.Helper()
	dir := t.TempDir()
	p := writeGzip(t, dir, "test.json.gz", content)
	return Source{Name: "test.json.gz", Collection: "test", Path: p}
}

func readAll(t *testing.T, src Source) ([]Record, error) {
	t.Helper()
	stream, err := OpenStream(src)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var out []Record
	for rec, err := range stream.All() {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func lookup(doc bson.D, key string) any {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func TestRecordStream_Layouts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"array", `[{"a":1},{"a":2},{"a":3}]`, 3},
		{"array with whitespace", "\n  [\n {\"a\":1} ,\n {\"a\":2}\n ]\n", 2},
		{"empty array", `[]`, 0},
		{"newline delimited", "{\"a\":1}\n{\"a\":2}\n", 2},
		{"concatenated", `{"a":1}{"a":2}{"a":3}`, 3},
		{"empty file", "", 0},
		{"byte order mark", "\xEF\xBB\xBF[{\"a\":1}]", 1},
		{"braces inside strings", `[{"s":"}]{[\"x"},{"t":"\\"}]`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := readAll(t, gzipSource(t, tt.content))
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("decoded %d records, want %d", len(records), tt.want)
			}
		})
	}
}

func TestRecordStream_ExtendedJSON(t *testing.T) {
	content := `[{"_id":{"$oid":"65a1b2c3d4e5f60718293a4b"},"owner":{"$oid":"65a1b2c3d4e5f60718293a4c"},` +
		`"date":{"$date":"2024-05-01T10:00:00Z"},"name":"Sevilla","tags":["a","b"],"n":7,"price":9.5}]`

	records, err := readAll(t, gzipSource(t, content))
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("decoded %d records, want 1", len(records))
	}
	doc := records[0]

	id, ok := lookup(doc, "_id").(bson.ObjectID)
	if !ok || id.Hex() != "65a1b2c3d4e5f60718293a4b" {
		t.Errorf("_id = %#v, want ObjectID 65a1b2c3d4e5f60718293a4b", lookup(doc, "_id"))
	}
	if _, ok := lookup(doc, "owner").(bson.ObjectID); !ok {
		t.Errorf("owner = %T, want bson.ObjectID", lookup(doc, "owner"))
	}
	if _, ok := lookup(doc, "date").(bson.DateTime); !ok {
		t.Errorf("date = %T, want bson.DateTime", lookup(doc, "date"))
	}
	if lookup(doc, "name") != "Sevilla" {
		t.Errorf("name = %v, want Sevilla", lookup(doc, "name"))
	}
	if doc[0].Key != "_id" || doc[len(doc)-1].Key != "price" {
		t.Errorf("field order not preserved: %v", doc)
	}
}

func TestRecordStream_DecodeErrors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantBefore int
		wantRecord int
	}{
		{"non-object element", `[{"a":1},42,{"a":3}]`, 1, 1},
		{"truncated array", `[{"a":1},{"a":2}`, 2, 2},
		{"truncated object", `[{"a":1},{"a":`, 1, 1},
		{"trailing garbage", `[{"a":1}] x`, 1, 1},
		{"top-level scalar", `"hello"`, 0, 0},
		{"bad extended json", `[{"_id":{"$oid":"nothex"}}]`, 0, 0},
		{"colon between elements", `[{"a":1}:{"b":2}]`, 1, 1},
		{"missing comma", `[{"a":1} {"b":2}]`, 1, 1},
		{"leading comma", `[,{"a":1}]`, 0, 0},
		{"trailing comma", `[{"a":1},]`, 1, 1},
		{"comma between documents", `{"a":1},{"b":2}`, 1, 1},
		{"unbalanced object", `{"a":[1}` + "\n" + `{"b":2}`, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := readAll(t, gzipSource(t, tt.content))
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("error = %v, want ErrDecode", err)
			}
			if len(records) != tt.wantBefore {
				t.Errorf("records before error = %d, want %d", len(records), tt.wantBefore)
			}
			var fe *FileError
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not a *FileError", err)
			}
			if fe.File != "test.json.gz" || fe.Collection != "test" || fe.Record != tt.wantRecord {
				t.Errorf("FileError = %+v, want record %d", fe, tt.wantRecord)
			}
		})
	}
}

func TestRecordStream_ErrorIsSticky(t *testing.T) {
	stream, err := OpenStream(gzipSource(t, `[42]`))
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	_, first := stream.Next()
	_, second := stream.Next()
	if first == nil || first != second {
		t.Errorf("Next() errors = %v, %v; want the same error twice", first, second)
	}
}

func TestRecordStream_EOF(t *testing.T) {
	stream, err := OpenStream(gzipSource(t, `[{"a":1}]`))
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	if _, err := stream.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("second Next() error = %v, want io.EOF", err)
	}
	if stream.Decoded() != 1 {
		t.Errorf("Decoded() = %d, want 1", stream.Decoded())
	}
}

func TestRecordStream_CorruptGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(jsonArray(200)))
	_ = zw.Close()
	data := buf.Bytes()

	t.Run("not gzip", func(t *testing.T) {
		p := writeFile(t, t.TempDir(), "x.json.gz", []byte("plain text"))
		_, err := OpenStream(Source{Name: "x.json.gz", Collection: "x", Path: p})
		if !errors.Is(err, ErrDecode) {
			t.Errorf("OpenStream() error = %v, want ErrDecode", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		p := writeFile(t, t.TempDir(), "x.json.gz", data[:len(data)/2])
		_, err := readAll(t, Source{Name: "x.json.gz", Collection: "x", Path: p})
		if !errors.Is(err, ErrDecode) {
			t.Errorf("decode error = %v, want ErrDecode", err)
		}
	})

	t.Run("bad checksum", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[len(corrupt)-5] ^= 0xFF // CRC32 trailer
		p := writeFile(t, t.TempDir(), "x.json.gz", corrupt)
		_, err := readAll(t, Source{Name: "x.json.gz", Collection: "x", Path: p})
		if !errors.Is(err, ErrDecode) {
			t.Errorf("decode error = %v, want ErrDecode", err)
		}
	})
}

func TestRecordStream_PlainJSONAndZip(t *testing.T) {
	dir := t.TempDir()

	p := writeFile(t, dir, "cities.json", []byte(`[{"name":"Huelva"},{"name":"Cadiz"}]`))
	records, err := readAll(t, Source{Name: "cities.json", Collection: "cities", Path: p})
	if err != nil || len(records) != 2 {
		t.Errorf("plain json: %d records, err %v; want 2", len(records), err)
	}

	zp := writeZip(t, dir, "dump.zip", map[string]string{
		"cbd.users.json": jsonArray(4),
	}, []string{"cbd.users.json"})
	records, err = readAll(t, Source{Name: "dump.zip/cbd.users.json", Collection: "users", Path: zp, Entry: "cbd.users.json"})
	if err != nil || len(records) != 4 {
		t.Errorf("zip entry: %d records, err %v; want 4", len(records), err)
	}

	_, err = OpenStream(Source{Name: "dump.zip/missing.json", Path: zp, Entry: "missing.json"})
	if !errors.Is(err, ErrDecode) {
		t.Errorf("missing entry error = %v, want ErrDecode", err)
	}
}

func TestOpenStream_MissingFile(t *testing.T) {
	_, err := OpenStream(Source{Name: "gone.json.gz", Path: filepath.Join(t.TempDir(), "gone.json.gz")})
	if !errors.Is(err, ErrDecode) || !isFileError(err) {
		t.Errorf("OpenStream() error = %v, want ErrDecode FileError", err)
	}
}
