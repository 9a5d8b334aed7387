package sim

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	rec := testRecord()
	second := rec
	second.ScanID = "scan-2"
	for _, r := range []ScanRecord{rec, second} {
		if err := fw.WriteResult(r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var got []ScanRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r ScanRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Reading != rec.Reading || got[0].Narration != rec.Narration || !got[0].ResolvedAt.Equal(rec.ResolvedAt) {
		t.Fatalf("unexpected record: %#v", got[0])
	}
	if got[1].ScanID != "scan-2" {
		t.Fatalf("unexpected second record: %#v", got[1])
	}
}

func TestNewFileWriterBadPath(t *testing.T) {
	if _, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "scans.jsonl")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
