package sim

import (
	"encoding/json"
	"os"
	"sync"
)

// FileWriter appends scan records to a JSONL file.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter creates (or truncates) path and returns a FileWriter.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// WriteResult logs a single scan record.
func (f *FileWriter) WriteResult(rec ScanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(rec)
}

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
