package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// TranslationRecord is one machine-readable line per translated file.
type TranslationRecord struct {
	Time      time.Time `json:"time"`
	Input     string    `json:"input"`
	Outcome   string    `json:"outcome"`
	Output    string    `json:"output,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Elapsed   uint32    `json:"elapsed_us,omitempty"`
}

var fieldOrder = []string{"time", "input", "outcome", "output", "error_code", "error", "elapsed_us"}

// Custom JSON marshaling to preserve field order and omit zero/empty values.
func (l TranslationRecord) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeField := func(key string, val []byte) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, `"%s":`, key)
		buf.Write(val)
	}
	for _, f := range fieldOrder {
		switch f {
		case "time":
			b, _ := json.Marshal(l.Time)
			writeField(f, b)
		case "input":
			b, _ := json.Marshal(l.Input)
			writeField(f, b)
		case "outcome":
			b, _ := json.Marshal(l.Outcome)
			writeField(f, b)
		case "output":
			if l.Output != "" {
				b, _ := json.Marshal(l.Output)
				writeField(f, b)
			}
		case "error_code":
			if l.ErrorCode != "" {
				b, _ := json.Marshal(l.ErrorCode)
				writeField(f, b)
			}
		case "error":
			if l.Error != "" {
				b, _ := json.Marshal(l.Error)
				writeField(f, b)
			}
		case "elapsed_us":
			if l.Elapsed != 0 {
				b, _ := json.Marshal(l.Elapsed)
				writeField(f, b)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RecordWriter serialises TranslationRecords as JSON lines. Safe for
// concurrent use.
type RecordWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w}
}

// Write appends rec as one JSON line. A nil writer discards the record.
func (rw *RecordWriter) Write(rec TranslationRecord) error {
	if rw == nil {
		return nil
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	msg, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal translation record: %w", err)
	}
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if _, err := rw.w.Write(append(msg, '\n')); err != nil {
		return fmt.Errorf("write translation record: %w", err)
	}
	return nil
}
