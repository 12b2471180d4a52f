package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/vecrag/codec"
)

// VectorFileName is the debug dump written next to the index.
const VectorFileName = "vector.json"

// DebugFileName holds the chunk dump written by WriteDebugChunks.
const DebugFileName = "debug.txt"

// Record is one embedded chunk. The chunk text is its identifier.
type Record struct {
	Name   string
	Vector []float32
}

// Sink receives records from the pipeline writer. Only the writer goroutine
// calls Write, so implementations need no locking.
type Sink interface {
	Write(rec Record) error
}

// JSONSink streams records as one JSON object mapping chunk text to vector:
//
//	{
//	"chunk one":[0.1,0.2],
//	"chunk two":[0.3,0.4]
//	}
//
// Duplicate names produce duplicate keys; readers with last-wins semantics
// see the same map Run returns.
type JSONSink struct {
	w     *bufio.Writer
	c     codec.GoJSON
	buf   []byte
	first bool
	err   error
}

// NewJSONSink writes the opening brace to w. Close writes the closing brace.
func NewJSONSink(w io.Writer) (*JSONSink, error) {
	s := &JSONSink{
		w:     bufio.NewWriter(w),
		first: true,
	}
	if _, err := s.w.WriteString("{"); err != nil {
		return nil, err
	}
	return s, nil
}

// Write appends one entry.
func (s *JSONSink) Write(rec Record) error {
	if s.err != nil {
		return s.err
	}

	buf := s.buf[:0]
	if !s.first {
		buf = append(buf, ',')
	}
	buf = append(buf, '\n')
	buf, err := s.c.Append(buf, rec.Name)
	if err != nil {
		return fmt.Errorf("pipeline: encode name: %w", err)
	}
	buf = append(buf, ':')
	if buf, err = s.c.Append(buf, rec.Vector); err != nil {
		return fmt.Errorf("pipeline: encode vector: %w", err)
	}
	s.buf = buf
	s.first = false

	_, s.err = s.w.Write(buf)
	return s.err
}

// Close terminates the object and flushes buffered output. It does not
// close the underlying writer.
func (s *JSONSink) Close() error {
	if s.err != nil {
		return s.err
	}
	if _, err := s.w.WriteString("\n}"); err != nil {
		return err
	}
	return s.w.Flush()
}

// FileSink is a JSONSink over a file created through a temp file, so a
// failed run never leaves a truncated vector.json behind.
type FileSink struct {
	*JSONSink
	f    *os.File
	path string
}

// CreateFileSink creates dir/vector.json.
func CreateFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, VectorFileName)
	f, err := os.CreateTemp(dir, ".tmp-"+VectorFileName+"-*")
	if err != nil {
		return nil, err
	}
	js, err := NewJSONSink(f)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}
	return &FileSink{JSONSink: js, f: f, path: path}, nil
}

// Close finishes the document and renames it into place.
func (s *FileSink) Close() error {
	if err := s.JSONSink.Close(); err != nil {
		s.Abort()
		return err
	}
	if err := s.f.Sync(); err != nil {
		s.Abort()
		return err
	}
	if err := s.f.Close(); err != nil {
		_ = os.Remove(s.f.Name())
		return err
	}
	return os.Rename(s.f.Name(), s.path)
}

// Abort discards the partial file.
func (s *FileSink) Abort() {
	_ = s.f.Close()
	_ = os.Remove(s.f.Name())
}

// Path returns the final location of the file.
func (s *FileSink) Path() string { return s.path }

// WriteDebugChunks writes chunks joined by a blank line to dir/debug.txt.
func WriteDebugChunks(dir string, chunks []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, DebugFileName), []byte(strings.Join(chunks, "\n\n")), 0o644) //nolint:gosec // debug artifact
}
