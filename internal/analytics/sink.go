package analytics

import (
	"bufio"
	"io"
	"sync"

	"github.com/francoispqt/gojay"
)

// Sink receives samples from the pipeline goroutine.
type Sink interface {
	Write(s Sample) error
	Flush() error
}

// WriterSink writes newline-delimited JSON.
type WriterSink struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *gojay.Encoder
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	bw := bufio.NewWriter(w)
	return &WriterSink{w: bw, enc: gojay.NewEncoder(bw)}
}

// Write implements Sink.
func (s *WriterSink) Write(sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.EncodeObject(sample); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// Flush implements Sink.
func (s *WriterSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// MemorySink keeps samples in memory.
type MemorySink struct {
	mu      sync.Mutex
	samples []Sample
}

// Write implements Sink.
func (m *MemorySink) Write(s Sample) error {
	m.mu.Lock()
	m.samples = append(m.samples, s)
	m.mu.Unlock()
	return nil
}

// Flush implements Sink.
func (m *MemorySink) Flush() error { return nil }

// Samples returns a copy of what has been written.
func (m *MemorySink) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sample(nil), m.samples...)
}

// DiscardSink drops everything.
type DiscardSink struct{}

// Write implements Sink.
func (DiscardSink) Write(Sample) error { return nil }

// Flush implements Sink.
func (DiscardSink) Flush() error { return nil }
