package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"replicamgr/logging"
)

// JSON emits newline-delimited structured events. When compress is true
// the writer is wrapped in a zstd encoder, the way the pack's persistence
// loggers compress their append-only logs.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	closer    io.Closer
	encoder   *json.Encoder
	autoFlush bool
}

// NewJSON constructs a JSON sink writing to w. If compress is true, w is
// wrapped in a zstd stream encoder and closed (flushing the frame) on
// Close.
func NewJSON(w io.Writer, flushInterval time.Duration, compress bool) (*JSON, error) {
	if w == nil {
		w = io.Discard
	}
	var closer io.Closer
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		w = zw
		closer = zw
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{writer: buf, closer: closer, encoder: json.NewEncoder(buf), autoFlush: flushInterval <= 0}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink, nil
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := map[string]any{
		"type":     event.Type,
		"tick":     event.Tick,
		"time":     event.Time.Format(time.RFC3339Nano),
		"severity": event.Severity,
		"category": event.Category,
		"actor":    event.Actor,
		"targets":  event.Targets,
		"reliable": event.Reliable,
		"payload":  event.Payload,
		"extra":    event.Extra,
	}
	if err := s.encoder.Encode(wire); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// Close flushes buffers and, if compression is enabled, finalizes the
// zstd frame.
func (s *JSON) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		s.writer.Flush()
		s.mu.Unlock()
	}
}
