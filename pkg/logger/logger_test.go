package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel).With(String("component", "engine"))
	l.Info("analysis done", Float64("rsi", 55.5), Duration("duration_ms", 1500*time.Millisecond))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["component"] != "engine" || entry["message"] != "analysis done" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["rsi"] != 55.5 || entry["duration_ms"] != float64(1500) {
		t.Fatalf("unexpected fields: %v", entry)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
}

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	entries []DigestEntry
}

func (p *capturePublisher) PublishDigest(_ context.Context, topic string, entries []DigestEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.entries = append(p.entries, entries...)
	return nil
}

func TestCollectorDeduplicatesErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "digest", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("oracle failed", String("mode", "http"), Error(errors.New("timeout")))
	}
	l.Error("store failed")
	if got := l.collector.Pending(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "digest" || len(pub.entries) != 2 {
		t.Fatalf("published %d entries to %q", len(pub.entries), pub.topic)
	}
	for _, e := range pub.entries {
		if e.Message == "oracle failed" && e.Count != 3 {
			t.Fatalf("oracle entry count = %d, want 3", e.Count)
		}
	}
}
