package journal

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/bybit-streams/internal/config"
	"github.com/rickgao/bybit-streams/internal/stream"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]stream.Signal
	fail    bool
	closed  bool
}

func (s *recordingSink) Write(ctx context.Context, signals []stream.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("write failed")
	}
	s.batches = append(s.batches, signals)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func testSignal(id string, typ stream.SignalType) stream.Signal {
	return stream.Signal{Type: typ, StreamID: id, Timestamp: time.Now()}
}

func TestJournal_FlushesOnBatchSize(t *testing.T) {
	feed := make(chan stream.Signal, 10)
	sink := &recordingSink{}
	j := New(Config{BatchSize: 3, FlushInterval: time.Hour}, feed, sink, nil)
	j.Start(context.Background())

	for i := 0; i < 3; i++ {
		feed <- testSignal("s1", stream.SignalConnect)
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(); got != 3 {
		t.Errorf("written = %d, want 3", got)
	}

	if err := j.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !sink.closed {
		t.Error("sink not closed")
	}
	if m := j.Stats(); m.Inserts != 3 || m.Flushes != 1 {
		t.Errorf("Stats() = %+v, want 3 inserts in 1 flush", m)
	}
}

func TestJournal_FlushesOnInterval(t *testing.T) {
	feed := make(chan stream.Signal, 10)
	sink := &recordingSink{}
	j := New(Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, feed, sink, nil)
	j.Start(context.Background())
	defer j.Stop(context.Background())

	feed <- testSignal("s1", stream.SignalStop)

	deadline := time.Now().Add(time.Second)
	for sink.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.count(); got != 1 {
		t.Errorf("written = %d, want 1", got)
	}
}

func TestJournal_ClosedFeedFlushesOnStop(t *testing.T) {
	feed := make(chan stream.Signal, 10)
	sink := &recordingSink{}
	j := New(Config{BatchSize: 100, FlushInterval: time.Hour}, feed, sink, nil)
	j.Start(context.Background())

	feed <- testSignal("s1", stream.SignalConnect)
	feed <- testSignal("s1", stream.SignalStop)
	close(feed)

	time.Sleep(20 * time.Millisecond)
	if err := j.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := sink.count(); got != 2 {
		t.Errorf("written = %d, want 2", got)
	}
}

func TestJournal_WriteErrorCounted(t *testing.T) {
	feed := make(chan stream.Signal, 1)
	sink := &recordingSink{fail: true}
	j := New(Config{BatchSize: 1, FlushInterval: time.Hour}, feed, sink, nil)

	j.add(testSignal("s1", stream.SignalDisconnect))

	if m := j.Stats(); m.Errors != 1 || m.Inserts != 0 {
		t.Errorf("Stats() = %+v, want 1 error", m)
	}
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.db")
	sink, err := NewSQLiteSink(path, 2)
	if err != nil {
		t.Fatalf("NewSQLiteSink failed: %v", err)
	}
	defer sink.Close()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	signals := []stream.Signal{
		{Type: stream.SignalConnect, StreamID: "a", Timestamp: ts},
		{Type: stream.SignalDisconnect, StreamID: "a", Timestamp: ts, Error: "eof", DataRecord: []byte(`{"topic":"x"}`)},
		{Type: stream.SignalStop, StreamID: "a", Timestamp: ts},
		{Type: stream.SignalConnect, StreamID: "b", Timestamp: ts},
	}
	if err := sink.Write(context.Background(), signals); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := sink.Signals(context.Background(), "a")
	if err != nil {
		t.Fatalf("Signals failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if records[1].Type != string(stream.SignalDisconnect) || records[1].Error != "eof" {
		t.Errorf("records[1] = %+v", records[1])
	}
	if string(records[1].DataRecord) != `{"topic":"x"}` {
		t.Errorf("DataRecord = %s", records[1].DataRecord)
	}
	if !records[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", records[0].Timestamp, ts)
	}
}

func TestOpen(t *testing.T) {
	sink, err := Open(context.Background(), config.JournalConfig{Driver: "none"})
	if err != nil || sink != nil {
		t.Errorf("Open(none) = %v, %v, want nil, nil", sink, err)
	}

	sink, err = Open(context.Background(), config.JournalConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "j.db"),
	})
	if err != nil {
		t.Fatalf("Open(sqlite) failed: %v", err)
	}
	if _, ok := sink.(*SQLiteSink); !ok {
		t.Errorf("Open(sqlite) = %T, want *SQLiteSink", sink)
	}
	sink.Close()

	if _, err := Open(context.Background(), config.JournalConfig{Driver: "mysql"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
