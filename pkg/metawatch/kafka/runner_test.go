package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

type fakeSink struct {
	mu    sync.Mutex
	calls []TableUpdate
	err   error
}

func (f *fakeSink) ApplyTable(logical, table string, version uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, TableUpdate{Logical: logical, Table: table, Version: version})
	return f.err
}

func (f *fakeSink) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRunner(sink Sink) *Runner {
	cfg := Config{Enabled: true, Driver: DriverKafka}
	return New(cfg, sink, Options{})
}

func TestHandleMessage_AppliesAndDedupesVersion(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(sink)

	u := TableUpdate{Logical: "occurrence", Table: "occurrence_20260101", Version: 1, TS: time.Now().UTC()}
	b, _ := json.Marshal(u)
	msg := &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Timestamp: time.Now().UTC(), Value: b}

	if err := r.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if err := r.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("second handleMessage (duplicate version): %v", err)
	}
	if got := sink.Count(); got != 1 {
		t.Fatalf("ApplyTable called %d times, want 1 (second is a version duplicate)", got)
	}
}

func TestHandleMessage_NewerVersionApplies(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(sink)

	for v := uint64(1); v <= 2; v++ {
		u := TableUpdate{Logical: "occurrence", Table: "occurrence_gen", Version: v}
		b, _ := json.Marshal(u)
		msg := &sarama.ConsumerMessage{Value: b, Timestamp: time.Now().UTC()}
		if err := r.handleMessage(context.Background(), msg); err != nil {
			t.Fatalf("handleMessage v=%d: %v", v, err)
		}
	}
	if got := sink.Count(); got != 2 {
		t.Fatalf("ApplyTable called %d times, want 2", got)
	}
}

func TestHandleMessage_RejectsMissingFields(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(sink)

	u := TableUpdate{Logical: "", Table: "x", Version: 1}
	b, _ := json.Marshal(u)
	msg := &sarama.ConsumerMessage{Value: b}
	if err := r.handleMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for missing logical name")
	}
}

func TestHandleMessage_RejectsGarbage(t *testing.T) {
	sink := &fakeSink{}
	r := newTestRunner(sink)
	msg := &sarama.ConsumerMessage{Value: []byte("not json")}
	if err := r.handleMessage(context.Background(), msg); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestReadiness_FalseBeforeAssignment(t *testing.T) {
	r := newTestRunner(&fakeSink{})
	if ready, _ := r.Readiness(); ready {
		t.Fatal("expected not ready before any partition assignment")
	}
}
