package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/events"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_PublishExpenseRecorded(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, DefaultTopic, nil)

	if err := p.PublishExpenseRecorded(context.Background(), 77); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "77" {
		t.Errorf("key = %q, want 77", m.Key)
	}
	got, err := events.ExpenseRecordedFromJSON(m.Value)
	if err != nil || got.ID != 77 || got.Version != events.CurrentVersion {
		t.Errorf("unexpected value %s: %v", m.Value, err)
	}
	if len(m.Headers) != 1 || string(m.Headers[0].Value) != events.TypeExpenseRecorded {
		t.Errorf("missing type header: %+v", m.Headers)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("close: %v", err)
	}
}

func TestPublisher_WriteError(t *testing.T) {
	cause := errors.New("leader not available")
	p := newPublisher(&fakeWriter{err: cause}, "t", nil)
	if err := p.PublishExpenseRecorded(context.Background(), 1); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
