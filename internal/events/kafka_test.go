package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewProducer_DisabledIsNoOp(t *testing.T) {
	p := NewProducer("", false, testLogger())
	if p.enabled {
		t.Fatal("producer with enabled=false should not be enabled")
	}
	// Publish must not panic or block even though no writer was built.
	p.Publish(context.Background(), TopicResolutionEvents, []byte("k"), []byte("v"))
	if err := p.Close(); err != nil {
		t.Errorf("Close() on a disabled producer = %v, want nil", err)
	}
}

func TestNewProducer_NoBrokersIsNoOp(t *testing.T) {
	p := NewProducer("", true, testLogger())
	if p.enabled {
		t.Fatal("producer with empty brokers should not be enabled even if requested")
	}
}

func TestNewProducer_EnabledBuildsWriter(t *testing.T) {
	p := NewProducer("localhost:9092,localhost:9093", true, testLogger())
	if !p.enabled {
		t.Fatal("producer with brokers and enabled=true should be enabled")
	}
	if p.writer == nil {
		t.Fatal("enabled producer should have a non-nil kafka.Writer")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}
