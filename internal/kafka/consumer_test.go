package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func testConsumer() *Consumer {
	return &Consumer{workers: 3, log: zap.NewNop(), backoff: time.Millisecond, maxBackoff: 4 * time.Millisecond}
}

func TestHandle_RetriesUntilSuccess(t *testing.T) {
	c := testConsumer()
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis down")
		}
		return nil
	}
	if !c.handle(context.Background(), h, kafka.Message{Partition: 1, Offset: 7}) {
		t.Fatal("handle gave up before success")
	}
	if calls != 3 {
		t.Fatalf("handler calls: got %d want 3", calls)
	}
}

func TestHandle_StopsOnShutdown(t *testing.T) {
	c := testConsumer()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		cancel()
		return errors.New("still failing")
	}
	done := make(chan bool, 1)
	go func() { done <- c.handle(ctx, h, kafka.Message{}) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("failed message reported as handled")
		}
	case <-time.After(time.Second):
		t.Fatal("handle kept retrying after shutdown")
	}
	if calls != 1 {
		t.Fatalf("handler calls after shutdown: %d", calls)
	}
}

func TestWorkerFor_PinsPartition(t *testing.T) {
	for p := 0; p < 12; p++ {
		w := workerFor(p, 3)
		if w < 0 || w >= 3 {
			t.Fatalf("partition %d -> worker %d out of range", p, w)
		}
		if workerFor(p, 3) != w {
			t.Fatalf("partition %d moved between workers", p)
		}
	}
	if workerFor(4, 1) != 0 {
		t.Fatal("single worker must take every partition")
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	headers := InjectTrace(trace.ContextWithSpanContext(context.Background(), sc),
		[]kafka.Header{{Key: "x-store-id", Value: []byte("s-1")}})
	if Header(headers, "traceparent") == "" || Header(headers, "x-store-id") != "s-1" {
		t.Fatalf("headers: %+v", headers)
	}
	got := trace.SpanContextFromContext(ExtractTrace(context.Background(), headers))
	if got.TraceID() != sc.TraceID() || !got.IsRemote() {
		t.Fatalf("extracted: %+v", got)
	}
}
