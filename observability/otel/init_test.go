package otel

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,x-team=vault,broken,=skip,")
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %v", headers)
	}
	if headers["authorization"] != "Bearer abc" || headers["x-team"] != "vault" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestSamplerRatio(t *testing.T) {
	if desc := Sampler(0).Description(); !strings.Contains(desc, "AlwaysOnSampler") {
		t.Fatalf("expected always-on root sampler, got %s", desc)
	}
	if desc := Sampler(0.25).Description(); !strings.Contains(desc, "TraceIDRatioBased{0.25}") {
		t.Fatalf("expected ratio sampler, got %s", desc)
	}
}

func TestInitValidation(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name to fail")
	}
	if _, err := Init(context.Background(), Config{ServiceName: "vaultd", SampleRatio: 2}); err == nil {
		t.Fatalf("expected out-of-range ratio to fail")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "vaultd"})
	if err != nil {
		t.Fatalf("init without exporters: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if Tracer() == nil {
		t.Fatalf("expected tracer")
	}
}

func TestShutdownAllReverseOrder(t *testing.T) {
	var order []string
	failing := errors.New("meter flush")
	stops := []Shutdown{
		func(context.Context) error { order = append(order, "traces"); return nil },
		func(context.Context) error { order = append(order, "metrics"); return failing },
	}
	if err := shutdownAll(context.Background(), stops, nil); !errors.Is(err, failing) {
		t.Fatalf("expected meter failure, got %v", err)
	}
	if strings.Join(order, ",") != "metrics,traces" {
		t.Fatalf("unexpected shutdown order %v", order)
	}
	cause := errors.New("exporter")
	if err := shutdownAll(context.Background(), stops, cause); !errors.Is(err, cause) {
		t.Fatalf("expected original cause, got %v", err)
	}
}
