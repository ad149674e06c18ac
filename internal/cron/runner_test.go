package cronrunner

import (
	"context"
	"errors"
	"testing"
)

type ctxKey struct{}

func TestAdd_InvalidSpec(t *testing.T) {
	r := New(nil, nil)
	if _, err := r.Add("bad", "not a spec", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("expected schedule error")
	}
	if r.Trigger("bad") {
		t.Fatalf("invalid job must not be registered")
	}
}

func TestTrigger_UsesBaseContextAndSurvivesFailures(t *testing.T) {
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	r := New(nil, base)

	var got any
	calls := 0
	if _, err := r.Add("snapshot", "0 55 23 * * *", func(ctx context.Context) error {
		calls++
		got = ctx.Value(ctxKey{})
		return errors.New("db down")
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.Add("panics", "@every 1m", func(context.Context) error { panic("boom") }); err != nil {
		t.Fatalf("add: %v", err)
	}

	if !r.Trigger("snapshot") || calls != 1 || got != "base" {
		t.Fatalf("calls=%d ctx=%v", calls, got)
	}
	if !r.Trigger("panics") {
		t.Fatalf("panicking job not registered")
	}
	if r.Trigger("missing") {
		t.Fatalf("unknown job triggered")
	}
}

func TestStartStop(t *testing.T) {
	r := New(nil, context.Background())
	if _, err := r.Add("noop", "@every 1h", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	r.Stop()
}
