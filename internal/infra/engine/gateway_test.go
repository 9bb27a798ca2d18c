package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClient struct {
	text  string
	err   error
	delay time.Duration
}

func (c *stubClient) Generate(ctx context.Context, engineID, prompt string) (string, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.text, c.err
}

func TestDispatchSuccess(t *testing.T) {
	g := NewGateway(&stubClient{text: "analysis text"})

	a := g.Dispatch(context.Background(), "researcher", "req-1", "prompt", time.Second)
	if a.Failed {
		t.Fatalf("unexpected failure: %s", a.Error)
	}
	if a.RawText != "analysis text" {
		t.Fatalf("raw text = %q", a.RawText)
	}
	if a.EngineID != "researcher" || a.RequestID != "req-1" {
		t.Fatalf("identity fields wrong: %+v", a)
	}
	if a.RespondedAt.IsZero() {
		t.Fatal("missing responded-at timestamp")
	}
}

func TestDispatchFailureIsData(t *testing.T) {
	g := NewGateway(&stubClient{err: errors.New("connection refused")})

	a := g.Dispatch(context.Background(), "researcher", "req-1", "prompt", time.Second)
	if !a.Failed {
		t.Fatal("failure not recorded")
	}
	if a.Error != "connection refused" {
		t.Fatalf("error = %q", a.Error)
	}
	if a.RawText != "" {
		t.Fatal("failed analysis carries text")
	}
}

func TestDispatchTimeout(t *testing.T) {
	g := NewGateway(&stubClient{text: "too late", delay: time.Second})

	start := time.Now()
	a := g.Dispatch(context.Background(), "researcher", "req-1", "prompt", 20*time.Millisecond)
	if !a.Failed {
		t.Fatal("timeout not recorded as failure")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("dispatch blocked past its timeout: %s", elapsed)
	}
}
