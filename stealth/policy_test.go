package stealth

import (
	"context"
	"testing"
	"time"
)

func TestUniform_WithinBounds(t *testing.T) {
	p := Policy{RestMin: 5 * time.Second, RestMax: 12 * time.Second}
	for i := 0; i < 1000; i++ {
		d := uniform(p.RestMin, p.RestMax)
		if d < p.RestMin || d > p.RestMax {
			t.Fatalf("draw %v outside [%v, %v]", d, p.RestMin, p.RestMax)
		}
	}
}

func TestUniform_DegenerateBounds(t *testing.T) {
	if d := uniform(time.Second, time.Second); d != time.Second {
		t.Errorf("equal bounds: got %v", d)
	}
	if d := uniform(2*time.Second, time.Second); d != 2*time.Second {
		t.Errorf("inverted bounds collapse to min: got %v", d)
	}
}

func TestRest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{RestMin: time.Hour, RestMax: 2 * time.Hour}
	start := time.Now()
	err := p.Rest(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Rest did not return promptly on cancellation")
	}
}

func TestJitter_ZeroPolicyReturnsImmediately(t *testing.T) {
	var p Policy
	start := time.Now()
	if err := p.Jitter(context.Background()); err != nil {
		t.Fatalf("Jitter: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("zero policy should not sleep")
	}
}
