package courier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/adpack/models"
)

func TestCall_RoundTrip(t *testing.T) {
	c := New(4, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Serve(ctx, func(_ context.Context, req Request) Response {
		if req.Kind != KindSaveData {
			t.Errorf("kind = %q", req.Kind)
		}
		return Response{OK: true, SavedAs: "downloads/" + req.Path}
	})

	resp, err := c.Call(ctx, Request{Kind: KindSaveData, Data: "aGk=", Path: "a.txt"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.OK || resp.SavedAs != "downloads/a.txt" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCall_AssignsRequestID(t *testing.T) {
	c := New(1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen string
	go c.Serve(ctx, func(_ context.Context, req Request) Response {
		seen = req.ID
		return Response{OK: true}
	})

	if _, err := c.Call(ctx, Request{Kind: KindSaveURL}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if seen == "" {
		t.Error("request ID was not assigned")
	}
}

func TestCall_TimeoutWithoutServer(t *testing.T) {
	c := New(1, 50*time.Millisecond)

	// The request is queued but nothing serves it.
	_, err := c.Call(context.Background(), Request{Kind: KindSaveURL})
	if err == nil {
		t.Fatal("expected timeout with no server")
	}
	var ee *models.ExportError
	if !errors.As(err, &ee) || ee.Code != models.ErrCodeCourierTimeout {
		t.Errorf("error = %v, want COURIER_TIMEOUT", err)
	}
}

func TestCall_SlowHandlerTimesOut(t *testing.T) {
	c := New(1, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Serve(ctx, func(ctx context.Context, _ Request) Response {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
		return Response{OK: true}
	})

	start := time.Now()
	_, err := c.Call(ctx, Request{Kind: KindPackBatch})
	if err == nil {
		t.Fatal("expected timeout for slow handler")
	}
	if time.Since(start) > time.Second {
		t.Error("timeout was not enforced promptly")
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	c := New(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Serve(ctx, func(_ context.Context, _ Request) Response { return Response{OK: true} })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop on cancellation")
	}
}

func TestCall_FailureResponseIsNotAnError(t *testing.T) {
	c := New(1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Serve(ctx, func(_ context.Context, _ Request) Response {
		return Response{OK: false, Err: "disk full"}
	})

	resp, err := c.Call(ctx, Request{Kind: KindSaveData})
	if err != nil {
		t.Fatalf("transport should succeed, got %v", err)
	}
	if resp.OK || resp.Err != "disk full" {
		t.Errorf("resp = %+v", resp)
	}
}
