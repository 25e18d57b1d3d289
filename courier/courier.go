// Package courier is the asynchronous request/response channel between
// the page-side export logic and the privileged packaging process. Each
// call is tagged by kind, carries a one-shot reply, and is delivered
// at-least-once per call; nothing survives a process restart.
package courier

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/adpack/models"
)

// Kind tags a request for the privileged side.
type Kind string

const (
	// KindSaveURL asks the save primitive to fetch a remote URL and
	// store it under a path.
	KindSaveURL Kind = "save_url"

	// KindSaveData asks the save primitive to store an encoded payload
	// under a path.
	KindSaveData Kind = "save_data"

	// KindPackBatch asks the packager to resolve a batch job into one
	// archive and save it.
	KindPackBatch Kind = "pack_batch"
)

// Request is one message to the privileged process.
type Request struct {
	// ID is assigned by the client; responses are matched by the
	// one-shot reply channel, the ID exists for logging and tracing.
	ID   string
	Kind Kind

	// URL and Path are set for KindSaveURL.
	URL  string
	Path string

	// Data is the encoded payload for KindSaveData.
	Data string

	// Job is set for KindPackBatch.
	Job models.BatchJob

	reply chan Response
}

// Response is the privileged side's answer to one request.
type Response struct {
	OK bool

	// Err is a human-readable failure reason, not a structured code.
	Err string

	// SavedAs is the save primitive's opaque identifier on success.
	SavedAs string
}

// Handler is the privileged side's dispatch function.
type Handler func(ctx context.Context, req Request) Response

// Client submits requests and awaits their one-shot responses.
type Client struct {
	requests chan Request
	timeout  time.Duration
}

// New creates the channel pair with the given queue depth and per-call
// timeout.
func New(queueDepth int, timeout time.Duration) *Client {
	if queueDepth <= 0 {
		queueDepth = 8
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		requests: make(chan Request, queueDepth),
		timeout:  timeout,
	}
}

// Call submits req and blocks until the response arrives, the per-call
// timeout expires, or ctx is cancelled. A timeout is a transport-level
// failure: the privileged side may still complete the work, but the
// caller will never observe it (at-least-once delivery, no dedup).
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.reply = make(chan Response, 1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return Response{}, models.NewExportError(models.ErrCodeCourierTimeout,
			"privileged process did not accept the request", ctx.Err())
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		slog.Warn("courier call abandoned", "id", req.ID, "kind", req.Kind)
		return Response{}, models.NewExportError(models.ErrCodeCourierTimeout,
			"privileged process did not respond in time", ctx.Err())
	}
}

// Serve drains the request channel and invokes handler for each request,
// replying on the one-shot channel. It returns when ctx is cancelled.
// In-flight work at cancellation is simply lost, matching the
// no-persistence contract.
func (c *Client) Serve(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.requests:
			resp := handler(ctx, req)
			select {
			case req.reply <- resp:
			default:
				// Reply channel is buffered, so this only happens if the
				// same request was somehow answered twice; drop the dup.
			}
			if !resp.OK {
				slog.Warn("courier request failed",
					"id", req.ID, "kind", req.Kind, "error", resp.Err)
			}
		}
	}
}
