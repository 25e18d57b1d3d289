// Package packager is the privileged side of the export pipeline: it
// resolves batch jobs into single archives and forwards them to the save
// primitive. The unit of failure is the individual asset: a fetch that
// fails becomes a placeholder entry recording the reason, and the batch
// carries on.
package packager

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/use-agent/adpack/cache"
	"github.com/use-agent/adpack/courier"
	"github.com/use-agent/adpack/models"
	"github.com/use-agent/adpack/saver"
)

// failedPrefix names placeholder entries after the asset they replace.
const failedPrefix = "FAILED_"

// maxConcurrentFetches bounds in-flight asset fetches within one batch.
// Batches themselves are already serialized upstream.
const maxConcurrentFetches = 3

// Options configures a Packager.
type Options struct {
	// Proxy is an optional proxy URL for asset fetches.
	Proxy string

	// FetchRatePerSec paces asset fetches; <= 0 disables pacing.
	FetchRatePerSec float64

	// FetchBurst is the limiter burst size.
	FetchBurst int

	// AssetCacheEntries sizes the fetched-asset cache; <= 0 disables it.
	AssetCacheEntries int
}

// Packager resolves batch jobs into archives.
type Packager struct {
	fetcher *fetcher
	saver   saver.Saver
	assets  *cache.Cache
}

// New creates a Packager writing through the given saver.
func New(sv saver.Saver, opts Options) *Packager {
	p := &Packager{
		fetcher: newFetcher(opts.Proxy, opts.FetchRatePerSec, opts.FetchBurst),
		saver:   sv,
	}
	if opts.AssetCacheEntries > 0 {
		p.assets = cache.New(opts.AssetCacheEntries, 0)
	}
	return p
}

// resolved is one archive entry after fetch/placeholder resolution.
type resolved struct {
	name string
	data []byte
}

// Pack resolves every item of the job (fetch or inline), substituting a
// placeholder for each failed fetch, and assembles exactly one archive.
// The returned payload is base64-encoded for the save boundary. Pack
// fails only when the archive itself cannot be produced, never because
// of individual items.
func (p *Packager) Pack(ctx context.Context, job models.BatchJob) (models.ArchiveResult, error) {
	entries := make([]resolved, len(job.Items))

	// Item fetches are concurrent within the batch; all must resolve
	// (success or placeholder) before assembly.
	sem := make(chan struct{}, maxConcurrentFetches)
	var wg sync.WaitGroup
	for i, item := range job.Items {
		if !item.IsRemote() {
			entries[i] = resolved{name: item.Name, data: []byte(item.Data)}
			continue
		}
		wg.Add(1)
		go func(idx int, it models.JobItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			entries[idx] = p.resolveRemote(ctx, it)
		}(i, item)
	}
	wg.Wait()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return models.ArchiveResult{}, fmt.Errorf("pack: add %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return models.ArchiveResult{}, fmt.Errorf("pack: write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return models.ArchiveResult{}, fmt.Errorf("pack: finalize archive: %w", err)
	}

	return models.ArchiveResult{
		Filename: job.ArchiveName,
		Payload:  base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// resolveRemote fetches one asset, consulting the cache first, and
// degrades to a placeholder on any failure.
func (p *Packager) resolveRemote(ctx context.Context, item models.JobItem) resolved {
	if p.assets != nil {
		if data, ok := p.assets.Get(item.URL); ok {
			return resolved{name: item.Name, data: data}
		}
	}

	data, err := p.fetcher.fetch(ctx, item.URL)
	if err != nil {
		slog.Warn("asset fetch failed, inserting placeholder",
			"name", item.Name, "error", err)
		return placeholder(item.Name, err)
	}

	if p.assets != nil {
		p.assets.Set(item.URL, data)
	}
	return resolved{name: item.Name, data: data}
}

// placeholder builds the substitute entry for a failed asset.
func placeholder(name string, err error) resolved {
	return resolved{
		name: failedPrefix + name + ".txt",
		data: []byte("Reason: " + err.Error()),
	}
}

// HandleRequest dispatches one courier request. It is the handler the
// privileged serve loop runs for every message.
func (p *Packager) HandleRequest(ctx context.Context, req courier.Request) courier.Response {
	switch req.Kind {
	case courier.KindSaveURL:
		savedAs, err := p.saver.SaveURL(ctx, req.URL, req.Path)
		if err != nil {
			return courier.Response{Err: err.Error()}
		}
		return courier.Response{OK: true, SavedAs: savedAs}

	case courier.KindSaveData:
		savedAs, err := p.saver.SaveData(ctx, req.Data, req.Path)
		if err != nil {
			return courier.Response{Err: err.Error()}
		}
		return courier.Response{OK: true, SavedAs: savedAs}

	case courier.KindPackBatch:
		result, err := p.Pack(ctx, req.Job)
		if err != nil {
			return courier.Response{Err: err.Error()}
		}
		savedAs, err := p.saver.SaveData(ctx, result.Payload, result.Filename)
		if err != nil {
			return courier.Response{Err: err.Error()}
		}
		slog.Info("batch packed and saved",
			"archive", result.Filename, "items", len(req.Job.Items))
		return courier.Response{OK: true, SavedAs: savedAs}
	}

	return courier.Response{Err: fmt.Sprintf("unknown request kind %q", req.Kind)}
}
