// Package exporter orchestrates export runs: it shards the current
// selection into fixed-size batches, dispatches each batch over the
// courier, paces consecutive batches with a randomized rest, and keeps
// the progress model in the store up to date. A failed batch is recorded
// and the run continues; only cancellation stops a run early.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/google/uuid"

	"github.com/use-agent/adpack/courier"
	"github.com/use-agent/adpack/models"
	"github.com/use-agent/adpack/stealth"
	"github.com/use-agent/adpack/store"
	"github.com/use-agent/adpack/webhook"
)

const (
	// defaultBatchSize keeps encoded archives comfortably under the save
	// boundary's payload limit and bounds the blast radius of a failed set.
	defaultBatchSize = 5

	defaultFolder = "AdPack"

	// defaultGraceDelay keeps the final progress message visible before
	// the selection is cleared.
	defaultGraceDelay = 3 * time.Second
)

// Options configures an Exporter.
type Options struct {
	// BatchSize is the number of records per archive; defaults to 5.
	BatchSize int

	// Folder is the subdirectory every saved file lands in.
	Folder string

	// GraceDelay is how long the completion message stays up before the
	// selection is cleared. <= 0 clears synchronously.
	GraceDelay time.Duration

	// Policy provides the randomized rest between consecutive batches.
	Policy stealth.Policy

	// WebhookURL, when set, receives export lifecycle events.
	WebhookURL    string
	WebhookSecret string
}

// Exporter drives export runs against a store and a courier client.
type Exporter struct {
	store   *store.Store
	courier *courier.Client
	opts    Options
	conv    *converter.Converter
	running atomic.Bool
}

// New creates an Exporter. Zero option fields get defaults.
func New(st *store.Store, cr *courier.Client, opts Options) *Exporter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Folder == "" {
		opts.Folder = defaultFolder
	}
	if opts.GraceDelay == 0 {
		opts.GraceDelay = defaultGraceDelay
	}
	if opts.Policy == (stealth.Policy{}) {
		opts.Policy = stealth.DefaultPolicy()
	}
	return &Exporter{
		store:   st,
		courier: cr,
		opts:    opts,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Active reports whether a bulk run is in flight.
func (e *Exporter) Active() bool { return e.running.Load() }

// Start validates preflight conditions, then launches the run on its
// own goroutine and returns its run ID immediately. ctx must outlive
// the run; pass the application context, not a request context.
func (e *Exporter) Start(ctx context.Context, mode models.ExportMode) (string, error) {
	records, err := e.begin()
	if err != nil {
		return "", err
	}
	runID := uuid.NewString()
	go func() {
		defer e.running.Store(false)
		_ = e.run(ctx, mode, runID, records)
	}()
	return runID, nil
}

// RunBulkExport is the blocking form of Start. The returned error
// covers preflight failures and cancellation only; batch failures are
// contained, surfaced through the progress model, and never abort the
// run.
func (e *Exporter) RunBulkExport(ctx context.Context, mode models.ExportMode) error {
	records, err := e.begin()
	if err != nil {
		return err
	}
	defer e.running.Store(false)
	return e.run(ctx, mode, uuid.NewString(), records)
}

// begin claims the single-run slot and snapshots the selection in
// insertion order.
func (e *Exporter) begin() ([]models.AdRecord, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, models.NewExportError(models.ErrCodeExportActive,
			"an export run is already in progress", nil)
	}
	snap := e.store.State()
	if len(snap.Order) == 0 {
		e.running.Store(false)
		return nil, models.NewExportError(models.ErrCodeEmptySelection,
			"no ads selected", nil)
	}
	records := make([]models.AdRecord, 0, len(snap.Order))
	for _, id := range snap.Order {
		records = append(records, snap.Selection[id])
	}
	return records, nil
}

func (e *Exporter) run(ctx context.Context, mode models.ExportMode, runID string, records []models.AdRecord) error {
	total := len(records)
	batches := (total + e.opts.BatchSize - 1) / e.opts.BatchSize
	date := time.Now().Format("2006-01-02")

	slog.Info("bulk export starting", "run", runID, "mode", mode, "ads", total, "sets", batches)
	e.store.UpdateProgress(store.ProgressPatch{
		Active:        ptr(true),
		CurrentBatch:  ptr(0),
		TotalBatches:  ptr(batches),
		ItemsDone:     ptr(0),
		ItemsTotal:    ptr(total),
		StatusMessage: ptr(fmt.Sprintf("Preparing %d ads in %d sets", total, batches)),
	})

	var failed int
	for i := 0; i < batches; i++ {
		start := i * e.opts.BatchSize
		end := start + e.opts.BatchSize
		if end > total {
			end = total
		}

		e.store.UpdateProgress(store.ProgressPatch{
			CurrentBatch:  ptr(i + 1),
			StatusMessage: ptr(fmt.Sprintf("Delivering set %d of %d", i+1, batches)),
		})

		name := fmt.Sprintf("%s/AdPack_Set_%d_of_%d_%s.zip", e.opts.Folder, i+1, batches, date)
		job := buildJob(records[start:end], mode, name)

		if len(job.Items) == 0 {
			// Possible under video-only mode when no record in the slice
			// carries a video. Nothing to archive; the slice still counts
			// as processed.
			e.store.UpdateProgress(store.ProgressPatch{
				ItemsDone:     ptr(end),
				StatusMessage: ptr(fmt.Sprintf("Set %d of %d had no matching assets", i+1, batches)),
			})
		} else if err := e.dispatch(ctx, job); err != nil {
			failed++
			slog.Warn("batch delivery failed",
				"set", i+1, "of", batches, "archive", job.ArchiveName, "error", err)
			e.store.UpdateProgress(store.ProgressPatch{
				ItemsDone:     ptr(end),
				StatusMessage: ptr(fmt.Sprintf("Set %d of %d failed, continuing", i+1, batches)),
			})
			e.notify(runID, "export.batch_failed", map[string]any{
				"set": i + 1, "of": batches, "error": err.Error(),
			})
		} else {
			e.store.UpdateProgress(store.ProgressPatch{
				ItemsDone:     ptr(end),
				StatusMessage: ptr(fmt.Sprintf("Set %d of %d delivered", i+1, batches)),
			})
		}

		if i+1 < batches {
			e.store.UpdateProgress(store.ProgressPatch{
				StatusMessage: ptr("Waiting before next set"),
			})
			if err := e.opts.Policy.Rest(ctx); err != nil {
				e.store.UpdateProgress(store.ProgressPatch{
					Active:        ptr(false),
					StatusMessage: ptr("Export cancelled"),
				})
				e.notify(runID, "export.failed", map[string]any{"reason": "cancelled"})
				return err
			}
		}
	}

	summary := fmt.Sprintf("Export complete: %d sets", batches)
	if failed > 0 {
		summary = fmt.Sprintf("Export finished: %d of %d sets failed", failed, batches)
	}
	e.store.UpdateProgress(store.ProgressPatch{
		Active:        ptr(false),
		StatusMessage: ptr(summary),
	})
	slog.Info("bulk export finished", "run", runID, "sets", batches, "failed", failed)
	e.notify(runID, "export.completed", map[string]any{
		"ads": total, "sets": batches, "failed": failed,
	})

	e.finishUp()
	return nil
}

// finishUp clears the selection after the grace delay so the final
// status stays readable for a moment.
func (e *Exporter) finishUp() {
	if e.opts.GraceDelay <= 0 {
		e.clearAfterRun()
		return
	}
	time.AfterFunc(e.opts.GraceDelay, e.clearAfterRun)
}

func (e *Exporter) clearAfterRun() {
	e.store.Clear()
	e.store.UpdateProgress(store.ProgressPatch{
		CurrentBatch:  ptr(0),
		TotalBatches:  ptr(0),
		ItemsDone:     ptr(0),
		ItemsTotal:    ptr(0),
		StatusMessage: ptr(""),
	})
}

// dispatch sends one batch job over the courier and folds transport
// failures and handler refusals into a single error.
func (e *Exporter) dispatch(ctx context.Context, job models.BatchJob) error {
	resp, err := e.courier.Call(ctx, courier.Request{Kind: courier.KindPackBatch, Job: job})
	if err != nil {
		return err
	}
	if !resp.OK {
		return models.NewExportError(models.ErrCodeSaveFailed, resp.Err, nil)
	}
	return nil
}

// buildJob assembles the archive entries for one slice of records.
func buildJob(records []models.AdRecord, mode models.ExportMode, archiveName string) models.BatchJob {
	job := models.BatchJob{ArchiveName: archiveName}
	for _, rec := range records {
		prefix := rec.FilePrefix()
		switch mode {
		case models.ModeVideoOnly:
			if rec.HasVideo() {
				job.Items = append(job.Items, models.JobItem{
					Name: prefix + "_video.mp4", URL: rec.VideoURL,
				})
			}
		case models.ModeTextOnly:
			job.Items = append(job.Items, models.JobItem{
				Name: prefix + "_adcopy.txt", Data: AdCopy(rec),
			})
		default: // ModeAll
			if rec.HasImage() {
				job.Items = append(job.Items, models.JobItem{
					Name: prefix + "_image.jpg", URL: rec.ImageURL,
				})
			}
			if rec.HasVideo() {
				job.Items = append(job.Items, models.JobItem{
					Name: prefix + "_video.mp4", URL: rec.VideoURL,
				})
			}
			job.Items = append(job.Items, models.JobItem{
				Name: prefix + "_adcopy.txt", Data: AdCopy(rec),
			})
		}
	}
	return job
}

// DownloadZip packages one record (all assets plus ad copy) into a
// single archive and returns the save primitive's identifier.
func (e *Exporter) DownloadZip(ctx context.Context, rec models.AdRecord) (string, error) {
	name := fmt.Sprintf("%s/%s_bundle.zip", e.opts.Folder, rec.FilePrefix())
	job := buildJob([]models.AdRecord{rec}, models.ModeAll, name)
	resp, err := e.courier.Call(ctx, courier.Request{Kind: courier.KindPackBatch, Job: job})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", models.NewExportError(models.ErrCodeSaveFailed, resp.Err, nil)
	}
	return resp.SavedAs, nil
}

// DownloadAdCopy saves only the generated ad-copy text for one record.
func (e *Exporter) DownloadAdCopy(ctx context.Context, rec models.AdRecord) (string, error) {
	path := fmt.Sprintf("%s/%s_adcopy.txt", e.opts.Folder, rec.FilePrefix())
	resp, err := e.courier.Call(ctx, courier.Request{
		Kind: courier.KindSaveData, Data: AdCopy(rec), Path: path,
	})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", models.NewExportError(models.ErrCodeSaveFailed, resp.Err, nil)
	}
	return resp.SavedAs, nil
}

// DownloadRaw saves each part of a record as its own file: the ad copy,
// the video and image by URL, and, when the card's HTML snapshot is
// available, a Markdown rendition of the card. Parts fail independently;
// an error is returned only when nothing could be saved.
func (e *Exporter) DownloadRaw(ctx context.Context, rec models.AdRecord, cardHTML string) ([]string, error) {
	prefix := e.opts.Folder + "/" + rec.FilePrefix()

	parts := []courier.Request{
		{Kind: courier.KindSaveData, Data: AdCopy(rec), Path: prefix + "_adcopy.txt"},
	}
	if rec.HasVideo() {
		parts = append(parts, courier.Request{
			Kind: courier.KindSaveURL, URL: rec.VideoURL, Path: prefix + "_video.mp4",
		})
	}
	if rec.HasImage() {
		parts = append(parts, courier.Request{
			Kind: courier.KindSaveURL, URL: rec.ImageURL, Path: prefix + "_image.jpg",
		})
	}
	if cardHTML != "" {
		md, err := e.conv.ConvertString(cardHTML)
		if err != nil {
			slog.Warn("card markdown conversion failed", "id", rec.ID, "error", err)
		} else {
			parts = append(parts, courier.Request{
				Kind: courier.KindSaveData, Data: md, Path: prefix + "_card.md",
			})
		}
	}

	var saved []string
	var lastErr error
	for _, p := range parts {
		resp, err := e.courier.Call(ctx, p)
		switch {
		case err != nil:
			lastErr = err
			slog.Warn("raw part save failed", "path", p.Path, "error", err)
		case !resp.OK:
			lastErr = models.NewExportError(models.ErrCodeSaveFailed, resp.Err, nil)
			slog.Warn("raw part save refused", "path", p.Path, "error", resp.Err)
		default:
			saved = append(saved, resp.SavedAs)
		}
	}
	if len(saved) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return saved, nil
}

// DownloadFile saves a single remote asset under the export folder.
func (e *Exporter) DownloadFile(ctx context.Context, rawURL, name string) (string, error) {
	resp, err := e.courier.Call(ctx, courier.Request{
		Kind: courier.KindSaveURL, URL: rawURL, Path: e.opts.Folder + "/" + name,
	})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", models.NewExportError(models.ErrCodeSaveFailed, resp.Err, nil)
	}
	return resp.SavedAs, nil
}

func (e *Exporter) notify(runID, event string, data map[string]any) {
	if e.opts.WebhookURL == "" {
		return
	}
	webhook.DeliverAsync(e.opts.WebhookURL, e.opts.WebhookSecret, &webhook.Event{
		Type:      event,
		RunID:     runID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
}

func ptr[T any](v T) *T { return &v }
