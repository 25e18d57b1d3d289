package exporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/adpack/courier"
	"github.com/use-agent/adpack/models"
	"github.com/use-agent/adpack/stealth"
	"github.com/use-agent/adpack/store"
)

// recorder is a courier handler that captures every request it serves.
type recorder struct {
	mu    sync.Mutex
	reqs  []courier.Request
	fail  func(req courier.Request) string // non-empty return fails the request
	block chan struct{}                    // when set, each request waits here
}

func (r *recorder) handle(_ context.Context, req courier.Request) courier.Response {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.fail != nil {
		if reason := r.fail(req); reason != "" {
			return courier.Response{Err: reason}
		}
	}
	return courier.Response{OK: true, SavedAs: req.Path + req.Job.ArchiveName}
}

func (r *recorder) requests() []courier.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]courier.Request, len(r.reqs))
	copy(out, r.reqs)
	return out
}

// fastOptions removes the human-scale pacing so runs finish instantly.
func fastOptions(batchSize int) Options {
	return Options{
		BatchSize:  batchSize,
		GraceDelay: -1,
		Policy: stealth.Policy{
			RestMin: time.Microsecond, RestMax: 2 * time.Microsecond,
			JitterMin: time.Microsecond, JitterMax: 2 * time.Microsecond,
		},
	}
}

func newRig(t *testing.T, batchSize int, rec *recorder) (*store.Store, *Exporter) {
	t.Helper()
	st := store.New()
	cr := courier.New(16, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cr.Serve(ctx, rec.handle)
	return st, New(st, cr, fastOptions(batchSize))
}

func record(id string) models.AdRecord {
	rec := models.AdRecord{
		ID:             id,
		AdvertiserName: "Acme",
		Headline:       "Big Sale",
	}
	rec.FinalizeTokens()
	return rec
}

func selectN(st *store.Store, n int) {
	entries := make([]store.Entry, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("10%d", i)
		entries = append(entries, store.Entry{ID: id, Record: record(id)})
	}
	st.BulkSelect(entries)
}

func TestRunBulkExport_ShardsByBatchSize(t *testing.T) {
	rec := &recorder{}
	st, ex := newRig(t, 2, rec)
	selectN(st, 7)

	if err := ex.RunBulkExport(context.Background(), models.ModeTextOnly); err != nil {
		t.Fatalf("RunBulkExport: %v", err)
	}

	reqs := rec.requests()
	if len(reqs) != 4 {
		t.Fatalf("dispatched %d batches, want ceil(7/2) = 4", len(reqs))
	}
	wantSizes := []int{2, 2, 2, 1}
	for i, req := range reqs {
		if req.Kind != courier.KindPackBatch {
			t.Errorf("request %d kind = %q", i, req.Kind)
		}
		if len(req.Job.Items) != wantSizes[i] {
			t.Errorf("batch %d has %d items, want %d", i+1, len(req.Job.Items), wantSizes[i])
		}
		wantName := fmt.Sprintf("AdPack/AdPack_Set_%d_of_4_", i+1)
		if !strings.HasPrefix(req.Job.ArchiveName, wantName) ||
			!strings.HasSuffix(req.Job.ArchiveName, ".zip") {
			t.Errorf("batch %d archive = %q, want %s*.zip", i+1, req.Job.ArchiveName, wantName)
		}
	}

	// Every record appears exactly once, in selection order.
	var names []string
	for _, req := range reqs {
		for _, it := range req.Job.Items {
			names = append(names, it.Name)
		}
	}
	if len(names) != 7 {
		t.Fatalf("got %d items across batches, want 7", len(names))
	}
	for i, name := range names {
		if wantID := fmt.Sprintf("_10%d_", i); !strings.Contains(name, wantID) {
			t.Errorf("item %d = %q, want id 10%d", i, name, i)
		}
	}
}

func TestRunBulkExport_ProgressIsMonotonicAndCompletes(t *testing.T) {
	rec := &recorder{}
	st, ex := newRig(t, 2, rec)
	selectN(st, 5)

	var mu sync.Mutex
	var seen []models.ExportProgress
	unsub := st.Subscribe(func(s store.Snapshot) {
		mu.Lock()
		seen = append(seen, s.Progress)
		mu.Unlock()
	})
	defer unsub()

	if err := ex.RunBulkExport(context.Background(), models.ModeTextOnly); err != nil {
		t.Fatalf("RunBulkExport: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("no progress notifications observed")
	}
	prev := -1
	var sawComplete bool
	for _, p := range seen {
		if p.ItemsDone < prev {
			t.Fatalf("ItemsDone went backwards: %d after %d", p.ItemsDone, prev)
		}
		prev = p.ItemsDone
		if !p.Active && p.ItemsDone == 5 && p.Percent == 100 {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Error("never observed the completed state (inactive, 5/5, 100%)")
	}
}

func TestRunBulkExport_EmptySelection(t *testing.T) {
	rec := &recorder{}
	_, ex := newRig(t, 2, rec)

	err := ex.RunBulkExport(context.Background(), models.ModeAll)
	var ee *models.ExportError
	if !errors.As(err, &ee) || ee.Code != models.ErrCodeEmptySelection {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeEmptySelection)
	}
	if len(rec.requests()) != 0 {
		t.Error("no batches must be dispatched for an empty selection")
	}
}

func TestRunBulkExport_RejectsConcurrentRun(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	st, ex := newRig(t, 5, rec)
	selectN(st, 3)

	done := make(chan error, 1)
	go func() { done <- ex.RunBulkExport(context.Background(), models.ModeTextOnly) }()

	// Wait until the first run holds the slot.
	for !ex.Active() {
		time.Sleep(time.Millisecond)
	}

	err := ex.RunBulkExport(context.Background(), models.ModeTextOnly)
	var ee *models.ExportError
	if !errors.As(err, &ee) || ee.Code != models.ErrCodeExportActive {
		t.Fatalf("concurrent run err = %v, want %s", err, models.ErrCodeExportActive)
	}

	close(rec.block)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
}

func TestRunBulkExport_FailedBatchDoesNotAbortRun(t *testing.T) {
	rec := &recorder{
		fail: func(req courier.Request) string {
			if strings.Contains(req.Job.ArchiveName, "Set_2_of_3") {
				return "disk on fire"
			}
			return ""
		},
	}
	st, ex := newRig(t, 1, rec)
	selectN(st, 3)

	var mu sync.Mutex
	var statuses []string
	unsub := st.Subscribe(func(s store.Snapshot) {
		mu.Lock()
		statuses = append(statuses, s.Progress.StatusMessage)
		mu.Unlock()
	})
	defer unsub()

	if err := ex.RunBulkExport(context.Background(), models.ModeTextOnly); err != nil {
		t.Fatalf("a failed batch must not fail the run: %v", err)
	}
	if got := len(rec.requests()); got != 3 {
		t.Fatalf("dispatched %d batches, want all 3 despite the failure", got)
	}

	mu.Lock()
	defer mu.Unlock()
	var sawFailure bool
	for _, s := range statuses {
		if strings.Contains(s, "Set 2 of 3 failed") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Errorf("failure never surfaced in status messages: %q", statuses)
	}
}

func TestRunBulkExport_ClearsSelectionAfterRun(t *testing.T) {
	rec := &recorder{}
	st, ex := newRig(t, 5, rec)
	selectN(st, 2)

	if err := ex.RunBulkExport(context.Background(), models.ModeTextOnly); err != nil {
		t.Fatalf("RunBulkExport: %v", err)
	}

	snap := st.State()
	if len(snap.Order) != 0 {
		t.Errorf("selection not cleared after run: %v", snap.Order)
	}
	if snap.Progress.Active {
		t.Error("progress still active after run")
	}
	if snap.Progress.StatusMessage != "" {
		t.Errorf("status not reset: %q", snap.Progress.StatusMessage)
	}
}

func TestRunBulkExport_VideoOnlySkipsRecordsWithoutVideo(t *testing.T) {
	rec := &recorder{}
	st, ex := newRig(t, 5, rec)

	withVideo := record("201")
	withVideo.VideoURL = "https://scontent.example/v.mp4"
	st.BulkSelect([]store.Entry{
		{ID: "200", Record: record("200")},
		{ID: "201", Record: withVideo},
		{ID: "202", Record: record("202")},
	})

	if err := ex.RunBulkExport(context.Background(), models.ModeVideoOnly); err != nil {
		t.Fatalf("RunBulkExport: %v", err)
	}

	reqs := rec.requests()
	if len(reqs) != 1 {
		t.Fatalf("dispatched %d batches, want 1", len(reqs))
	}
	items := reqs[0].Job.Items
	if len(items) != 1 {
		t.Fatalf("batch has %d items, want only the one video", len(items))
	}
	if !strings.HasSuffix(items[0].Name, "_video.mp4") || items[0].URL == "" {
		t.Errorf("item = %+v, want a video URL entry", items[0])
	}
}

func TestStart_ReturnsImmediatelyWithRunID(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	st, ex := newRig(t, 5, rec)
	selectN(st, 2)

	runID, err := ex.Start(context.Background(), models.ModeTextOnly)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if runID == "" {
		t.Error("Start returned an empty run ID")
	}
	if !ex.Active() {
		t.Error("run not marked active after Start")
	}
	close(rec.block)

	for ex.Active() {
		time.Sleep(time.Millisecond)
	}
}

func TestBuildJob_ModeAllIncludesEverything(t *testing.T) {
	rec := record("300")
	rec.ImageURL = "https://scontent.example/i.jpg"
	rec.VideoURL = "https://scontent.example/v.mp4"

	job := buildJob([]models.AdRecord{rec}, models.ModeAll, "x.zip")
	if len(job.Items) != 3 {
		t.Fatalf("job has %d items, want image + video + adcopy", len(job.Items))
	}
	wantSuffix := []string{"_image.jpg", "_video.mp4", "_adcopy.txt"}
	for i, it := range job.Items {
		if !strings.HasSuffix(it.Name, wantSuffix[i]) {
			t.Errorf("item %d = %q, want suffix %q", i, it.Name, wantSuffix[i])
		}
	}
	if job.Items[2].Data == "" {
		t.Error("adcopy item carries no inline data")
	}
}

func TestBuildJob_ModeAllWithVideoOnlyRecord(t *testing.T) {
	rec := record("301")
	rec.VideoURL = "https://scontent.example/v.mp4"

	job := buildJob([]models.AdRecord{rec}, models.ModeAll, "x.zip")
	if len(job.Items) != 2 {
		t.Fatalf("job has %d items, want video + adcopy", len(job.Items))
	}
	if !strings.HasSuffix(job.Items[0].Name, "_video.mp4") {
		t.Errorf("first item = %q", job.Items[0].Name)
	}
	if !strings.HasSuffix(job.Items[1].Name, "_adcopy.txt") {
		t.Errorf("second item = %q", job.Items[1].Name)
	}
}

func TestRunBulkExport_VideoOnlyAcrossBatches(t *testing.T) {
	rec := &recorder{}
	st, ex := newRig(t, 5, rec)

	// 7 ads, 3 of them without a video.
	entries := make([]store.Entry, 0, 7)
	for i := 0; i < 7; i++ {
		r := record(fmt.Sprintf("40%d", i))
		if i%2 == 0 { // 0, 2, 4, 6 carry videos
			r.VideoURL = fmt.Sprintf("https://scontent.example/v%d.mp4", i)
		}
		entries = append(entries, store.Entry{ID: r.ID, Record: r})
	}
	st.BulkSelect(entries)

	if err := ex.RunBulkExport(context.Background(), models.ModeVideoOnly); err != nil {
		t.Fatalf("RunBulkExport: %v", err)
	}

	reqs := rec.requests()
	if len(reqs) != 2 {
		t.Fatalf("dispatched %d batches, want ceil(7/5) = 2", len(reqs))
	}
	var items int
	for _, req := range reqs {
		items += len(req.Job.Items)
	}
	if items != 4 {
		t.Errorf("total items = %d, want the 4 videos", items)
	}
}

func TestAdCopy_Format(t *testing.T) {
	rec := models.AdRecord{
		ID:             "42",
		AdvertiserName: "Acme",
		PrimaryText:    "Buy more things.",
		CTA:            "Shop Now",
		ImageURL:       "https://scontent.example/i.jpg",
	}
	text := AdCopy(rec)

	for _, want := range []string{
		"AD-COPY DATA - 42",
		"ADVERTISER: Acme",
		"PRIMARY TEXT:\nBuy more things.",
		"HEADLINE:\nN/A",
		"CTA:\nShop Now",
		"Video: None",
		"Image: https://scontent.example/i.jpg",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("ad copy missing %q:\n%s", want, text)
		}
	}
}

func TestDownloadAdCopy_PathUnderFolder(t *testing.T) {
	rec := &recorder{}
	_, ex := newRig(t, 5, rec)

	savedAs, err := ex.DownloadAdCopy(context.Background(), record("77"))
	if err != nil {
		t.Fatalf("DownloadAdCopy: %v", err)
	}
	if !strings.HasPrefix(savedAs, "AdPack/") || !strings.HasSuffix(savedAs, "_adcopy.txt") {
		t.Errorf("saved as %q, want AdPack/*_adcopy.txt", savedAs)
	}
	reqs := rec.requests()
	if len(reqs) != 1 || reqs[0].Kind != courier.KindSaveData {
		t.Fatalf("requests = %+v", reqs)
	}
}

func TestDownloadRaw_SavesPartsIndependently(t *testing.T) {
	rec := &recorder{
		fail: func(req courier.Request) string {
			if strings.HasSuffix(req.Path, "_video.mp4") {
				return "gone"
			}
			return ""
		},
	}
	_, ex := newRig(t, 5, rec)

	ad := record("88")
	ad.VideoURL = "https://scontent.example/v.mp4"
	ad.ImageURL = "https://scontent.example/i.jpg"

	saved, err := ex.DownloadRaw(context.Background(), ad, "<p>Big Sale</p>")
	if err != nil {
		t.Fatalf("one failed part must not fail the whole save: %v", err)
	}
	// adcopy, image, and card.md succeed; the video save fails.
	if len(saved) != 3 {
		t.Errorf("saved %d parts, want 3: %v", len(saved), saved)
	}
	if got := len(rec.requests()); got != 4 {
		t.Errorf("attempted %d parts, want 4", got)
	}
}

func TestDownloadZip_SingleRecordBundle(t *testing.T) {
	rec := &recorder{}
	_, ex := newRig(t, 5, rec)

	if _, err := ex.DownloadZip(context.Background(), record("91")); err != nil {
		t.Fatalf("DownloadZip: %v", err)
	}
	reqs := rec.requests()
	if len(reqs) != 1 || reqs[0].Kind != courier.KindPackBatch {
		t.Fatalf("requests = %+v", reqs)
	}
	if !strings.HasSuffix(reqs[0].Job.ArchiveName, "_bundle.zip") {
		t.Errorf("archive = %q", reqs[0].Job.ArchiveName)
	}
}
