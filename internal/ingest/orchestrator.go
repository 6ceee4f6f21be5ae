package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/courier/internal/remote"
)

// Config groups the tunables of the ingestion pipeline.
type Config struct {
	Uploader UploaderConfig
	Waiter   WaiterConfig
	// BlockConcurrency bounds how many turns resolve their files at once.
	// Files inside one turn are always resolved sequentially.
	BlockConcurrency int
}

// Orchestrator turns request history plus the current turn into an ordered
// Conversation, uploading and activating files along the way.
type Orchestrator struct {
	store       remote.Store
	uploader    *Uploader
	waiter      *Waiter
	concurrency int
	logger      *slog.Logger
}

func New(store remote.Store, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.BlockConcurrency <= 0 {
		cfg.BlockConcurrency = 4
	}
	return &Orchestrator{
		store:       store,
		uploader:    NewUploader(store, cfg.Uploader, logger),
		waiter:      NewWaiter(store, cfg.Waiter, logger),
		concurrency: cfg.BlockConcurrency,
		logger:      logger,
	}
}

// blockJob is one turn waiting for its files to be resolved.
type blockJob struct {
	item int
	role string
	text string
	refs []FileReference
}

type blockOutput struct {
	block   Block
	ok      bool
	uploads []UploadRecord
}

// Ingest resolves every file referenced by history and turn and assembles the
// conversation. Per-file and per-item failures are recorded as warnings in
// Result.Diagnostics and never abort the call. When nothing at all could be
// assembled it returns ErrNoContent together with the diagnostics gathered.
func (o *Orchestrator) Ingest(ctx context.Context, history []json.RawMessage, turn Turn) (*Result, error) {
	diags := &diagnostics{logger: o.logger}

	jobs := make([]blockJob, 0, len(history)+1)
	for i, raw := range history {
		if job, ok := o.historyJob(ctx, diags, i, raw); ok {
			jobs = append(jobs, job)
		}
	}
	jobs = append(jobs, currentTurnJob(turn))

	outputs := make([]blockOutput, len(jobs))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			files, uploads := o.resolveFiles(ctx, diags, job)
			block, ok := Assemble(job.role, job.text, files)
			outputs[i] = blockOutput{block: block, ok: ok, uploads: uploads}
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	for _, out := range outputs {
		if !out.ok {
			continue
		}
		res.Context = append(res.Context, out.block)
		res.Uploads = append(res.Uploads, out.uploads...)
	}

	if len(res.Context) == 0 {
		diags.fail(ctx, ErrNoContent)
		res.Diagnostics = sortDiagnostics(diags.list())
		return res, ErrNoContent
	}

	res.Diagnostics = sortDiagnostics(diags.list())
	o.logger.Info("conversation assembled",
		"blocks", len(res.Context),
		"uploads", len(res.Uploads),
		"warnings", len(res.Diagnostics),
	)
	return res, nil
}

func (o *Orchestrator) historyJob(ctx context.Context, diags *diagnostics, idx int, raw json.RawMessage) (blockJob, bool) {
	parsed := parseHistoryItem(raw)
	item, ok := parsed.Get()
	if !ok {
		diags.warn(ctx, idx, "", "", parsed.Err())
		return blockJob{}, false
	}

	text := parseText(item.Text)
	body, ok := text.Get()
	if !ok {
		diags.warn(ctx, idx, item.Role, "", text.Err())
	}

	fileData := parseFileData(item.FileData)
	entries, ok := fileData.Get()
	if !ok {
		diags.warn(ctx, idx, item.Role, "", fileData.Err())
	}

	job := blockJob{item: idx, role: item.Role, text: body}
	for _, entry := range entries {
		desc := parseFileDescriptor(entry)
		fd, ok := desc.Get()
		if !ok {
			diags.warn(ctx, idx, item.Role, "", desc.Err())
			continue
		}
		job.refs = append(job.refs, NewFileReference(fd.URI, fd.MIMEType))
	}
	return job, true
}

func currentTurnJob(turn Turn) blockJob {
	job := blockJob{item: CurrentTurn, role: RoleUser, text: turn.Text}
	for _, loc := range turn.FileLocators {
		job.refs = append(job.refs, NewFileReference(loc, ""))
	}
	return job
}

// resolveFiles handles the files of one turn in order. A file that cannot be
// resolved is reported and dropped; its siblings continue.
func (o *Orchestrator) resolveFiles(ctx context.Context, diags *diagnostics, job blockJob) ([]FilePart, []UploadRecord) {
	var (
		files   []FilePart
		uploads []UploadRecord
	)
	for _, ref := range job.refs {
		if ref.Origin == AlreadyRemote {
			part, err := o.useRemote(ctx, ref)
			if err != nil {
				diags.warn(ctx, job.item, job.role, ref.Locator, err)
				continue
			}
			files = append(files, part)
			continue
		}

		h, err := o.uploader.Upload(ctx, ref.Locator)
		if err != nil {
			diags.warn(ctx, job.item, job.role, ref.Locator, err)
			continue
		}
		h, err = o.waiter.AwaitActive(ctx, h)
		if err != nil {
			diags.warn(ctx, job.item, job.role, ref.Locator, err)
			continue
		}
		files = append(files, filePartFromHandle(h))
		uploads = append(uploads, UploadRecord{URI: h.URI, MIMEType: h.MIMEType})
	}
	return files, uploads
}

// useRemote passes an already-remote reference through. Without a MIME type
// the store is asked for it once; nothing is fetched or uploaded.
func (o *Orchestrator) useRemote(ctx context.Context, ref FileReference) (FilePart, error) {
	if ref.MIMEType != "" {
		return FilePart{URI: ref.Locator, MIMEType: ref.MIMEType}, nil
	}

	id := remote.FileID(ref.Locator)
	if id == "" {
		return FilePart{}, fmt.Errorf("%w: remote uri %q names no file", ErrMalformedInput, ref.Locator)
	}
	h, err := o.store.Status(ctx, id)
	if err != nil {
		return FilePart{}, fmt.Errorf("%w: lookup %s: %v", ErrActivationFailed, id, err)
	}
	if h.State == remote.StateFailed {
		return FilePart{}, fmt.Errorf("%w: %s reported failed state", ErrActivationFailed, id)
	}
	mimeType := h.MIMEType
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	return FilePart{URI: ref.Locator, MIMEType: mimeType}, nil
}

// sortDiagnostics orders history items by index with the current turn last.
func sortDiagnostics(d []Diagnostic) []Diagnostic {
	key := func(item int) int {
		if item == CurrentTurn {
			return math.MaxInt
		}
		return item
	}
	sort.SliceStable(d, func(i, j int) bool {
		return key(d[i].Item) < key(d[j].Item)
	})
	return d
}
