package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/MikeSquared-Agency/courier/internal/remote"
)

const defaultMIMEType = "application/octet-stream"

// UploaderConfig tunes how source files are fetched.
type UploaderConfig struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	// SniffMIME detects the type from the payload when the source
	// response declares none.
	SniffMIME bool
}

// Uploader downloads a file from an arbitrary URL and hands it to the remote store.
type Uploader struct {
	store    remote.Store
	client   *http.Client
	maxBytes int64
	sniff    bool
	logger   *slog.Logger
}

func NewUploader(store remote.Store, cfg UploaderConfig, logger *slog.Logger) *Uploader {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 60 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 100 << 20
	}
	return &Uploader{
		store:    store,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		maxBytes: cfg.MaxBytes,
		sniff:    cfg.SniffMIME,
		logger:   logger,
	}
}

// Upload fetches locator and uploads its bytes. The returned handle is in
// state Processing; callers must await activation before using it.
func (u *Uploader) Upload(ctx context.Context, locator string) (remote.Handle, error) {
	data, mimeType, err := u.fetch(ctx, locator)
	if err != nil {
		return remote.Handle{}, err
	}

	h, err := u.store.Upload(ctx, bytes.NewReader(data), remote.UploadOptions{
		MIMEType:    mimeType,
		DisplayName: displayName(locator),
	})
	if err != nil {
		return remote.Handle{}, fmt.Errorf("%w: %s: %v", ErrUploadProtocol, locator, err)
	}
	if strings.TrimSpace(h.ID) == "" || strings.TrimSpace(h.URI) == "" {
		return remote.Handle{}, fmt.Errorf("%w: %s: response missing id or uri", ErrUploadProtocol, locator)
	}
	if h.MIMEType == "" {
		h.MIMEType = mimeType
	}
	h.State = remote.StateProcessing

	u.logger.Debug("file uploaded",
		"locator", locator,
		"file_id", h.ID,
		"mime_type", h.MIMEType,
		"bytes", len(data),
	)
	return h, nil
}

func (u *Uploader) fetch(ctx context.Context, locator string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request for %s: %v", ErrFetchFailure, locator, err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrFetchFailure, locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s returned %d", ErrFetchFailure, locator, resp.StatusCode)
	}

	limited := &io.LimitedReader{R: resp.Body, N: u.maxBytes + 1}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read %s: %v", ErrFetchFailure, locator, err)
	}
	if int64(len(data)) > u.maxBytes {
		return nil, "", fmt.Errorf("%w: %s exceeds %d bytes", ErrFetchFailure, locator, u.maxBytes)
	}

	mimeType := mediaType(resp.Header.Get("Content-Type"))
	if mimeType == "" && u.sniff {
		mimeType = mediaType(mimetype.Detect(data).String())
	}
	if mimeType == "" {
		mimeType = defaultMIMEType
	}
	return data, mimeType, nil
}

// mediaType strips parameters such as charset from a Content-Type value.
func mediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			return strings.TrimSpace(contentType[:i])
		}
		return contentType
	}
	return mt
}

func displayName(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
