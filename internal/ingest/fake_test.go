package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/courier/internal/remote"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// instantAfter fires immediately so poll loops run without sleeping.
func instantAfter(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type statusReply struct {
	state remote.State
	mime  string
	err   error
}

// fakeStore names uploaded files after the display name so tests can script
// status replies per file regardless of upload order.
type fakeStore struct {
	mu          sync.Mutex
	uploads     []remote.UploadOptions
	payloads    map[string]string
	statuses    map[string][]statusReply
	statusCalls map[string]int
	statusLog   []string
	uploadFn    func(opts remote.UploadOptions) (remote.Handle, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payloads:    map[string]string{},
		statuses:    map[string][]statusReply{},
		statusCalls: map[string]int{},
	}
}

func (f *fakeStore) script(id string, replies ...statusReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = replies
}

func (f *fakeStore) Upload(_ context.Context, r io.Reader, opts remote.UploadOptions) (remote.Handle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return remote.Handle{}, err
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, opts)
	f.payloads[opts.DisplayName] = string(data)
	fn := f.uploadFn
	f.mu.Unlock()

	if fn != nil {
		return fn(opts)
	}
	return remote.Handle{
		ID:       "files/" + opts.DisplayName,
		URI:      remote.URIPrefix + opts.DisplayName,
		MIMEType: opts.MIMEType,
		State:    remote.StateProcessing,
	}, nil
}

// Status replays the scripted replies for id, repeating the last one.
// Unscripted files are active on the first poll.
func (f *fakeStore) Status(_ context.Context, id string) (remote.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.statusCalls[id]
	f.statusCalls[id] = n + 1
	f.statusLog = append(f.statusLog, id)

	replies := f.statuses[id]
	reply := statusReply{state: remote.StateActive}
	if len(replies) > 0 {
		if n >= len(replies) {
			n = len(replies) - 1
		}
		reply = replies[n]
	}
	if reply.err != nil {
		return remote.Handle{}, reply.err
	}
	name := strings.TrimPrefix(id, "files/")
	return remote.Handle{
		ID:       id,
		URI:      remote.URIPrefix + name,
		MIMEType: reply.mime,
		State:    reply.state,
	}, nil
}

func (f *fakeStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeStore) totalStatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.statusCalls {
		total += n
	}
	return total
}

// sourceServer serves every path as a PNG except paths containing "missing",
// which return 404, and "/raw", which declares no Content-Type.
type sourceServer struct {
	*httptest.Server
	hits atomic.Int64
}

func newSourceServer() *sourceServer {
	s := &sourceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		switch {
		case strings.Contains(r.URL.Path, "missing"):
			http.NotFound(w, r)
		case r.URL.Path == "/raw":
			w.Header()["Content-Type"] = nil
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "%PDF-1.4\n%raw bytes")
		default:
			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "png:"+r.URL.Path)
		}
	}))
	return s
}
