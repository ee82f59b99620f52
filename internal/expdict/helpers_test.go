package expdict_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dictcache/internal/expdict"
	"github.com/calvinalkan/dictcache/internal/fs"
	"github.com/calvinalkan/dictcache/internal/logging"
)

var errWriteFailed = errors.New("write failed")

// stubSource is a controllable [expdict.Source].
type stubSource struct {
	mu    sync.Mutex
	words []string

	changed     atomic.Bool
	needsReload bool
	loads       atomic.Int32
	rebuilt     atomic.Int32
}

func newStubSource(needsReload bool, words ...string) *stubSource {
	return &stubSource{words: words, needsReload: needsReload}
}

func (s *stubSource) setWords(words ...string) {
	s.mu.Lock()
	s.words = words
	s.mu.Unlock()
}

func (s *stubSource) LoadInto(sink expdict.WordSink) error {
	s.loads.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.words {
		sink.AddUnigram(w, "", 100, false)
	}

	return nil
}

func (s *stubSource) HasContentChanged() bool        { return s.changed.Load() }
func (s *stubSource) NeedsReloadBeforeWriting() bool { return s.needsReload }
func (s *stubSource) Rebuilt()                       { s.rebuilt.Add(1) }

// countingWriter counts SerializeTo calls and fails them while fail is set.
type countingWriter struct {
	*expdict.MemoryWriter

	writes atomic.Int32
	fail   atomic.Bool
}

func newCountingWriter() *countingWriter {
	return &countingWriter{MemoryWriter: expdict.NewMemoryWriter(fs.NewReal())}
}

func (w *countingWriter) SerializeTo(path string) error {
	w.writes.Add(1)

	if w.fail.Load() {
		return errWriteFailed
	}

	return w.MemoryWriter.SerializeTo(path)
}

// newTestDict opens a dictionary with test defaults: a private registry,
// a temp dir, a silent logger and isolated metrics. Closed on cleanup.
func newTestDict(t *testing.T, opts expdict.Options) *expdict.Dictionary {
	t.Helper()

	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}

	if opts.Filename == "" {
		opts.Filename = expdict.FilenameWithLocale("user", "en_US")
	}

	if opts.Type == "" {
		opts.Type = "user"
	}

	if opts.Registry == nil {
		opts.Registry = expdict.NewRegistry(nil)
	}

	if opts.Logger == nil {
		opts.Logger = logging.Dummy()
	}

	if opts.Metrics == nil {
		opts.Metrics = expdict.NewMetrics(prometheus.NewRegistry())
	}

	d, err := expdict.Open(opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = d.Close() })

	return d
}
