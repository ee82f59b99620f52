package cli

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/dictcache/internal/config"
	"github.com/calvinalkan/dictcache/internal/expdict"
	"github.com/calvinalkan/dictcache/internal/fs"
	"github.com/calvinalkan/dictcache/internal/logging"
	"github.com/calvinalkan/dictcache/internal/source"
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg      *config.Config
	log      logging.Logger
	fs       fs.FS
	registry *expdict.Registry
	promReg  *prometheus.Registry
	metrics  *expdict.Metrics
}

func newApp(cfg *config.Config, log logging.Logger) *app {
	promReg := prometheus.NewRegistry()

	return &app{
		cfg:      cfg,
		log:      log,
		fs:       fs.NewReal(),
		registry: expdict.NewRegistry(nil),
		promReg:  promReg,
		metrics:  expdict.NewMetrics(promReg),
	}
}

// handle is an opened dictionary with the source it was built from.
type handle struct {
	*expdict.Dictionary

	conf    config.Dictionary
	history *source.UserHistory // set for updatable dictionaries
	words   *source.WordList    // set when the dictionary has a word list
}

func (a *app) filename(name string) string {
	return expdict.FilenameWithLocale(name, a.cfg.Locale)
}

func (a *app) dictPath(name string) string {
	return filepath.Join(a.cfg.StorageDirAbs, a.filename(name))
}

// open creates a dictionary instance for the configured dictionary name.
// Instances opened by the same app share trackers through its registry.
func (a *app) open(name string) (*handle, error) {
	conf, err := a.cfg.Dictionary(name)
	if err != nil {
		return nil, err
	}

	h := &handle{conf: conf}

	var src expdict.Source

	switch {
	case conf.Updatable:
		h.history = source.NewUserHistory(a.dictPath(name))
		src = h.history
	case conf.SourceAbs != "":
		h.words = source.NewWordList(a.fs, conf.SourceAbs)
		src = h.words
	default:
		src = expdict.StaticSource{}
	}

	err = a.fs.MkdirAll(a.cfg.StorageDirAbs, 0o750)
	if err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}

	d, err := expdict.Open(expdict.Options{
		Dir:              a.cfg.StorageDirAbs,
		Filename:         a.filename(name),
		Type:             conf.Type,
		Locale:           a.cfg.Locale,
		Updatable:        conf.Updatable,
		Source:           src,
		Registry:         a.registry,
		FS:               a.fs,
		Logger:           a.log,
		Metrics:          a.metrics,
		CrossProcessLock: a.cfg.CrossProcessLocking(),
	})
	if err != nil {
		return nil, err
	}

	h.Dictionary = d

	return h, nil
}

// openSynced opens name and brings it up to date in the calling goroutine.
// Updatable dictionaries also get their writer populated from the file.
func (a *app) openSynced(name string) (*handle, error) {
	h, err := a.open(name)
	if err != nil {
		return nil, err
	}

	h.SyncReloadIfRequired()

	err = h.Err()
	if err == nil && h.conf.Updatable {
		err = h.LoadToMemory()
	}

	if err != nil {
		_ = h.Close()

		return nil, fmt.Errorf("%w: %s: %w", ErrDictionaryError, name, err)
	}

	return h, nil
}

// persist writes the writer of an updatable dictionary to its file and
// remaps it.
func (h *handle) persist() error {
	h.history.Touch()
	h.MarkRequiresReload()
	h.SyncReloadIfRequired()

	return h.Err()
}
