package bootstrap

import (
	"sync"
	"sync/atomic"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// Holder holds the active Snapshot.
type Holder struct {
	current atomic.Pointer[Snapshot]
	opts    []Option
	logger  observability.Logger
	mu      sync.Mutex
}

// NewHolder builds the first snapshot from cfg. opts are reused by Reload.
func NewHolder(cfg *config.Config, logger observability.Logger, opts ...Option) (*Holder, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	opts = append([]Option{WithLogger(logger)}, opts...)

	snapshot, err := Build(cfg, opts...)
	if err != nil {
		return nil, err
	}

	h := &Holder{opts: opts, logger: logger}
	h.current.Store(snapshot)
	return h, nil
}

// Snapshot returns the active snapshot.
func (h *Holder) Snapshot() *Snapshot {
	return h.current.Load()
}

// Router returns the active router.
func (h *Holder) Router() *router.Router {
	return h.current.Load().Router
}

// Check reports whether cfg builds. It is suitable for config.WithCheck.
func (h *Holder) Check(cfg *config.Config) error {
	snapshot, err := Build(cfg, h.opts...)
	if err != nil {
		return err
	}
	return snapshot.Close()
}

// Reload builds a snapshot from cfg and makes it active. The active
// snapshot is kept when the build fails.
func (h *Holder) Reload(cfg *config.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot, err := Build(cfg, h.opts...)
	if err != nil {
		h.logger.Error("router rebuild failed", observability.Error(err))
		return err
	}

	old := h.current.Swap(snapshot)
	if err := old.Close(); err != nil {
		h.logger.Warn("failed to close previous link cache", observability.Error(err))
	}

	h.logger.Info("router swapped", observability.Int("routes", snapshot.Router.Len()))
	return nil
}

// Close releases the active snapshot.
func (h *Holder) Close() error {
	return h.current.Load().Close()
}
