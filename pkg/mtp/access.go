// Package mtp is the platform-independent entry point for browsing and
// transferring files on MTP devices. It composes device enumeration, the
// object model, the directory walker and the transfer engine on top of the
// platform backend picked at construction time; callers never branch on the
// host OS.
package mtp

import (
	"github.com/rs/zerolog"

	"github.com/portablefs/mtpkit/internal/platform"
)

// DefaultChunkSize is the transfer granularity used when no override is
// configured: 256 KiB suits USB full-speed and high-speed links.
const DefaultChunkSize = 256 << 10

// Access is the facade over one platform backend. It is cheap to construct
// and safe to share; per-device serialization happens on the Device.
type Access struct {
	backend   platform.Backend
	chunkSize int
	gvfsRoot  string
	log       zerolog.Logger
}

// Option configures an Access.
type Option func(*Access)

// WithLogger attaches a logger; without it logging is disabled.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Access) { a.log = log }
}

// WithChunkSize overrides the default transfer chunk size.
func WithChunkSize(n int) Option {
	return func(a *Access) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

// WithGVFSRoot overrides the gvfs mount directory on Linux. Ignored
// elsewhere.
func WithGVFSRoot(root string) Option {
	return func(a *Access) { a.gvfsRoot = root }
}

// New selects the backend for the host platform. It fails fast with
// mtperr.ErrPlatformUnsupported when there is none.
func New(opts ...Option) (*Access, error) {
	a := &Access{chunkSize: DefaultChunkSize, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	backend, err := platform.New(platform.Config{GVFSRoot: a.gvfsRoot})
	if err != nil {
		return nil, err
	}
	a.backend = backend
	a.log.Debug().Str("backend", backend.Name()).Msg("backend selected")
	return a, nil
}

// NewWithBackend builds an Access over an explicit backend. Tests and the
// demo mode use it with the in-memory backend.
func NewWithBackend(backend platform.Backend, opts ...Option) *Access {
	a := &Access{backend: backend, chunkSize: DefaultChunkSize, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BackendName identifies the active backend, for display and logging.
func (a *Access) BackendName() string { return a.backend.Name() }
