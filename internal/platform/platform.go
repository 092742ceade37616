// Package platform holds the raw device-access capability set and its
// per-OS implementations. Everything above this package is portable; the
// build tags on platform_linux.go and platform_windows.go decide which
// backend New returns.
package platform

import (
	"io"
	"time"
)

// Kind classifies a device object.
type Kind int

const (
	KindUnknown Kind = iota
	KindStorage
	KindFolder
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// DeviceInfo is the identity of an attached device as reported by the
// platform stack. Name may be empty or garbage; the enumerator above this
// layer applies the fallback-label policy.
type DeviceInfo struct {
	ID          string
	Name        string
	Description string
	Serial      string
}

// ObjectInfo describes one object (storage, folder or file) on a device.
// Handle is opaque and only valid within the session that produced it.
// Capacity and Free are -1 when the platform cannot report them.
type ObjectInfo struct {
	Handle      string
	Name        string
	Kind        Kind
	Size        int64
	Modified    time.Time
	Description string
	Capacity    int64
	Free        int64
}

// Config carries backend construction hints. Fields are backend specific and
// ignored by backends they do not apply to.
type Config struct {
	// GVFSRoot overrides the gvfs mount directory scanned by the Linux
	// backend. Empty means /run/user/<uid>/gvfs.
	GVFSRoot string
}

// Backend enumerates attached devices and opens sessions against them.
// Implementations are not required to be safe for concurrent use of a single
// session; the layer above serializes per-device access.
type Backend interface {
	// Name identifies the backend ("gvfs", "wpd", ...) for logging.
	Name() string
	// Devices re-queries the platform for attached devices. A device that is
	// attached but not ready may be omitted.
	Devices() ([]DeviceInfo, error)
	// Open starts a session against one device. Handles obtained from the
	// session are invalid once it is closed.
	Open(id string) (Session, error)
}

// Session is the scope of validity for object handles. All methods report
// stale handles as mtperr.ErrObjectNotFound and a vanished device as
// *mtperr.DisconnectedError.
type Session interface {
	// Storages lists the device's storages, sorted by name.
	Storages() ([]ObjectInfo, error)
	// Children lists the immediate children of a folder or storage, sorted
	// by name. Children whose names cannot be resolved are omitted.
	Children(handle string) ([]ObjectInfo, error)
	// Stat re-reads the properties of a single object.
	Stat(handle string) (ObjectInfo, error)
	// OpenRead opens a file object's content for streaming.
	OpenRead(handle string) (io.ReadCloser, error)
	// Create starts writing a new file under parent. The object only becomes
	// visible under name when Commit is called; Abort leaves no object
	// behind.
	Create(parent, name string, size int64) (WriteSession, error)
	// MakeDir creates a folder under parent and returns it.
	MakeDir(parent, name string) (ObjectInfo, error)
	// Remove deletes an object, recursively for folders.
	Remove(handle string) error
	Close() error
}

// WriteSession is an in-flight upload. Exactly one of Commit or Abort must be
// called.
type WriteSession interface {
	io.Writer
	Commit() (ObjectInfo, error)
	Abort() error
}

// New returns the backend for the host platform, or
// mtperr.ErrPlatformUnsupported when there is none.
func New(cfg Config) (Backend, error) {
	return newBackend(cfg)
}
