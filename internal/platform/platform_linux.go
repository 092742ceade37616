//go:build linux

package platform

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"

	"github.com/portablefs/mtpkit/pkg/mtperr"
)

// The Linux backend reads MTP devices through the gvfs fuse mount the
// desktop stack maintains under /run/user/<uid>/gvfs. Every attached device
// shows up there as a directory named like "mtp:host=Moto_G_0123456789",
// with one subdirectory per storage. Object handles are therefore plain
// paths inside that mount.
type gvfsBackend struct {
	fs        afero.Fs
	root      string
	diskStats bool
}

func newBackend(cfg Config) (Backend, error) {
	root := cfg.GVFSRoot
	if root == "" {
		root = fmt.Sprintf("/run/user/%d/gvfs", os.Getuid())
	}
	return &gvfsBackend{fs: afero.NewOsFs(), root: root, diskStats: true}, nil
}

// NewGVFSBackend builds the Linux backend on an arbitrary filesystem.
// Tests run it against afero.NewMemMapFs.
func NewGVFSBackend(fs afero.Fs, root string) Backend {
	return &gvfsBackend{fs: fs, root: root}
}

func (b *gvfsBackend) Name() string { return "gvfs" }

func (b *gvfsBackend) Devices() ([]DeviceInfo, error) {
	entries, err := afero.ReadDir(b.fs, b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "gvfs mount dir %q not found", b.root)
		}
		return nil, errors.Wrap(err, "listing gvfs mounts")
	}
	var devices []DeviceInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// A device that is attached but still negotiating has no storages
		// yet; report it once it is ready.
		children, err := afero.ReadDir(b.fs, path.Join(b.root, entry.Name()))
		if err != nil || len(children) == 0 {
			continue
		}
		devices = append(devices, parseMountName(entry.Name()))
	}
	return devices, nil
}

// parseMountName extracts identity from a gvfs mount directory name of the
// form "mtp:host=<vendor>_<model>_<serial>". Anything it cannot parse is
// left empty for the enumerator's fallback chain.
func parseMountName(dirname string) DeviceInfo {
	info := DeviceInfo{ID: dirname}
	if _, after, ok := strings.Cut(dirname, "="); ok {
		info.Name = after
		if i := strings.Index(after, "_"); i > 0 {
			info.Description = after[:i]
		}
		if i := strings.LastIndex(after, "_"); i >= 0 && i+1 < len(after) {
			info.Serial = after[i+1:]
		}
	}
	return info
}

func (b *gvfsBackend) Open(id string) (Session, error) {
	devPath := path.Join(b.root, id)
	ok, err := afero.DirExists(b.fs, devPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening device %q", id)
	}
	if !ok {
		return nil, errors.Wrapf(mtperr.ErrDeviceNotFound, "%s", id)
	}
	return &gvfsSession{backend: b, devID: id, devPath: devPath}, nil
}

type gvfsSession struct {
	backend *gvfsBackend
	devID   string
	devPath string
}

// wrap classifies a filesystem error for the given handle. A vanished path
// is a stale handle while the device mount still exists, and a disconnect
// once the mount itself is gone.
func (s *gvfsSession) wrap(err error, handle string) error {
	if err == nil {
		return nil
	}
	if os.IsPermission(err) {
		return errors.Wrapf(mtperr.ErrAccessDenied, "%s", handle)
	}
	if os.IsNotExist(err) {
		if ok, dirErr := afero.DirExists(s.backend.fs, s.devPath); dirErr == nil && !ok {
			return &mtperr.DisconnectedError{DeviceID: s.devID, Err: err}
		}
		return errors.Wrapf(mtperr.ErrObjectNotFound, "%s", handle)
	}
	return errors.Wrapf(err, "%s", handle)
}

func (s *gvfsSession) Storages() ([]ObjectInfo, error) {
	entries, err := afero.ReadDir(s.backend.fs, s.devPath)
	if err != nil {
		return nil, s.wrap(err, s.devPath)
	}
	var storages []ObjectInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := ObjectInfo{
			Handle:      path.Join(s.devPath, entry.Name()),
			Name:        entry.Name(),
			Kind:        KindStorage,
			Description: entry.Name(),
			Capacity:    -1,
			Free:        -1,
		}
		if s.backend.diskStats {
			if usage, err := disk.Usage(info.Handle); err == nil {
				info.Capacity = int64(usage.Total)
				info.Free = int64(usage.Free)
			}
		}
		storages = append(storages, info)
	}
	return storages, nil
}

func (s *gvfsSession) Children(handle string) ([]ObjectInfo, error) {
	entries, err := afero.ReadDir(s.backend.fs, handle)
	if err != nil {
		return nil, s.wrap(err, handle)
	}
	children := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		children = append(children, fileObjectInfo(path.Join(handle, entry.Name()), entry))
	}
	return children, nil
}

func (s *gvfsSession) Stat(handle string) (ObjectInfo, error) {
	fi, err := s.backend.fs.Stat(handle)
	if err != nil {
		return ObjectInfo{}, s.wrap(err, handle)
	}
	return fileObjectInfo(handle, fi), nil
}

func fileObjectInfo(handle string, fi os.FileInfo) ObjectInfo {
	info := ObjectInfo{
		Handle:   handle,
		Name:     fi.Name(),
		Kind:     KindFile,
		Modified: fi.ModTime(),
		Capacity: -1,
		Free:     -1,
	}
	if fi.IsDir() {
		info.Kind = KindFolder
	} else {
		info.Size = fi.Size()
	}
	return info
}

func (s *gvfsSession) OpenRead(handle string) (io.ReadCloser, error) {
	f, err := s.backend.fs.Open(handle)
	if err != nil {
		return nil, s.wrap(err, handle)
	}
	return f, nil
}

func (s *gvfsSession) Create(parent, name string, size int64) (WriteSession, error) {
	// Stream into a uniquely named temp object and rename on commit, so an
	// aborted upload never leaves a half-written file under the final name.
	tmp := path.Join(parent, fmt.Sprintf(".%s.part-%s", name, uuid.NewString()))
	f, err := s.backend.fs.Create(tmp)
	if err != nil {
		return nil, s.wrap(err, parent)
	}
	return &gvfsWrite{sess: s, file: f, tmp: tmp, final: path.Join(parent, name)}, nil
}

type gvfsWrite struct {
	sess  *gvfsSession
	file  afero.File
	tmp   string
	final string
}

func (w *gvfsWrite) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	return n, w.sess.wrap(err, w.tmp)
}

func (w *gvfsWrite) Commit() (ObjectInfo, error) {
	if err := w.file.Close(); err != nil {
		_ = w.sess.backend.fs.Remove(w.tmp)
		return ObjectInfo{}, w.sess.wrap(err, w.tmp)
	}
	if err := w.sess.backend.fs.Rename(w.tmp, w.final); err != nil {
		_ = w.sess.backend.fs.Remove(w.tmp)
		return ObjectInfo{}, w.sess.wrap(err, w.final)
	}
	return w.sess.Stat(w.final)
}

func (w *gvfsWrite) Abort() error {
	_ = w.file.Close()
	if err := w.sess.backend.fs.Remove(w.tmp); err != nil && !os.IsNotExist(err) {
		return w.sess.wrap(err, w.tmp)
	}
	return nil
}

func (s *gvfsSession) MakeDir(parent, name string) (ObjectInfo, error) {
	full := path.Join(parent, name)
	if err := s.backend.fs.Mkdir(full, 0o755); err != nil && !os.IsExist(err) {
		return ObjectInfo{}, s.wrap(err, full)
	}
	return s.Stat(full)
}

func (s *gvfsSession) Remove(handle string) error {
	if err := s.backend.fs.RemoveAll(handle); err != nil {
		return s.wrap(err, handle)
	}
	return nil
}

func (s *gvfsSession) Close() error { return nil }
