// Package memback is an in-memory platform backend for the test suites. The
// device tree can be mutated (objects removed, devices disconnected, access
// revoked) while sessions are live, which is exactly the hostile behavior a
// real MTP device shows mid-walk.
package memback

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/portablefs/mtpkit/internal/platform"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

type object struct {
	handle   string
	parent   string
	name     string
	kind     platform.Kind
	data     []byte
	modified time.Time
	children []string
	denied   bool
	capacity int64
	free     int64
}

type device struct {
	info      platform.DeviceInfo
	connected bool
	objects   map[string]*object
	roots     []string
}

// Backend implements platform.Backend over mutable in-memory state.
type Backend struct {
	mu      sync.Mutex
	seq     int
	devices map[string]*device
	order   []string
}

func New() *Backend {
	return &Backend{devices: make(map[string]*device)}
}

// AddDevice registers a connected device. Name, description and serial may
// be empty to exercise the enumerator's fallback labels.
func (b *Backend) AddDevice(id, name, description, serial string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[id] = &device{
		info:      platform.DeviceInfo{ID: id, Name: name, Description: description, Serial: serial},
		connected: true,
		objects:   make(map[string]*object),
	}
	b.order = append(b.order, id)
}

func (b *Backend) nextHandle() string {
	b.seq++
	return fmt.Sprintf("o%04d", b.seq)
}

// AddStorage adds a storage root to a device and returns its handle.
func (b *Backend) AddStorage(devID, name string, capacity, free int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev := b.devices[devID]
	h := b.nextHandle()
	dev.objects[h] = &object{
		handle:   h,
		name:     name,
		kind:     platform.KindStorage,
		capacity: capacity,
		free:     free,
	}
	dev.roots = append(dev.roots, h)
	return h
}

// AddFolder adds a folder under parent and returns its handle.
func (b *Backend) AddFolder(devID, parent, name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attach(devID, parent, &object{name: name, kind: platform.KindFolder})
}

// AddFile adds a file under parent and returns its handle.
func (b *Backend) AddFile(devID, parent, name string, data []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attach(devID, parent, &object{
		name:     name,
		kind:     platform.KindFile,
		data:     append([]byte(nil), data...),
		modified: time.Now(),
	})
}

func (b *Backend) attach(devID, parent string, o *object) string {
	dev := b.devices[devID]
	o.handle = b.nextHandle()
	o.parent = parent
	dev.objects[o.handle] = o
	p := dev.objects[parent]
	p.children = append(p.children, o.handle)
	return o.handle
}

// RemoveObject deletes an object and its subtree, as if the device-side app
// removed it behind our back.
func (b *Backend) RemoveObject(devID, handle string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detach(b.devices[devID], handle)
}

func (b *Backend) detach(dev *device, handle string) {
	o, ok := dev.objects[handle]
	if !ok {
		return
	}
	for _, child := range o.children {
		b.detach(dev, child)
	}
	if p, ok := dev.objects[o.parent]; ok {
		for i, h := range p.children {
			if h == handle {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	delete(dev.objects, handle)
}

// DenyObject makes every subsequent access to the object fail with
// ErrAccessDenied.
func (b *Backend) DenyObject(devID, handle string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.devices[devID].objects[handle]; ok {
		o.denied = true
	}
}

// ClearName blanks an object's name, simulating a device that returns
// unresolvable metadata for an entry.
func (b *Backend) ClearName(devID, handle string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.devices[devID].objects[handle]; ok {
		o.name = ""
	}
}

// Disconnect drops the device. Live sessions start failing with
// DisconnectedError, and the device disappears from enumeration.
func (b *Backend) Disconnect(devID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dev, ok := b.devices[devID]; ok {
		dev.connected = false
	}
}

// FileData returns the current content of a file object, for assertions.
func (b *Backend) FileData(devID, handle string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.devices[devID].objects[handle]
	if !ok || o.kind != platform.KindFile {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// HasObject reports whether the handle still resolves on the device.
func (b *Backend) HasObject(devID, handle string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.devices[devID].objects[handle]
	return ok
}

// ChildNamed returns the handle of parent's child with the given name.
func (b *Backend) ChildNamed(devID, parent, name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev := b.devices[devID]
	p, ok := dev.objects[parent]
	if !ok {
		return "", false
	}
	for _, h := range p.children {
		if dev.objects[h].name == name {
			return h, true
		}
	}
	return "", false
}

func (b *Backend) Name() string { return "mem" }

func (b *Backend) Devices() ([]platform.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var infos []platform.DeviceInfo
	for _, id := range b.order {
		if dev := b.devices[id]; dev.connected {
			infos = append(infos, dev.info)
		}
	}
	return infos, nil
}

func (b *Backend) Open(id string) (platform.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, ok := b.devices[id]
	if !ok || !dev.connected {
		return nil, errors.Wrapf(mtperr.ErrDeviceNotFound, "%s", id)
	}
	return &session{backend: b, devID: id}, nil
}

type session struct {
	backend *Backend
	devID   string
	closed  bool
}

// dev returns the device state, or the disconnect error every operation on a
// dead session must surface.
func (s *session) dev() (*device, error) {
	dev, ok := s.backend.devices[s.devID]
	if !ok || !dev.connected {
		return nil, &mtperr.DisconnectedError{DeviceID: s.devID}
	}
	return dev, nil
}

func (s *session) lookup(dev *device, handle string) (*object, error) {
	o, ok := dev.objects[handle]
	if !ok {
		return nil, errors.Wrapf(mtperr.ErrObjectNotFound, "%s", handle)
	}
	if o.denied {
		return nil, errors.Wrapf(mtperr.ErrAccessDenied, "%s", handle)
	}
	return o, nil
}

func objectInfo(o *object) platform.ObjectInfo {
	info := platform.ObjectInfo{
		Handle:   o.handle,
		Name:     o.name,
		Kind:     o.kind,
		Modified: o.modified,
		Capacity: -1,
		Free:     -1,
	}
	if o.kind == platform.KindFile {
		info.Size = int64(len(o.data))
	}
	if o.kind == platform.KindStorage {
		info.Description = o.name
		info.Capacity = o.capacity
		info.Free = o.free
	}
	return info
}

func (s *session) Storages() ([]platform.ObjectInfo, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	dev, err := s.dev()
	if err != nil {
		return nil, err
	}
	var infos []platform.ObjectInfo
	for _, h := range dev.roots {
		if o, ok := dev.objects[h]; ok {
			infos = append(infos, objectInfo(o))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *session) Children(handle string) ([]platform.ObjectInfo, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	dev, err := s.dev()
	if err != nil {
		return nil, err
	}
	o, err := s.lookup(dev, handle)
	if err != nil {
		return nil, err
	}
	infos := make([]platform.ObjectInfo, 0, len(o.children))
	for _, h := range o.children {
		child := dev.objects[h]
		if child == nil || child.name == "" {
			// Name did not resolve; the entry is dropped, not surfaced.
			continue
		}
		infos = append(infos, objectInfo(child))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *session) Stat(handle string) (platform.ObjectInfo, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	dev, err := s.dev()
	if err != nil {
		return platform.ObjectInfo{}, err
	}
	o, err := s.lookup(dev, handle)
	if err != nil {
		return platform.ObjectInfo{}, err
	}
	return objectInfo(o), nil
}

func (s *session) OpenRead(handle string) (io.ReadCloser, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	dev, err := s.dev()
	if err != nil {
		return nil, err
	}
	o, err := s.lookup(dev, handle)
	if err != nil {
		return nil, err
	}
	if o.kind != platform.KindFile {
		return nil, errors.Errorf("not a file: %s", handle)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), o.data...))), nil
}

func (s *session) Create(parent, name string, size int64) (platform.WriteSession, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	dev, err := s.dev()
	if err != nil {
		return nil, err
	}
	if _, err := s.lookup(dev, parent); err != nil {
		return nil, err
	}
	return &writeSession{sess: s, parent: parent, name: name}, nil
}

type writeSession struct {
	sess   *session
	parent string
	name   string
	buf    bytes.Buffer
}

func (w *writeSession) Write(p []byte) (int, error) {
	w.sess.backend.mu.Lock()
	defer w.sess.backend.mu.Unlock()
	if _, err := w.sess.dev(); err != nil {
		return 0, err
	}
	return w.buf.Write(p)
}

// Commit attaches the buffered content as a child of parent, replacing an
// existing child of the same name. Until Commit the device tree is
// untouched, so Abort simply discards the buffer.
func (w *writeSession) Commit() (platform.ObjectInfo, error) {
	w.sess.backend.mu.Lock()
	defer w.sess.backend.mu.Unlock()
	dev, err := w.sess.dev()
	if err != nil {
		return platform.ObjectInfo{}, err
	}
	p, err := w.sess.lookup(dev, w.parent)
	if err != nil {
		return platform.ObjectInfo{}, err
	}
	for _, h := range p.children {
		if dev.objects[h] != nil && dev.objects[h].name == w.name {
			w.sess.backend.detach(dev, h)
			break
		}
	}
	h := w.sess.backend.attach(w.sess.devID, w.parent, &object{
		name:     w.name,
		kind:     platform.KindFile,
		data:     append([]byte(nil), w.buf.Bytes()...),
		modified: time.Now(),
	})
	return objectInfo(dev.objects[h]), nil
}

func (w *writeSession) Abort() error {
	w.buf.Reset()
	return nil
}

func (s *session) MakeDir(parent, name string) (platform.ObjectInfo, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	dev, err := s.dev()
	if err != nil {
		return platform.ObjectInfo{}, err
	}
	p, err := s.lookup(dev, parent)
	if err != nil {
		return platform.ObjectInfo{}, err
	}
	for _, h := range p.children {
		if o := dev.objects[h]; o != nil && o.name == name && o.kind == platform.KindFolder {
			return objectInfo(o), nil
		}
	}
	h := s.backend.attach(s.devID, parent, &object{name: name, kind: platform.KindFolder})
	return objectInfo(dev.objects[h]), nil
}

func (s *session) Remove(handle string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	dev, err := s.dev()
	if err != nil {
		return err
	}
	if _, err := s.lookup(dev, handle); err != nil {
		return err
	}
	s.backend.detach(dev, handle)
	return nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}
