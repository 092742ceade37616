//go:build windows

package platform

import (
	"io"
	"sort"

	"github.com/go-ole/go-ole"
	"github.com/pkg/errors"

	"github.com/portablefs/mtpkit/internal/platform/wpd"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

// The Windows backend drives the WPD COM interface set. Object handles are
// WPD object ids, valid only while the IPortableDevice session is open.
type wpdBackend struct {
	mgr *wpd.Manager
}

func newBackend(Config) (Backend, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		// RPC_E_CHANGED_MODE: the thread already runs an apartment, which is
		// fine for our purposes.
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || uint32(oleErr.Code()) != 0x80010106 {
			return nil, errors.Wrap(err, "initializing COM")
		}
	}
	mgr, err := wpd.NewManager()
	if err != nil {
		return nil, errors.Wrap(err, "creating WPD device manager")
	}
	return &wpdBackend{mgr: mgr}, nil
}

func (b *wpdBackend) Name() string { return "wpd" }

func (b *wpdBackend) Devices() ([]DeviceInfo, error) {
	_ = b.mgr.Refresh()
	ids, err := b.mgr.DeviceIDs()
	if err != nil {
		return nil, errors.Wrap(err, "listing portable devices")
	}
	devices := make([]DeviceInfo, 0, len(ids))
	for _, id := range ids {
		// Name reads fail on plenty of devices; the enumerator's fallback
		// labels cover that, so errors here are not fatal.
		name, _ := b.mgr.FriendlyName(id)
		desc, _ := b.mgr.Description(id)
		devices = append(devices, DeviceInfo{ID: id, Name: name, Description: desc})
	}
	return devices, nil
}

func (b *wpdBackend) Open(id string) (Session, error) {
	dev, err := wpd.OpenDevice(id)
	if err != nil {
		return nil, errors.Wrapf(mtperr.ErrDeviceNotFound, "%s: %v", id, err)
	}
	content, err := dev.Content()
	if err != nil {
		dev.Release()
		return nil, errors.Wrapf(err, "opening content of %s", id)
	}
	props, err := content.Properties()
	if err != nil {
		content.Release()
		dev.Release()
		return nil, errors.Wrapf(err, "opening properties of %s", id)
	}
	keys, err := wpd.NewKeyCollection(
		wpd.KeyObjectName,
		wpd.KeyObjectOriginalFileName,
		wpd.KeyObjectContentType,
		wpd.KeyObjectSize,
		wpd.KeyObjectDateModified,
		wpd.KeyStorageCapacity,
		wpd.KeyStorageFreeSpace,
		wpd.KeyStorageDescription,
		wpd.KeyDeviceSerialNumber,
	)
	if err != nil {
		props.Release()
		content.Release()
		dev.Release()
		return nil, errors.Wrapf(err, "preparing property keys for %s", id)
	}
	return &wpdSession{devID: id, dev: dev, content: content, props: props, keys: keys}, nil
}

type wpdSession struct {
	devID   string
	dev     *wpd.Device
	content *wpd.Content
	props   *wpd.Properties
	keys    *wpd.KeyCollection
}

// wrap classifies a COM failure for the given handle.
func (s *wpdSession) wrap(err error, handle string) error {
	if err == nil {
		return nil
	}
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		switch uint32(oleErr.Code()) {
		case 0x80070490, 0x80070002, 0x80070003: // ERROR_NOT_FOUND, FILE/PATH_NOT_FOUND
			return errors.Wrapf(mtperr.ErrObjectNotFound, "%s", handle)
		case 0x80070005: // E_ACCESSDENIED
			return errors.Wrapf(mtperr.ErrAccessDenied, "%s", handle)
		case 0x8007048f, 0x8007001f, 0x80042003: // not connected, general failure, device not open
			return &mtperr.DisconnectedError{DeviceID: s.devID, Err: err}
		}
	}
	return errors.Wrapf(err, "%s", handle)
}

// objectInfo reads one object's properties. A name that does not resolve is
// reported as a stale handle, matching the walker's skip policy.
func (s *wpdSession) objectInfo(objectID string) (ObjectInfo, error) {
	values, err := s.props.GetValues(objectID, s.keys)
	if err != nil {
		return ObjectInfo{}, s.wrap(err, objectID)
	}
	defer values.Release()

	info := ObjectInfo{Handle: objectID, Capacity: -1, Free: -1}
	name, err := values.GetStringValue(wpd.KeyObjectOriginalFileName)
	if err != nil || name == "" {
		name, err = values.GetStringValue(wpd.KeyObjectName)
	}
	if err != nil || name == "" {
		return ObjectInfo{}, errors.Wrapf(mtperr.ErrObjectNotFound, "unresolvable name for %s", objectID)
	}
	info.Name = name

	ct, err := values.GetGuidValue(wpd.KeyObjectContentType)
	switch {
	case err != nil:
		info.Kind = KindFolder
	case ole.IsEqualGUID(&ct, wpd.ContentTypeFunctionalObject), ole.IsEqualGUID(&ct, wpd.ContentTypeGenericFunctional):
		info.Kind = KindStorage
		if capacity, err := values.GetUint64Value(wpd.KeyStorageCapacity); err == nil {
			info.Capacity = int64(capacity)
		}
		if free, err := values.GetUint64Value(wpd.KeyStorageFreeSpace); err == nil {
			info.Free = int64(free)
		}
		if desc, err := values.GetStringValue(wpd.KeyStorageDescription); err == nil && desc != "" {
			info.Description = desc
		} else {
			info.Description = name
		}
	case ole.IsEqualGUID(&ct, wpd.ContentTypeFolder):
		info.Kind = KindFolder
	default:
		info.Kind = KindFile
		if size, err := values.GetUint64Value(wpd.KeyObjectSize); err == nil {
			info.Size = int64(size)
		}
		if modified, err := values.GetTimeValue(wpd.KeyObjectDateModified); err == nil {
			info.Modified = modified
		}
	}
	return info, nil
}

func (s *wpdSession) Storages() ([]ObjectInfo, error) {
	children, err := s.Children(wpd.RootObjectID)
	if err != nil {
		return nil, err
	}
	storages := children[:0]
	for _, child := range children {
		if child.Kind == KindStorage {
			storages = append(storages, child)
		}
	}
	return storages, nil
}

func (s *wpdSession) Children(handle string) ([]ObjectInfo, error) {
	enum, err := s.content.EnumObjects(handle)
	if err != nil {
		return nil, s.wrap(err, handle)
	}
	defer enum.Release()

	var children []ObjectInfo
	for {
		ids, err := enum.Next()
		if err != nil {
			return nil, s.wrap(err, handle)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			info, err := s.objectInfo(id)
			if err != nil {
				if mtperr.IsDisconnected(err) {
					return nil, err
				}
				// Child vanished or has unreadable metadata; drop it.
				continue
			}
			children = append(children, info)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}

func (s *wpdSession) Stat(handle string) (ObjectInfo, error) {
	return s.objectInfo(handle)
}

// wpdReader streams a file object's default resource.
type wpdReader struct {
	sess      *wpdSession
	handle    string
	resources *wpd.Resources
	stream    *wpd.Stream
}

func (r *wpdReader) Read(p []byte) (int, error) {
	n, err := r.stream.Read(p)
	if err != nil && err != io.EOF {
		return n, r.sess.wrap(err, r.handle)
	}
	return n, err
}

func (r *wpdReader) Close() error {
	r.stream.Release()
	r.resources.Release()
	return nil
}

func (s *wpdSession) OpenRead(handle string) (io.ReadCloser, error) {
	resources, err := s.content.Transfer()
	if err != nil {
		return nil, s.wrap(err, handle)
	}
	stream, _, err := resources.GetStream(handle)
	if err != nil {
		resources.Release()
		return nil, s.wrap(err, handle)
	}
	return &wpdReader{sess: s, handle: handle, resources: resources, stream: stream}, nil
}

func (s *wpdSession) Create(parent, name string, size int64) (WriteSession, error) {
	values, err := wpd.NewValues()
	if err != nil {
		return nil, s.wrap(err, parent)
	}
	defer values.Release()
	if err := values.SetStringValue(wpd.KeyObjectParentID, parent); err != nil {
		return nil, s.wrap(err, parent)
	}
	if err := values.SetUint64Value(wpd.KeyObjectSize, uint64(size)); err != nil {
		return nil, s.wrap(err, parent)
	}
	if err := values.SetStringValue(wpd.KeyObjectOriginalFileName, name); err != nil {
		return nil, s.wrap(err, parent)
	}
	if err := values.SetStringValue(wpd.KeyObjectName, name); err != nil {
		return nil, s.wrap(err, parent)
	}
	stream, _, err := s.content.CreateData(values)
	if err != nil {
		return nil, s.wrap(err, parent)
	}
	return &wpdWrite{sess: s, stream: stream, parent: parent, name: name}, nil
}

type wpdWrite struct {
	sess   *wpdSession
	stream *wpd.Stream
	parent string
	name   string
}

func (w *wpdWrite) Write(p []byte) (int, error) {
	n, err := w.stream.Write(p)
	return n, w.sess.wrap(err, w.name)
}

// Commit finalizes the in-flight object. WPD only materializes the object on
// stream commit, so an aborted upload leaves nothing behind.
func (w *wpdWrite) Commit() (ObjectInfo, error) {
	err := w.stream.Commit()
	w.stream.Release()
	if err != nil {
		return ObjectInfo{}, w.sess.wrap(err, w.name)
	}
	if info, ok := w.sess.childNamed(w.parent, w.name); ok {
		return info, nil
	}
	return ObjectInfo{Name: w.name, Kind: KindFile, Capacity: -1, Free: -1}, nil
}

func (w *wpdWrite) Abort() error {
	err := w.stream.Revert()
	w.stream.Release()
	// If the device materialized the object despite the revert, remove it so
	// the documented "no object on abort" holds.
	if info, ok := w.sess.childNamed(w.parent, w.name); ok {
		_ = w.sess.Remove(info.Handle)
	}
	if err != nil {
		return w.sess.wrap(err, w.name)
	}
	return nil
}

func (s *wpdSession) childNamed(parent, name string) (ObjectInfo, bool) {
	children, err := s.Children(parent)
	if err != nil {
		return ObjectInfo{}, false
	}
	for _, child := range children {
		if child.Name == name {
			return child, true
		}
	}
	return ObjectInfo{}, false
}

func (s *wpdSession) MakeDir(parent, name string) (ObjectInfo, error) {
	values, err := wpd.NewValues()
	if err != nil {
		return ObjectInfo{}, s.wrap(err, parent)
	}
	defer values.Release()
	if err := values.SetStringValue(wpd.KeyObjectParentID, parent); err != nil {
		return ObjectInfo{}, s.wrap(err, parent)
	}
	if err := values.SetStringValue(wpd.KeyObjectName, name); err != nil {
		return ObjectInfo{}, s.wrap(err, parent)
	}
	if err := values.SetStringValue(wpd.KeyObjectOriginalFileName, name); err != nil {
		return ObjectInfo{}, s.wrap(err, parent)
	}
	if err := values.SetGuidValue(wpd.KeyObjectContentType, wpd.ContentTypeFolder); err != nil {
		return ObjectInfo{}, s.wrap(err, parent)
	}
	id, err := s.content.CreateFolder(values)
	if err != nil {
		return ObjectInfo{}, s.wrap(err, parent)
	}
	return s.Stat(id)
}

func (s *wpdSession) Remove(handle string) error {
	if err := s.content.Delete(handle); err != nil {
		return s.wrap(err, handle)
	}
	return nil
}

func (s *wpdSession) Close() error {
	s.keys.Release()
	s.props.Release()
	s.content.Release()
	err := s.dev.Close()
	s.dev.Release()
	return err
}
