package mtp

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/portablefs/mtpkit/internal/platform"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

// Kind classifies an Object.
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

func kindOf(k platform.Kind) Kind {
	switch k {
	case platform.KindStorage:
		return KindStorage
	case platform.KindFolder:
		return KindFolder
	case platform.KindFile:
		return KindFile
	default:
		return KindUnknown
	}
}

// Object is a file or folder on a device, materialized on demand. Its
// handle is only valid within the session that produced it; objects are
// never cached across enumerations, so staleness shows up as an
// ObjectNotFound error on the next access rather than as silent garbage.
type Object struct {
	Name string
	Kind Kind
	// Size of a file in bytes; zero for folders and storages.
	Size int64
	// Modified is best-effort; the zero time when the device does not
	// report it.
	Modified time.Time
	// Path is the virtual path built by the traversal that produced the
	// object, rooted at the device label.
	Path string

	dev    *Device
	handle string
}

func newObject(d *Device, info platform.ObjectInfo, path string) *Object {
	return &Object{
		Name:     info.Name,
		Kind:     kindOf(info.Kind),
		Size:     info.Size,
		Modified: info.Modified,
		Path:     path,
		dev:      d,
		handle:   info.Handle,
	}
}

// Device returns the device the object lives on.
func (o *Object) Device() *Device { return o.dev }

// IsDir reports whether the object can have children.
func (o *Object) IsDir() bool {
	return o.Kind == KindFolder || o.Kind == KindStorage
}

// Children lists the object's immediate children, split into folders and
// files, each sorted by name. Child paths are derived from this object's
// path at listing time. Fails with an ObjectNotFound kind when the object
// has been deleted on the device since it was obtained.
func (o *Object) Children() (folders, files []*Object, err error) {
	if !o.IsDir() {
		return nil, nil, errors.Errorf("mtp: %s is not a folder", o.Path)
	}
	var infos []platform.ObjectInfo
	err = o.dev.withSession(func(sess platform.Session) error {
		var err error
		infos, err = sess.Children(o.handle)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	for _, info := range infos {
		child := newObject(o.dev, info, o.Path+"/"+info.Name)
		if child.IsDir() {
			folders = append(folders, child)
		} else {
			files = append(files, child)
		}
	}
	return folders, files, nil
}

// Resolve walks a slash-separated virtual path down to an object. The
// leading component may be the device label; the next selects a storage.
// Lookups are case sensitive and fail with an ObjectNotFound kind.
func (d *Device) Resolve(vpath string) (*Object, error) {
	parts := splitPath(vpath)
	if len(parts) > 0 && parts[0] == d.Name {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return nil, errors.Wrapf(mtperr.ErrObjectNotFound, "empty path %q", vpath)
	}
	storages, err := d.Storages()
	if err != nil {
		return nil, err
	}
	var cur *Object
	for _, storage := range storages {
		if storage.Root.Name == parts[0] {
			cur = storage.Root
			break
		}
	}
	if cur == nil {
		return nil, errors.Wrapf(mtperr.ErrObjectNotFound, "no storage %q", parts[0])
	}
	for _, part := range parts[1:] {
		next, err := cur.child(part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (o *Object) child(name string) (*Object, error) {
	folders, files, err := o.Children()
	if err != nil {
		return nil, err
	}
	for _, child := range folders {
		if child.Name == name {
			return child, nil
		}
	}
	for _, child := range files {
		if child.Name == name {
			return child, nil
		}
	}
	return nil, errors.Wrapf(mtperr.ErrObjectNotFound, "%s/%s", o.Path, name)
}

// MakeDirs creates the folders along vpath that do not exist yet and
// returns the deepest one. The storage component must already exist;
// storages cannot be created. Existing folders are reused, so the call is
// idempotent.
func (d *Device) MakeDirs(vpath string) (*Object, error) {
	parts := splitPath(vpath)
	if len(parts) > 0 && parts[0] == d.Name {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return nil, errors.Wrapf(mtperr.ErrObjectNotFound, "empty path %q", vpath)
	}
	storages, err := d.Storages()
	if err != nil {
		return nil, err
	}
	var cur *Object
	for _, storage := range storages {
		if storage.Root.Name == parts[0] {
			cur = storage.Root
			break
		}
	}
	if cur == nil {
		return nil, errors.Wrapf(mtperr.ErrObjectNotFound, "no storage %q", parts[0])
	}
	for _, part := range parts[1:] {
		next, err := cur.child(part)
		if mtperr.IsNotFound(err) {
			var info platform.ObjectInfo
			parent := cur
			err = d.withSession(func(sess platform.Session) error {
				var err error
				info, err = sess.MakeDir(parent.handle, part)
				return err
			})
			if err != nil {
				return nil, err
			}
			next = newObject(d, info, parent.Path+"/"+part)
		} else if err != nil {
			return nil, err
		}
		if !next.IsDir() {
			return nil, errors.Errorf("mtp: %s exists and is not a folder", next.Path)
		}
		cur = next
	}
	return cur, nil
}

// Remove deletes an object from the device, recursively for folders.
func (d *Device) Remove(obj *Object) error {
	return d.withSession(func(sess platform.Session) error {
		return sess.Remove(obj.handle)
	})
}

// splitPath tolerates both separators and collapses empty components so
// paths pasted from either platform resolve the same way.
func splitPath(vpath string) []string {
	return strings.FieldsFunc(vpath, func(r rune) bool { return r == '/' || r == '\\' })
}
