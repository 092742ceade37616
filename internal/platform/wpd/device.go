//go:build windows

package wpd

import (
	"io"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

// Device wraps an opened IPortableDevice.
type Device struct {
	ole.IUnknown
}

type deviceVtbl struct {
	ole.IUnknownVtbl
	Open           uintptr
	SendCommand    uintptr
	Content        uintptr
	Capabilities   uintptr
	Cancel         uintptr
	Close          uintptr
	Advise         uintptr
	Unadvise       uintptr
	GetPnPDeviceID uintptr
}

func (d *Device) vtbl() *deviceVtbl {
	return (*deviceVtbl)(unsafe.Pointer(d.RawVTable))
}

// OpenDevice opens a session against the device with the given PnP id.
// The free-threaded marshaller variant is preferred; plain PortableDevice is
// the fallback on systems without it.
func OpenDevice(deviceID string) (*Device, error) {
	unk, err := ole.CreateInstance(CLSIDPortableDeviceFTM, IIDIPortableDevice)
	if err != nil {
		unk, err = ole.CreateInstance(CLSIDPortableDevice, IIDIPortableDevice)
		if err != nil {
			return nil, err
		}
	}
	dev := (*Device)(unsafe.Pointer(unk))
	clientInfo, err := NewValues()
	if err != nil {
		dev.Release()
		return nil, err
	}
	defer clientInfo.Release()
	idPtr, err := windows.UTF16PtrFromString(deviceID)
	if err != nil {
		dev.Release()
		return nil, err
	}
	hr, _, _ := syscall.SyscallN(dev.vtbl().Open,
		uintptr(unsafe.Pointer(dev)), uintptr(unsafe.Pointer(idPtr)), uintptr(unsafe.Pointer(clientInfo)))
	if err := hrToErr(hr); err != nil {
		dev.Release()
		return nil, err
	}
	return dev, nil
}

// Close releases the device connection itself; Release must still be called.
func (d *Device) Close() error {
	hr, _, _ := syscall.SyscallN(d.vtbl().Close, uintptr(unsafe.Pointer(d)))
	return hrToErr(hr)
}

// Content returns the device's IPortableDeviceContent.
func (d *Device) Content() (*Content, error) {
	var raw uintptr
	hr, _, _ := syscall.SyscallN(d.vtbl().Content,
		uintptr(unsafe.Pointer(d)), uintptr(unsafe.Pointer(&raw)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	return (*Content)(unsafe.Pointer(raw)), nil
}

// Content wraps IPortableDeviceContent.
type Content struct {
	ole.IUnknown
}

type contentVtbl struct {
	ole.IUnknownVtbl
	EnumObjects                          uintptr
	Properties                           uintptr
	Transfer                             uintptr
	CreateObjectWithPropertiesOnly       uintptr
	CreateObjectWithPropertiesAndData    uintptr
	Move                                 uintptr
	Copy                                 uintptr
	Delete                               uintptr
	GetObjectIDsFromPersistentUniqueIDs  uintptr
	Cancel                               uintptr
}

func (c *Content) vtbl() *contentVtbl {
	return (*contentVtbl)(unsafe.Pointer(c.RawVTable))
}

// EnumObjects starts enumerating the children of parentID.
func (c *Content) EnumObjects(parentID string) (*ObjectIDEnum, error) {
	idPtr, err := windows.UTF16PtrFromString(parentID)
	if err != nil {
		return nil, err
	}
	var raw uintptr
	hr, _, _ := syscall.SyscallN(c.vtbl().EnumObjects,
		uintptr(unsafe.Pointer(c)), 0, uintptr(unsafe.Pointer(idPtr)), 0, uintptr(unsafe.Pointer(&raw)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	return (*ObjectIDEnum)(unsafe.Pointer(raw)), nil
}

// Properties returns the IPortableDeviceProperties interface.
func (c *Content) Properties() (*Properties, error) {
	var raw uintptr
	hr, _, _ := syscall.SyscallN(c.vtbl().Properties,
		uintptr(unsafe.Pointer(c)), uintptr(unsafe.Pointer(&raw)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	return (*Properties)(unsafe.Pointer(raw)), nil
}

// Transfer returns the IPortableDeviceResources interface for content I/O.
func (c *Content) Transfer() (*Resources, error) {
	var raw uintptr
	hr, _, _ := syscall.SyscallN(c.vtbl().Transfer,
		uintptr(unsafe.Pointer(c)), uintptr(unsafe.Pointer(&raw)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	return (*Resources)(unsafe.Pointer(raw)), nil
}

// CreateFolder creates a folder object described by values and returns the
// new object id.
func (c *Content) CreateFolder(values *Values) (string, error) {
	var p *uint16
	hr, _, _ := syscall.SyscallN(c.vtbl().CreateObjectWithPropertiesOnly,
		uintptr(unsafe.Pointer(c)), uintptr(unsafe.Pointer(values)), uintptr(unsafe.Pointer(&p)))
	if err := hrToErr(hr); err != nil {
		return "", err
	}
	return takeWideString(p), nil
}

// CreateData starts a data upload for the object described by values. The
// returned stream must be committed or reverted; optimal is the transport's
// preferred write size.
func (c *Content) CreateData(values *Values) (stream *Stream, optimal uint32, err error) {
	var rawStream uintptr
	var cookie *uint16
	hr, _, _ := syscall.SyscallN(c.vtbl().CreateObjectWithPropertiesAndData,
		uintptr(unsafe.Pointer(c)), uintptr(unsafe.Pointer(values)),
		uintptr(unsafe.Pointer(&rawStream)), uintptr(unsafe.Pointer(&optimal)),
		uintptr(unsafe.Pointer(&cookie)))
	if err := hrToErr(hr); err != nil {
		return nil, 0, err
	}
	if cookie != nil {
		windows.CoTaskMemFree(unsafe.Pointer(cookie))
	}
	return (*Stream)(unsafe.Pointer(rawStream)), optimal, nil
}

const deleteWithRecursion = 1

// Delete removes an object and everything below it.
func (c *Content) Delete(objectID string) error {
	ids, err := NewObjectIDCollection(objectID)
	if err != nil {
		return err
	}
	defer ids.Release()
	hr, _, _ := syscall.SyscallN(c.vtbl().Delete,
		uintptr(unsafe.Pointer(c)), deleteWithRecursion, uintptr(unsafe.Pointer(ids)), 0)
	return hrToErr(hr)
}

// ObjectIDEnum wraps IEnumPortableDeviceObjectIDs.
type ObjectIDEnum struct {
	ole.IUnknown
}

type objectIDEnumVtbl struct {
	ole.IUnknownVtbl
	Next   uintptr
	Skip   uintptr
	Reset  uintptr
	Clone  uintptr
	Cancel uintptr
}

func (e *ObjectIDEnum) vtbl() *objectIDEnumVtbl {
	return (*objectIDEnumVtbl)(unsafe.Pointer(e.RawVTable))
}

const enumBlockSize = 16

// Next fetches the next block of object ids; an empty slice means the
// enumeration is done.
func (e *ObjectIDEnum) Next() ([]string, error) {
	ptrs := make([]*uint16, enumBlockSize)
	var fetched uint32
	hr, _, _ := syscall.SyscallN(e.vtbl().Next,
		uintptr(unsafe.Pointer(e)), enumBlockSize,
		uintptr(unsafe.Pointer(&ptrs[0])), uintptr(unsafe.Pointer(&fetched)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	ids := make([]string, 0, fetched)
	for _, p := range ptrs[:fetched] {
		if p == nil {
			continue
		}
		ids = append(ids, takeWideString(p))
	}
	return ids, nil
}

// Properties wraps IPortableDeviceProperties.
type Properties struct {
	ole.IUnknown
}

type propertiesVtbl struct {
	ole.IUnknownVtbl
	GetSupportedProperties uintptr
	GetPropertyAttributes  uintptr
	GetValues              uintptr
	SetValues              uintptr
	Delete                 uintptr
	Cancel                 uintptr
}

func (p *Properties) vtbl() *propertiesVtbl {
	return (*propertiesVtbl)(unsafe.Pointer(p.RawVTable))
}

// GetValues reads the given keys of one object.
func (p *Properties) GetValues(objectID string, keys *KeyCollection) (*Values, error) {
	idPtr, err := windows.UTF16PtrFromString(objectID)
	if err != nil {
		return nil, err
	}
	var raw uintptr
	hr, _, _ := syscall.SyscallN(p.vtbl().GetValues,
		uintptr(unsafe.Pointer(p)), uintptr(unsafe.Pointer(idPtr)),
		uintptr(unsafe.Pointer(keys)), uintptr(unsafe.Pointer(&raw)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	return (*Values)(unsafe.Pointer(raw)), nil
}

// Resources wraps IPortableDeviceResources.
type Resources struct {
	ole.IUnknown
}

type resourcesVtbl struct {
	ole.IUnknownVtbl
	GetSupportedResources uintptr
	GetResourceAttributes uintptr
	GetStream             uintptr
	Delete                uintptr
	Cancel                uintptr
}

func (r *Resources) vtbl() *resourcesVtbl {
	return (*resourcesVtbl)(unsafe.Pointer(r.RawVTable))
}

// GetStream opens the default resource of a file object for reading.
// optimal is the transport's preferred read size.
func (r *Resources) GetStream(objectID string) (stream *Stream, optimal uint32, err error) {
	idPtr, err := windows.UTF16PtrFromString(objectID)
	if err != nil {
		return nil, 0, err
	}
	k := KeyResourceDefault
	var raw uintptr
	const stgmRead = 0
	hr, _, _ := syscall.SyscallN(r.vtbl().GetStream,
		uintptr(unsafe.Pointer(r)), uintptr(unsafe.Pointer(idPtr)),
		uintptr(unsafe.Pointer(&k)), stgmRead,
		uintptr(unsafe.Pointer(&optimal)), uintptr(unsafe.Pointer(&raw)))
	if err := hrToErr(hr); err != nil {
		return nil, 0, err
	}
	return (*Stream)(unsafe.Pointer(raw)), optimal, nil
}

// Stream wraps the IStream WPD hands out for object content.
type Stream struct {
	ole.IUnknown
}

type streamVtbl struct {
	ole.IUnknownVtbl
	Read         uintptr
	Write        uintptr
	Seek         uintptr
	SetSize      uintptr
	CopyTo       uintptr
	Commit       uintptr
	Revert       uintptr
	LockRegion   uintptr
	UnlockRegion uintptr
	Stat         uintptr
	Clone        uintptr
}

func (s *Stream) vtbl() *streamVtbl {
	return (*streamVtbl)(unsafe.Pointer(s.RawVTable))
}

// Read implements io.Reader over IStream::Read.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var n uint32
	hr, _, _ := syscall.SyscallN(s.vtbl().Read,
		uintptr(unsafe.Pointer(s)), uintptr(unsafe.Pointer(&p[0])),
		uintptr(uint32(len(p))), uintptr(unsafe.Pointer(&n)))
	if err := hrToErr(hr); err != nil {
		return int(n), err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return int(n), nil
}

// Write implements io.Writer over IStream::Write.
func (s *Stream) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		var n uint32
		hr, _, _ := syscall.SyscallN(s.vtbl().Write,
			uintptr(unsafe.Pointer(s)), uintptr(unsafe.Pointer(&p[written])),
			uintptr(uint32(len(p)-written)), uintptr(unsafe.Pointer(&n)))
		if err := hrToErr(hr); err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
		written += int(n)
	}
	return written, nil
}

// Commit flushes the stream and finalizes the object on the device.
func (s *Stream) Commit() error {
	hr, _, _ := syscall.SyscallN(s.vtbl().Commit, uintptr(unsafe.Pointer(s)), 0)
	return hrToErr(hr)
}

// Revert abandons the stream; WPD discards the in-flight object.
func (s *Stream) Revert() error {
	hr, _, _ := syscall.SyscallN(s.vtbl().Revert, uintptr(unsafe.Pointer(s)))
	return hrToErr(hr)
}
