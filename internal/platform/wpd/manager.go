//go:build windows

package wpd

import (
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

// Manager wraps IPortableDeviceManager.
type Manager struct {
	ole.IUnknown
}

type managerVtbl struct {
	ole.IUnknownVtbl
	GetDevices            uintptr
	RefreshDeviceList     uintptr
	GetDeviceFriendlyName uintptr
	GetDeviceDescription  uintptr
	GetDeviceManufacturer uintptr
	GetDeviceProperty     uintptr
	GetPrivateDevices     uintptr
}

func (m *Manager) vtbl() *managerVtbl {
	return (*managerVtbl)(unsafe.Pointer(m.RawVTable))
}

// NewManager creates the WPD device manager. COM must be initialized on the
// calling thread.
func NewManager() (*Manager, error) {
	unk, err := ole.CreateInstance(CLSIDPortableDeviceManager, IIDIPortableDeviceManager)
	if err != nil {
		return nil, err
	}
	return (*Manager)(unsafe.Pointer(unk)), nil
}

// Refresh re-scans the bus so a re-enumeration sees newly attached devices.
func (m *Manager) Refresh() error {
	hr, _, _ := syscall.SyscallN(m.vtbl().RefreshDeviceList, uintptr(unsafe.Pointer(m)))
	return hrToErr(hr)
}

// DeviceIDs returns the PnP ids of all attached portable devices.
func (m *Manager) DeviceIDs() ([]string, error) {
	var count uint32
	hr, _, _ := syscall.SyscallN(m.vtbl().GetDevices,
		uintptr(unsafe.Pointer(m)), 0, uintptr(unsafe.Pointer(&count)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	ptrs := make([]*uint16, count)
	hr, _, _ = syscall.SyscallN(m.vtbl().GetDevices,
		uintptr(unsafe.Pointer(m)), uintptr(unsafe.Pointer(&ptrs[0])), uintptr(unsafe.Pointer(&count)))
	if err := hrToErr(hr); err != nil {
		return nil, err
	}
	ids := make([]string, 0, count)
	for _, p := range ptrs[:count] {
		if p == nil {
			continue
		}
		ids = append(ids, takeWideString(p))
	}
	return ids, nil
}

// FriendlyName returns the user-visible device name, which many devices do
// not report.
func (m *Manager) FriendlyName(deviceID string) (string, error) {
	return m.getString(m.vtbl().GetDeviceFriendlyName, deviceID)
}

// Description returns the device description string.
func (m *Manager) Description(deviceID string) (string, error) {
	return m.getString(m.vtbl().GetDeviceDescription, deviceID)
}

// getString runs the usual two-call length-then-buffer pattern shared by the
// manager's string getters.
func (m *Manager) getString(method uintptr, deviceID string) (string, error) {
	idPtr, err := windows.UTF16PtrFromString(deviceID)
	if err != nil {
		return "", err
	}
	var n uint32
	hr, _, _ := syscall.SyscallN(method,
		uintptr(unsafe.Pointer(m)), uintptr(unsafe.Pointer(idPtr)), 0, uintptr(unsafe.Pointer(&n)))
	if err := hrToErr(hr); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]uint16, n)
	hr, _, _ = syscall.SyscallN(method,
		uintptr(unsafe.Pointer(m)), uintptr(unsafe.Pointer(idPtr)),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&n)))
	if err := hrToErr(hr); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf), nil
}
