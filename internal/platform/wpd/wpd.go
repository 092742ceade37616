//go:build windows

// Package wpd holds thin COM bindings for the Windows Portable Devices API:
// just the interfaces the platform backend drives (device manager, device,
// content enumeration, property reads, resource streams, delete/create).
// Vtables are laid out to match portabledeviceapi.h / portabledevicetypes.h.
package wpd

import (
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

var (
	CLSIDPortableDeviceManager = ole.NewGUID("{0AF10CEC-2ECD-4B92-9581-34F6AE0637F3}")
	CLSIDPortableDeviceFTM     = ole.NewGUID("{F7C0039A-4762-488A-B4B3-760EF9A1BA9B}")
	CLSIDPortableDevice        = ole.NewGUID("{728A21C5-3D9E-48D7-9810-864848F0F404}")
	CLSIDPortableDeviceValues  = ole.NewGUID("{0C15D503-D017-47CE-9016-7B3F978721CC}")
	CLSIDPortableDeviceKeys    = ole.NewGUID("{DE2D022D-2480-43BE-97F0-D1FA2CF98F4F}")
	CLSIDPortableDevicePVC     = ole.NewGUID("{08A99E2F-6D6D-4B80-AF5A-BAF2BCBE4CB9}")

	IIDIPortableDeviceManager = ole.NewGUID("{A1567595-4C2F-4574-A6FA-ECEF917B9A40}")
	IIDIPortableDevice        = ole.NewGUID("{625E2DF8-6392-4CF0-9AD1-3CFA5F17775C}")
	IIDIPortableDeviceValues  = ole.NewGUID("{6848F6F2-3155-4F86-B6F5-263EEEAB3143}")
	IIDIPortableDeviceKeys    = ole.NewGUID("{DADA2357-E0AD-492E-98DB-DD61C53BA353}")
	IIDIPortableDevicePVC     = ole.NewGUID("{89B2E422-4F1B-4316-BCEF-A44AFEA83EB3}")
)

// Content-type GUIDs reported under WPD_OBJECT_CONTENT_TYPE.
var (
	ContentTypeFolder            = ole.NewGUID("{27E2E392-A111-48E0-AB0C-E17705A05F85}")
	ContentTypeFunctionalObject  = ole.NewGUID("{99ED0160-17FF-4C44-9D98-1D7A6F941921}")
	ContentTypeGenericFunctional = ole.NewGUID("{23F05BBC-15DE-4C2A-A55B-A9AF5CE412EF}")
)

// PropertyKey mirrors the Windows PROPERTYKEY struct.
type PropertyKey struct {
	FmtID ole.GUID
	PID   uint32
}

func key(guid string, pid uint32) PropertyKey {
	return PropertyKey{FmtID: *ole.NewGUID(guid), PID: pid}
}

var (
	KeyObjectParentID         = key("{EF6B490D-5CD8-437A-AFFC-DA8B60EE4A3C}", 3)
	KeyObjectName             = key("{EF6B490D-5CD8-437A-AFFC-DA8B60EE4A3C}", 4)
	KeyObjectContentType      = key("{EF6B490D-5CD8-437A-AFFC-DA8B60EE4A3C}", 7)
	KeyObjectSize             = key("{EF6B490D-5CD8-437A-AFFC-DA8B60EE4A3C}", 11)
	KeyObjectOriginalFileName = key("{EF6B490D-5CD8-437A-AFFC-DA8B60EE4A3C}", 12)
	KeyObjectDateCreated      = key("{EF6B490D-5CD8-437A-AFFC-DA8B60EE4A3C}", 18)
	KeyObjectDateModified     = key("{EF6B490D-5CD8-437A-AFFC-DA8B60EE4A3C}", 19)
	KeyStorageCapacity        = key("{01A3057A-74D6-4E80-BEA7-DC4C212CE50A}", 4)
	KeyStorageFreeSpace       = key("{01A3057A-74D6-4E80-BEA7-DC4C212CE50A}", 5)
	KeyStorageDescription     = key("{01A3057A-74D6-4E80-BEA7-DC4C212CE50A}", 7)
	KeyDeviceSerialNumber     = key("{26D4979A-E643-4626-9E2B-736DC0C92FDC}", 9)
	KeyResourceDefault        = key("{E81E79BE-34F0-41BF-B53F-F1A06AE87842}", 0)
)

// RootObjectID addresses the device root in IPortableDeviceContent calls.
const RootObjectID = "DEVICE"

const (
	vtLPWSTR = 31
	vtDate   = 7
)

// PropVariant is the 64-bit PROPVARIANT layout; only the first 8 bytes of
// the union are touched here.
type PropVariant struct {
	VT       uint16
	reserved [6]byte
	Val      uint64
	Val2     uint64
}

var (
	modole32             = windows.NewLazySystemDLL("ole32.dll")
	procPropVariantClear = modole32.NewProc("PropVariantClear")
)

func (v *PropVariant) Clear() {
	_, _, _ = procPropVariantClear.Call(uintptr(unsafe.Pointer(v)))
}

// oleDateToTime converts an OLE automation DATE (days since 1899-12-30).
func oleDateToTime(d float64) time.Time {
	base := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(d * 24 * float64(time.Hour)))
}

func hrToErr(hr uintptr) error {
	if int32(hr) < 0 {
		return ole.NewError(hr)
	}
	return nil
}

// takeWideString copies a COM-allocated wide string and frees it.
func takeWideString(p *uint16) string {
	if p == nil {
		return ""
	}
	s := windows.UTF16PtrToString(p)
	windows.CoTaskMemFree(unsafe.Pointer(p))
	return s
}
