//go:build windows

package wpd

import (
	"math"
	"syscall"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"
)

// Values wraps IPortableDeviceValues, the property bag WPD uses both for
// reads (GetValues results) and for describing objects to create.
type Values struct {
	ole.IUnknown
}

type valuesVtbl struct {
	ole.IUnknownVtbl
	GetCount                     uintptr
	GetAt                        uintptr
	SetValue                     uintptr
	GetValue                     uintptr
	SetStringValue               uintptr
	GetStringValue               uintptr
	SetUnsignedIntegerValue      uintptr
	GetUnsignedIntegerValue      uintptr
	SetSignedIntegerValue        uintptr
	GetSignedIntegerValue        uintptr
	SetUnsignedLargeIntegerValue uintptr
	GetUnsignedLargeIntegerValue uintptr
	SetSignedLargeIntegerValue   uintptr
	GetSignedLargeIntegerValue   uintptr
	SetFloatValue                uintptr
	GetFloatValue                uintptr
	SetErrorValue                uintptr
	GetErrorValue                uintptr
	SetKeyValue                  uintptr
	GetKeyValue                  uintptr
	SetBoolValue                 uintptr
	GetBoolValue                 uintptr
	SetIUnknownValue             uintptr
	GetIUnknownValue             uintptr
	SetGuidValue                 uintptr
	GetGuidValue                 uintptr
	SetBufferValue               uintptr
	GetBufferValue               uintptr
	SetIPortableDeviceValuesValue uintptr
	GetIPortableDeviceValuesValue uintptr
	SetIPortableDevicePropVariantCollectionValue uintptr
	GetIPortableDevicePropVariantCollectionValue uintptr
	SetIPortableDeviceKeyCollectionValue         uintptr
	GetIPortableDeviceKeyCollectionValue         uintptr
	SetIPortableDeviceValuesCollectionValue      uintptr
	GetIPortableDeviceValuesCollectionValue      uintptr
	RemoveValue                uintptr
	CopyValuesFromPropertyStore uintptr
	CopyValuesToPropertyStore   uintptr
	Clear                       uintptr
}

func (v *Values) vtbl() *valuesVtbl {
	return (*valuesVtbl)(unsafe.Pointer(v.RawVTable))
}

// NewValues creates an empty PortableDeviceValues property bag.
func NewValues() (*Values, error) {
	unk, err := ole.CreateInstance(CLSIDPortableDeviceValues, IIDIPortableDeviceValues)
	if err != nil {
		return nil, err
	}
	return (*Values)(unsafe.Pointer(unk)), nil
}

func (v *Values) GetStringValue(k PropertyKey) (string, error) {
	var p *uint16
	hr, _, _ := syscall.SyscallN(v.vtbl().GetStringValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&k)), uintptr(unsafe.Pointer(&p)))
	if err := hrToErr(hr); err != nil {
		return "", err
	}
	return takeWideString(p), nil
}

func (v *Values) SetStringValue(k PropertyKey, s string) error {
	p, err := windows.UTF16PtrFromString(s)
	if err != nil {
		return err
	}
	hr, _, _ := syscall.SyscallN(v.vtbl().SetStringValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&k)), uintptr(unsafe.Pointer(p)))
	return hrToErr(hr)
}

func (v *Values) GetUint64Value(k PropertyKey) (uint64, error) {
	var out uint64
	hr, _, _ := syscall.SyscallN(v.vtbl().GetUnsignedLargeIntegerValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&k)), uintptr(unsafe.Pointer(&out)))
	if err := hrToErr(hr); err != nil {
		return 0, err
	}
	return out, nil
}

func (v *Values) SetUint64Value(k PropertyKey, val uint64) error {
	hr, _, _ := syscall.SyscallN(v.vtbl().SetUnsignedLargeIntegerValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&k)), uintptr(val))
	return hrToErr(hr)
}

func (v *Values) GetGuidValue(k PropertyKey) (ole.GUID, error) {
	var g ole.GUID
	hr, _, _ := syscall.SyscallN(v.vtbl().GetGuidValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&k)), uintptr(unsafe.Pointer(&g)))
	if err := hrToErr(hr); err != nil {
		return ole.GUID{}, err
	}
	return g, nil
}

func (v *Values) SetGuidValue(k PropertyKey, g *ole.GUID) error {
	hr, _, _ := syscall.SyscallN(v.vtbl().SetGuidValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&k)), uintptr(unsafe.Pointer(g)))
	return hrToErr(hr)
}

// GetTimeValue reads an OLE DATE property as time.Time.
func (v *Values) GetTimeValue(k PropertyKey) (time.Time, error) {
	var pv PropVariant
	hr, _, _ := syscall.SyscallN(v.vtbl().GetValue,
		uintptr(unsafe.Pointer(v)), uintptr(unsafe.Pointer(&k)), uintptr(unsafe.Pointer(&pv)))
	if err := hrToErr(hr); err != nil {
		return time.Time{}, err
	}
	defer pv.Clear()
	if pv.VT != vtDate {
		return time.Time{}, ole.NewError(ole.E_INVALIDARG)
	}
	return oleDateToTime(math.Float64frombits(pv.Val)), nil
}

// KeyCollection wraps IPortableDeviceKeyCollection.
type KeyCollection struct {
	ole.IUnknown
}

type keyCollectionVtbl struct {
	ole.IUnknownVtbl
	GetCount uintptr
	GetAt    uintptr
	Add      uintptr
	Clear    uintptr
	RemoveAt uintptr
}

func (c *KeyCollection) vtbl() *keyCollectionVtbl {
	return (*keyCollectionVtbl)(unsafe.Pointer(c.RawVTable))
}

// NewKeyCollection creates a key collection holding the given keys.
func NewKeyCollection(keys ...PropertyKey) (*KeyCollection, error) {
	unk, err := ole.CreateInstance(CLSIDPortableDeviceKeys, IIDIPortableDeviceKeys)
	if err != nil {
		return nil, err
	}
	c := (*KeyCollection)(unsafe.Pointer(unk))
	for i := range keys {
		hr, _, _ := syscall.SyscallN(c.vtbl().Add,
			uintptr(unsafe.Pointer(c)), uintptr(unsafe.Pointer(&keys[i])))
		if err := hrToErr(hr); err != nil {
			c.Release()
			return nil, err
		}
	}
	return c, nil
}

// PropVariantCollection wraps IPortableDevicePropVariantCollection; Delete
// takes its object ids through one of these.
type PropVariantCollection struct {
	ole.IUnknown
}

type pvcVtbl struct {
	ole.IUnknownVtbl
	GetCount   uintptr
	GetType    uintptr
	GetAt      uintptr
	Add        uintptr
	Clear      uintptr
	RemoveAt   uintptr
	ChangeType uintptr
}

func (c *PropVariantCollection) vtbl() *pvcVtbl {
	return (*pvcVtbl)(unsafe.Pointer(c.RawVTable))
}

// NewObjectIDCollection builds a collection holding a single object id.
func NewObjectIDCollection(objectID string) (*PropVariantCollection, error) {
	unk, err := ole.CreateInstance(CLSIDPortableDevicePVC, IIDIPortableDevicePVC)
	if err != nil {
		return nil, err
	}
	c := (*PropVariantCollection)(unsafe.Pointer(unk))
	p, err := windows.UTF16PtrFromString(objectID)
	if err != nil {
		c.Release()
		return nil, err
	}
	pv := PropVariant{VT: vtLPWSTR, Val: uint64(uintptr(unsafe.Pointer(p)))}
	hr, _, _ := syscall.SyscallN(c.vtbl().Add,
		uintptr(unsafe.Pointer(c)), uintptr(unsafe.Pointer(&pv)))
	if err := hrToErr(hr); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}
