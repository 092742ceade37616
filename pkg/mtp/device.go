package mtp

import (
	"sort"
	"strings"
	"sync"

	"github.com/portablefs/mtpkit/internal/platform"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

// Device is one attached MTP device. All backend calls against a device are
// serialized behind its mutex; independent devices may be used concurrently.
type Device struct {
	// ID is the platform-stable device identity.
	ID string
	// Name is the display label. Never empty: when the platform reports no
	// usable friendly name a deterministic fallback is substituted.
	Name        string
	Description string
	Serial      string

	access *Access

	mu     sync.Mutex
	sess   platform.Session
	closed bool
}

// Devices re-queries the platform for attached devices. Results are sorted
// by display label; no caching happens across calls since devices attach and
// detach outside our control. One device with broken metadata never aborts
// enumeration of the rest.
func (a *Access) Devices() ([]*Device, error) {
	infos, err := a.backend.Devices()
	if err != nil {
		return nil, err
	}
	devices := make([]*Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, &Device{
			ID:          info.ID,
			Name:        displayLabel(info),
			Description: strings.TrimSpace(info.Description),
			Serial:      strings.TrimSpace(info.Serial),
			access:      a,
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// displayLabel picks the first usable identity string: friendly name,
// description, serial, then a fixed fallback. Whitespace-only names count as
// missing.
func displayLabel(info platform.DeviceInfo) string {
	for _, candidate := range []string{info.Name, info.Description, info.Serial} {
		if label := strings.TrimSpace(candidate); label != "" {
			return label
		}
	}
	return "Unknown device"
}

// withSession runs fn against the device's session, opening it on first
// use. A disconnect detected by fn drops the session so the next call
// re-opens cleanly.
func (d *Device) withSession(fn func(platform.Session) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return &mtperr.DisconnectedError{DeviceID: d.ID}
	}
	if d.sess == nil {
		sess, err := d.access.backend.Open(d.ID)
		if err != nil {
			return err
		}
		d.sess = sess
	}
	err := fn(d.sess)
	if mtperr.IsDisconnected(err) {
		_ = d.sess.Close()
		d.sess = nil
	}
	return err
}

// Close releases the device session. The device can no longer be used.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.sess == nil {
		return nil
	}
	err := d.sess.Close()
	d.sess = nil
	return err
}

// Storage is one storage area of a device. Capacity and Free are -1 when
// the platform cannot report them.
type Storage struct {
	Root        *Object
	Description string
	Capacity    int64
	Free        int64
}

// Storages lists the device's storages. Each storage's root object carries
// the virtual path "<device label>/<storage name>".
func (d *Device) Storages() ([]*Storage, error) {
	var infos []platform.ObjectInfo
	err := d.withSession(func(sess platform.Session) error {
		var err error
		infos, err = sess.Storages()
		return err
	})
	if err != nil {
		return nil, err
	}
	storages := make([]*Storage, 0, len(infos))
	for _, info := range infos {
		storages = append(storages, &Storage{
			Root:        newObject(d, info, d.Name+"/"+info.Name),
			Description: info.Description,
			Capacity:    info.Capacity,
			Free:        info.Free,
		})
	}
	return storages, nil
}
