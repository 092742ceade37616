// Package mtperr defines the error kinds surfaced by the MTP access layer.
//
// Callers distinguish recoverable per-object conditions (ObjectNotFound,
// AccessDenied) from conditions that end the current operation
// (DeviceDisconnected, TransferInterrupted) with errors.Is / errors.As.
package mtperr

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound is returned when a device id does not match any
	// attached device.
	ErrDeviceNotFound = errors.New("mtp: device not found")

	// ErrObjectNotFound is returned when an object handle no longer resolves,
	// typically because the object was deleted on the device after it was
	// enumerated. Recoverable: skip the entry and continue.
	ErrObjectNotFound = errors.New("mtp: object not found")

	// ErrAccessDenied is returned when the device refuses access to a single
	// object. Recoverable at the entry level.
	ErrAccessDenied = errors.New("mtp: access denied")

	// ErrPlatformUnsupported is returned at startup when no backend exists
	// for the host platform.
	ErrPlatformUnsupported = errors.New("mtp: platform not supported")
)

// DisconnectedError reports that the device vanished underneath an operation.
// It ends the current walk or transfer, not the process.
type DisconnectedError struct {
	DeviceID string
	Err      error
}

func (e *DisconnectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mtp: device %q disconnected", e.DeviceID)
	}
	return fmt.Sprintf("mtp: device %q disconnected: %v", e.DeviceID, e.Err)
}

func (e *DisconnectedError) Unwrap() error { return e.Err }

// TransferInterrupted reports a transfer that stopped partway through.
// Bytes is the number of bytes moved before the failure.
type TransferInterrupted struct {
	Bytes int64
	Err   error
}

func (e *TransferInterrupted) Error() string {
	return fmt.Sprintf("mtp: transfer interrupted after %d bytes: %v", e.Bytes, e.Err)
}

func (e *TransferInterrupted) Unwrap() error { return e.Err }

// IsDisconnected reports whether err carries a DisconnectedError anywhere in
// its chain.
func IsDisconnected(err error) bool {
	var de *DisconnectedError
	return errors.As(err, &de)
}

// IsNotFound reports whether err means a stale or unknown object handle.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// Recoverable reports whether err may be skipped at the entry level during a
// traversal. Disconnects are never recoverable.
func Recoverable(err error) bool {
	if IsDisconnected(err) {
		return false
	}
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrAccessDenied)
}
