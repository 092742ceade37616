// Package app wires the CLI commands over the mtp access layer.
package app

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/portablefs/mtpkit/internal/config"
	"github.com/portablefs/mtpkit/internal/logging"
	"github.com/portablefs/mtpkit/pkg/mtp"
)

// open builds an Access from the environment configuration.
func open() (*mtp.Access, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	log := logging.New(cfg.LogLevel)
	return mtp.New(
		mtp.WithLogger(log),
		mtp.WithChunkSize(cfg.ChunkSize),
		mtp.WithGVFSRoot(cfg.GVFSRoot),
	)
}

// pickDevice matches by exact id first, then by case-insensitive label. An
// empty selector picks the only attached device.
func pickDevice(access *mtp.Access, selector string) (*mtp.Device, error) {
	devices, err := access.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, errors.New("no MTP devices attached")
	}
	if selector == "" {
		if len(devices) == 1 {
			return devices[0], nil
		}
		return nil, errors.Errorf("%d devices attached, pass --device to pick one", len(devices))
	}
	for _, dev := range devices {
		if dev.ID == selector {
			return dev, nil
		}
	}
	for _, dev := range devices {
		if strings.EqualFold(dev.Name, selector) {
			return dev, nil
		}
	}
	return nil, errors.Errorf("no device matching %q", selector)
}
