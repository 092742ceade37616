package mtp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portablefs/mtpkit/internal/platform/memback"
	"github.com/portablefs/mtpkit/pkg/mtp"
)

func TestDevicesSortedByLabel(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-b", "Zeta Phone", "", "")
	back.AddDevice("dev-a", "Alpha Tablet", "", "")

	access := mtp.NewWithBackend(back)
	devices, err := access.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "Alpha Tablet", devices[0].Name)
	assert.Equal(t, "Zeta Phone", devices[1].Name)
}

func TestDeviceLabelFallbacks(t *testing.T) {
	cases := []struct {
		name        string
		friendly    string
		description string
		serial      string
		want        string
	}{
		{"friendly name wins", "Pixel 8", "Google Pixel", "XY123", "Pixel 8"},
		{"description next", "", "Google Pixel", "XY123", "Google Pixel"},
		{"whitespace name skipped", "   ", "Google Pixel", "XY123", "Google Pixel"},
		{"serial next", "", "", "XY123", "XY123"},
		{"fixed fallback", "", "  ", "", "Unknown device"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			back := memback.New()
			back.AddDevice("dev-1", tc.friendly, tc.description, tc.serial)

			devices, err := mtp.NewWithBackend(back).Devices()
			require.NoError(t, err)
			require.Len(t, devices, 1)
			assert.Equal(t, tc.want, devices[0].Name)
			assert.NotEmpty(t, devices[0].Name)
		})
	}
}

func TestStoragesCarryPathAndCapacity(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-1", "Pixel 8", "", "")
	back.AddStorage("dev-1", "Internal storage", 64<<30, 20<<30)
	back.AddStorage("dev-1", "SD card", -1, -1)

	devices, err := mtp.NewWithBackend(back).Devices()
	require.NoError(t, err)
	dev := devices[0]
	defer dev.Close()

	storages, err := dev.Storages()
	require.NoError(t, err)
	require.Len(t, storages, 2)
	assert.Equal(t, "Pixel 8/Internal storage", storages[0].Root.Path)
	assert.Equal(t, int64(64<<30), storages[0].Capacity)
	assert.Equal(t, int64(20<<30), storages[0].Free)
	assert.Equal(t, int64(-1), storages[1].Capacity)
}

func TestClosedDeviceRejectsUse(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-1", "Pixel 8", "", "")
	back.AddStorage("dev-1", "Internal storage", -1, -1)

	devices, err := mtp.NewWithBackend(back).Devices()
	require.NoError(t, err)
	dev := devices[0]
	require.NoError(t, dev.Close())

	_, err = dev.Storages()
	assert.Error(t, err)
}
