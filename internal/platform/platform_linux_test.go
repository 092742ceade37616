//go:build linux

package platform_test

import (
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portablefs/mtpkit/internal/platform"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

const mount = "mtp:host=Moto_G_0123456789"

// gvfsFixture builds a mem filesystem resembling a gvfs mount with one
// attached device holding Internal storage/DCIM/pic.jpg.
func gvfsFixture(t *testing.T) (afero.Fs, platform.Backend) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/gvfs/"+mount+"/Internal storage/DCIM", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/gvfs/"+mount+"/Internal storage/DCIM/pic.jpg", []byte("jpeg"), 0o644))
	return fs, platform.NewGVFSBackend(fs, "/gvfs")
}

func TestParseMountName(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/gvfs/"+mount+"/Internal storage", 0o755))
	back := platform.NewGVFSBackend(fs, "/gvfs")

	devices, err := back.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, mount, devices[0].ID)
	assert.Equal(t, "Moto_G_0123456789", devices[0].Name)
	assert.Equal(t, "Moto", devices[0].Description)
	assert.Equal(t, "0123456789", devices[0].Serial)
}

func TestDevicesSkipsUnreadyMounts(t *testing.T) {
	fs := afero.NewMemMapFs()
	// Still negotiating: the mount directory exists but has no storages.
	require.NoError(t, fs.MkdirAll("/gvfs/mtp:host=Empty_Device_XYZ", 0o755))
	back := platform.NewGVFSBackend(fs, "/gvfs")

	devices, err := back.Devices()
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestOpenUnknownDevice(t *testing.T) {
	_, back := gvfsFixture(t)
	_, err := back.Open("mtp:host=Not_Attached_000")
	assert.ErrorIs(t, err, mtperr.ErrDeviceNotFound)
}

func TestSessionBrowse(t *testing.T) {
	_, back := gvfsFixture(t)
	sess, err := back.Open(mount)
	require.NoError(t, err)
	defer sess.Close()

	storages, err := sess.Storages()
	require.NoError(t, err)
	require.Len(t, storages, 1)
	assert.Equal(t, "Internal storage", storages[0].Name)
	assert.Equal(t, platform.KindStorage, storages[0].Kind)

	children, err := sess.Children(storages[0].Handle)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "DCIM", children[0].Name)
	assert.Equal(t, platform.KindFolder, children[0].Kind)

	grandchildren, err := sess.Children(children[0].Handle)
	require.NoError(t, err)
	require.Len(t, grandchildren, 1)
	assert.Equal(t, "pic.jpg", grandchildren[0].Name)
	assert.Equal(t, platform.KindFile, grandchildren[0].Kind)
	assert.Equal(t, int64(4), grandchildren[0].Size)
}

// A missing child while the device mount still exists is a stale handle; a
// missing device mount is a disconnect.
func TestVanishedPathClassification(t *testing.T) {
	fs, back := gvfsFixture(t)
	sess, err := back.Open(mount)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Children("/gvfs/" + mount + "/Internal storage/Gone")
	assert.True(t, mtperr.IsNotFound(err))
	assert.False(t, mtperr.IsDisconnected(err))

	require.NoError(t, fs.RemoveAll("/gvfs/"+mount))
	_, err = sess.Children("/gvfs/" + mount + "/Internal storage/Gone")
	assert.True(t, mtperr.IsDisconnected(err))
}

func TestWriteCommit(t *testing.T) {
	fs, back := gvfsFixture(t)
	sess, err := back.Open(mount)
	require.NoError(t, err)
	defer sess.Close()

	parent := "/gvfs/" + mount + "/Internal storage/DCIM"
	w, err := sess.Create(parent, "clip.mp4", 4)
	require.NoError(t, err)
	_, err = w.Write([]byte("mp4!"))
	require.NoError(t, err)

	// Until commit the final name does not exist.
	_, err = sess.Stat(parent + "/clip.mp4")
	assert.True(t, mtperr.IsNotFound(err))

	info, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", info.Name)
	assert.Equal(t, int64(4), info.Size)

	data, err := afero.ReadFile(fs, parent+"/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "mp4!", string(data))

	// No temp leftovers.
	entries, err := afero.ReadDir(fs, parent)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), "."), entry.Name())
	}
}

func TestWriteAbort(t *testing.T) {
	fs, back := gvfsFixture(t)
	sess, err := back.Open(mount)
	require.NoError(t, err)
	defer sess.Close()

	parent := "/gvfs/" + mount + "/Internal storage/DCIM"
	w, err := sess.Create(parent, "clip.mp4", 4)
	require.NoError(t, err)
	_, err = w.Write([]byte("mp"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	_, err = sess.Stat(parent + "/clip.mp4")
	assert.True(t, mtperr.IsNotFound(err))
	entries, err := afero.ReadDir(fs, parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pic.jpg", entries[0].Name())
}

func TestMakeDirIdempotent(t *testing.T) {
	_, back := gvfsFixture(t)
	sess, err := back.Open(mount)
	require.NoError(t, err)
	defer sess.Close()

	parent := "/gvfs/" + mount + "/Internal storage"
	first, err := sess.MakeDir(parent, "Music")
	require.NoError(t, err)
	assert.Equal(t, platform.KindFolder, first.Kind)

	second, err := sess.MakeDir(parent, "Music")
	require.NoError(t, err)
	assert.Equal(t, first.Handle, second.Handle)
}

func TestRemoveSubtree(t *testing.T) {
	fs, back := gvfsFixture(t)
	sess, err := back.Open(mount)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.Remove("/gvfs/"+mount+"/Internal storage/DCIM"))
	ok, err := afero.DirExists(fs, "/gvfs/"+mount+"/Internal storage/DCIM")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenRead(t *testing.T) {
	_, back := gvfsFixture(t)
	sess, err := back.Open(mount)
	require.NoError(t, err)
	defer sess.Close()

	r, err := sess.OpenRead("/gvfs/" + mount + "/Internal storage/DCIM/pic.jpg")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}
