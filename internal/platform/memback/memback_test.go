package memback_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portablefs/mtpkit/internal/platform"
	"github.com/portablefs/mtpkit/internal/platform/memback"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

func TestDisconnectFailsLiveSession(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-1", "Phone", "", "")
	storage := back.AddStorage("dev-1", "Internal", -1, -1)

	sess, err := back.Open("dev-1")
	require.NoError(t, err)
	_, err = sess.Children(storage)
	require.NoError(t, err)

	back.Disconnect("dev-1")
	_, err = sess.Children(storage)
	assert.True(t, mtperr.IsDisconnected(err))

	// And the device no longer enumerates.
	devices, err := back.Devices()
	require.NoError(t, err)
	assert.Empty(t, devices)

	_, err = back.Open("dev-1")
	assert.ErrorIs(t, err, mtperr.ErrDeviceNotFound)
}

func TestCommitReplacesSameName(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-1", "Phone", "", "")
	storage := back.AddStorage("dev-1", "Internal", -1, -1)
	back.AddFile("dev-1", storage, "note.txt", []byte("old"))

	sess, err := back.Open("dev-1")
	require.NoError(t, err)
	w, err := sess.Create(storage, "note.txt", 3)
	require.NoError(t, err)
	_, err = w.Write([]byte("new"))
	require.NoError(t, err)
	info, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, "note.txt", info.Name)

	children, err := sess.Children(storage)
	require.NoError(t, err)
	require.Len(t, children, 1)
	data, ok := back.FileData("dev-1", children[0].Handle)
	require.True(t, ok)
	assert.Equal(t, "new", string(data))
}

func TestAbortLeavesTreeUntouched(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-1", "Phone", "", "")
	storage := back.AddStorage("dev-1", "Internal", -1, -1)

	sess, err := back.Open("dev-1")
	require.NoError(t, err)
	w, err := sess.Create(storage, "note.txt", 3)
	require.NoError(t, err)
	_, err = w.Write([]byte("ne"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	children, err := sess.Children(storage)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestReadSnapshotSurvivesRemoval(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-1", "Phone", "", "")
	storage := back.AddStorage("dev-1", "Internal", -1, -1)
	file := back.AddFile("dev-1", storage, "note.txt", []byte("payload"))

	sess, err := back.Open("dev-1")
	require.NoError(t, err)
	r, err := sess.OpenRead(file)
	require.NoError(t, err)
	defer r.Close()

	// Removing the object mid-read does not corrupt the open stream.
	back.RemoveObject("dev-1", file)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = sess.Stat(file)
	assert.True(t, mtperr.IsNotFound(err))
}

func TestStorageInfo(t *testing.T) {
	back := memback.New()
	back.AddDevice("dev-1", "Phone", "", "")
	back.AddStorage("dev-1", "Internal", 100, 40)

	sess, err := back.Open("dev-1")
	require.NoError(t, err)
	storages, err := sess.Storages()
	require.NoError(t, err)
	require.Len(t, storages, 1)
	assert.Equal(t, platform.KindStorage, storages[0].Kind)
	assert.Equal(t, int64(100), storages[0].Capacity)
	assert.Equal(t, int64(40), storages[0].Free)
}
