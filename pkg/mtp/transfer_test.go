package mtp_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portablefs/mtpkit/internal/platform/memback"
	"github.com/portablefs/mtpkit/pkg/mtp"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

// transferFixture builds a device with Internal storage/DCIM/pic.jpg and
// returns the DCIM folder's handle for backend-level assertions.
func transferFixture(t *testing.T, data []byte) (*memback.Backend, *mtp.Device, string) {
	t.Helper()
	back := memback.New()
	back.AddDevice("dev-1", "Pixel 8", "", "")
	storage := back.AddStorage("dev-1", "Internal storage", -1, -1)
	dcim := back.AddFolder("dev-1", storage, "DCIM")
	back.AddFile("dev-1", dcim, "pic.jpg", data)

	devices, err := mtp.NewWithBackend(back).Devices()
	require.NoError(t, err)
	return back, devices[0], dcim
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestDownload(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single chunk", pattern(10)},
		{"chunk boundary", pattern(64)},
		{"multiple chunks", pattern(1000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, dev, _ := transferFixture(t, tc.data)
			defer dev.Close()

			obj, err := dev.Resolve("Internal storage/DCIM/pic.jpg")
			require.NoError(t, err)

			var dst bytes.Buffer
			n, err := dev.Download(context.Background(), obj, &dst,
				mtp.WithTransferChunkSize(64))
			require.NoError(t, err)
			assert.Equal(t, int64(len(tc.data)), n)
			assert.Equal(t, tc.data, dst.Bytes())
		})
	}
}

func TestDownloadProgress(t *testing.T) {
	data := pattern(150)
	_, dev, _ := transferFixture(t, data)
	defer dev.Close()

	obj, err := dev.Resolve("Internal storage/DCIM/pic.jpg")
	require.NoError(t, err)

	var totals []int64
	_, err = dev.Download(context.Background(), obj, io.Discard,
		mtp.WithTransferChunkSize(64),
		mtp.WithProgress(func(total int64) { totals = append(totals, total) }))
	require.NoError(t, err)
	assert.Equal(t, []int64{64, 128, 150}, totals)
}

func TestDownloadRejectsFolder(t *testing.T) {
	_, dev, _ := transferFixture(t, nil)
	defer dev.Close()

	obj, err := dev.Resolve("Internal storage/DCIM")
	require.NoError(t, err)
	_, err = dev.Download(context.Background(), obj, io.Discard)
	assert.Error(t, err)
}

type failingWriter struct {
	allow int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.allow <= 0 {
		return 0, errors.New("disk full")
	}
	w.allow--
	return len(p), nil
}

func TestDownloadWriteFailure(t *testing.T) {
	_, dev, _ := transferFixture(t, pattern(200))
	defer dev.Close()

	obj, err := dev.Resolve("Internal storage/DCIM/pic.jpg")
	require.NoError(t, err)

	_, err = dev.Download(context.Background(), obj, &failingWriter{allow: 1},
		mtp.WithTransferChunkSize(64))
	var interrupted *mtperr.TransferInterrupted
	require.ErrorAs(t, err, &interrupted)
	assert.Equal(t, int64(64), interrupted.Bytes)
}

func TestDownloadCancel(t *testing.T) {
	_, dev, _ := transferFixture(t, pattern(200))
	defer dev.Close()

	obj, err := dev.Resolve("Internal storage/DCIM/pic.jpg")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = dev.Download(ctx, obj, writerFunc(func(p []byte) (int, error) {
		cancel()
		return len(p), nil
	}), mtp.WithTransferChunkSize(64))
	var interrupted *mtperr.TransferInterrupted
	require.ErrorAs(t, err, &interrupted)
	assert.ErrorIs(t, interrupted.Err, context.Canceled)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestUploadRoundTrip(t *testing.T) {
	data := pattern(1000)
	back, dev, dcim := transferFixture(t, nil)
	defer dev.Close()

	folder, err := dev.Resolve("Internal storage/DCIM")
	require.NoError(t, err)

	obj, err := dev.Upload(context.Background(), folder, "clip.mp4",
		bytes.NewReader(data), int64(len(data)),
		mtp.WithTransferChunkSize(64))
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", obj.Name)
	assert.Equal(t, "Pixel 8/Internal storage/DCIM/clip.mp4", obj.Path)

	handle, ok := back.ChildNamed("dev-1", dcim, "clip.mp4")
	require.True(t, ok)
	stored, ok := back.FileData("dev-1", handle)
	require.True(t, ok)
	assert.Equal(t, data, stored)

	// And it reads back through the public API.
	got, err := dev.Resolve("Internal storage/DCIM/clip.mp4")
	require.NoError(t, err)
	var dst bytes.Buffer
	_, err = dev.Download(context.Background(), got, &dst)
	require.NoError(t, err)
	assert.Equal(t, data, dst.Bytes())
}

func TestUploadCancelLeavesNoObject(t *testing.T) {
	back, dev, dcim := transferFixture(t, nil)
	defer dev.Close()

	folder, err := dev.Resolve("Internal storage/DCIM")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	data := pattern(1000)
	cancelAfterFirst := &cancellingReader{r: bytes.NewReader(data), cancel: cancel}
	_, err = dev.Upload(ctx, folder, "clip.mp4", cancelAfterFirst, int64(len(data)),
		mtp.WithTransferChunkSize(64))
	var interrupted *mtperr.TransferInterrupted
	require.ErrorAs(t, err, &interrupted)
	assert.ErrorIs(t, interrupted.Err, context.Canceled)

	// The aborted upload left nothing behind.
	_, resolveErr := dev.Resolve("Internal storage/DCIM/clip.mp4")
	assert.True(t, mtperr.IsNotFound(resolveErr))
	_, exists := back.ChildNamed("dev-1", dcim, "clip.mp4")
	assert.False(t, exists)
}

// cancellingReader cancels the context after the first successful read.
type cancellingReader struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancellingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.cancel()
	}
	return n, err
}

func TestUploadSourceFailure(t *testing.T) {
	_, dev, _ := transferFixture(t, nil)
	defer dev.Close()

	folder, err := dev.Resolve("Internal storage/DCIM")
	require.NoError(t, err)

	src := io.MultiReader(bytes.NewReader(pattern(64)),
		readerFunc(func(p []byte) (int, error) { return 0, errors.New("source vanished") }))
	_, err = dev.Upload(context.Background(), folder, "clip.mp4", src, 128,
		mtp.WithTransferChunkSize(64))
	var interrupted *mtperr.TransferInterrupted
	require.ErrorAs(t, err, &interrupted)

	_, resolveErr := dev.Resolve("Internal storage/DCIM/clip.mp4")
	assert.True(t, mtperr.IsNotFound(resolveErr))
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func TestDigestsMatchAcrossRoundTrip(t *testing.T) {
	data := pattern(500)
	_, dev, _ := transferFixture(t, nil)
	defer dev.Close()

	folder, err := dev.Resolve("Internal storage/DCIM")
	require.NoError(t, err)

	var upSum []byte
	obj, err := dev.Upload(context.Background(), folder, "clip.mp4",
		bytes.NewReader(data), int64(len(data)),
		mtp.WithDigest(&upSum), mtp.WithTransferChunkSize(64))
	require.NoError(t, err)
	require.Len(t, upSum, 32)

	var downSum []byte
	_, err = dev.Download(context.Background(), obj, io.Discard,
		mtp.WithDigest(&downSum), mtp.WithTransferChunkSize(128))
	require.NoError(t, err)
	assert.Equal(t, upSum, downSum)
}

func TestUploadDuringDisconnect(t *testing.T) {
	back, dev, _ := transferFixture(t, nil)
	defer dev.Close()

	folder, err := dev.Resolve("Internal storage/DCIM")
	require.NoError(t, err)

	back.Disconnect("dev-1")
	_, err = dev.Upload(context.Background(), folder, "clip.mp4",
		bytes.NewReader(pattern(10)), 10)
	assert.True(t, mtperr.IsDisconnected(err))
}
