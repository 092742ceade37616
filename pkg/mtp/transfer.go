package mtp

import (
	"context"
	"hash"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/portablefs/mtpkit/internal/platform"
	"github.com/portablefs/mtpkit/pkg/mtperr"
)

type transferConfig struct {
	chunkSize int
	progress  func(total int64)
	digest    *[]byte
}

// TransferOption configures a single Download or Upload call.
type TransferOption func(*transferConfig)

// WithProgress reports the running byte total after every chunk.
func WithProgress(fn func(total int64)) TransferOption {
	return func(c *transferConfig) { c.progress = fn }
}

// WithDigest computes a BLAKE2b-256 digest of the transferred bytes and
// stores it in sum when the transfer completes.
func WithDigest(sum *[]byte) TransferOption {
	return func(c *transferConfig) { c.digest = sum }
}

// WithTransferChunkSize overrides the chunk size for this transfer only.
func WithTransferChunkSize(n int) TransferOption {
	return func(c *transferConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func (a *Access) transferConfig(opts []TransferOption) transferConfig {
	cfg := transferConfig{chunkSize: a.chunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c *transferConfig) hasher() hash.Hash {
	if c.digest == nil {
		return nil
	}
	h, _ := blake2b.New256(nil)
	return h
}

// Download copies a file object into dst in chunks and returns the number
// of bytes written. Cancellation and mid-stream failures surface as
// TransferInterrupted carrying the byte count moved so far; a device
// disconnect passes through as a DisconnectedError.
func (d *Device) Download(ctx context.Context, obj *Object, dst io.Writer, opts ...TransferOption) (int64, error) {
	if obj.IsDir() {
		return 0, errors.Errorf("mtp: %s is not a file", obj.Path)
	}
	cfg := d.access.transferConfig(opts)

	var src io.ReadCloser
	err := d.withSession(func(sess platform.Session) error {
		var err error
		src, err = sess.OpenRead(obj.handle)
		return err
	})
	if err != nil {
		return 0, err
	}
	defer src.Close()

	h := cfg.hasher()
	buf := make([]byte, cfg.chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, &mtperr.TransferInterrupted{Bytes: total, Err: err}
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, &mtperr.TransferInterrupted{Bytes: total, Err: werr}
			}
			if h != nil {
				h.Write(buf[:n])
			}
			total += int64(n)
			if cfg.progress != nil {
				cfg.progress(total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if mtperr.IsDisconnected(rerr) {
				return total, rerr
			}
			return total, &mtperr.TransferInterrupted{Bytes: total, Err: rerr}
		}
	}
	if h != nil {
		*cfg.digest = h.Sum(nil)
	}
	d.access.log.Debug().Str("path", obj.Path).Int64("bytes", total).Msg("download complete")
	return total, nil
}

// Upload streams src into a new file named name under folder and returns
// the created object. size is the expected length, which some devices
// require up front. On cancellation or failure the partial object is
// removed from the device before the error is returned.
func (d *Device) Upload(ctx context.Context, folder *Object, name string, src io.Reader, size int64, opts ...TransferOption) (*Object, error) {
	if !folder.IsDir() {
		return nil, errors.Errorf("mtp: %s is not a folder", folder.Path)
	}
	cfg := d.access.transferConfig(opts)

	var w platform.WriteSession
	err := d.withSession(func(sess platform.Session) error {
		var err error
		w, err = sess.Create(folder.handle, name, size)
		return err
	})
	if err != nil {
		return nil, err
	}

	h := cfg.hasher()
	buf := make([]byte, cfg.chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			_ = w.Abort()
			return nil, &mtperr.TransferInterrupted{Bytes: total, Err: err}
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				_ = w.Abort()
				if mtperr.IsDisconnected(werr) {
					return nil, werr
				}
				return nil, &mtperr.TransferInterrupted{Bytes: total, Err: werr}
			}
			if h != nil {
				h.Write(buf[:n])
			}
			total += int64(n)
			if cfg.progress != nil {
				cfg.progress(total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = w.Abort()
			return nil, &mtperr.TransferInterrupted{Bytes: total, Err: rerr}
		}
	}

	info, err := w.Commit()
	if err != nil {
		return nil, &mtperr.TransferInterrupted{Bytes: total, Err: err}
	}
	if h != nil {
		*cfg.digest = h.Sum(nil)
	}
	d.access.log.Debug().Str("path", folder.Path+"/"+name).Int64("bytes", total).Msg("upload complete")
	return newObject(d, info, folder.Path+"/"+name), nil
}
