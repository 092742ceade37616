package mtp

import (
	"context"
	"errors"

	"github.com/portablefs/mtpkit/pkg/mtperr"
)

// WalkFunc is called once per visited directory with that directory's live
// listing. Returning SkipDir prunes the directory's subtree; returning
// SkipAll ends the walk cleanly; any other error aborts the walk and is
// returned from Walk.
type WalkFunc func(path string, folders, files []*Object) error

var (
	// SkipDir tells Walk not to descend into the directory just visited.
	SkipDir = errors.New("mtp: skip this directory")

	// SkipAll tells Walk to stop immediately. Walk returns nil.
	SkipAll = errors.New("mtp: skip everything remaining")
)

type walkConfig struct {
	onError    func(path string, err error)
	onProgress func(path string) bool
}

// WalkOption configures a Walk call.
type WalkOption func(*walkConfig)

// WithWalkErrors installs a side channel for entries that were skipped
// because of a recoverable error. Without it skipped entries are only
// logged at debug level.
func WithWalkErrors(fn func(path string, err error)) WalkOption {
	return func(c *walkConfig) { c.onError = fn }
}

// WithWalkProgress installs a callback fired before each directory is
// listed. Returning false cancels the walk; Walk returns nil.
func WithWalkProgress(fn func(path string) bool) WalkOption {
	return func(c *walkConfig) { c.onProgress = fn }
}

// Walk traverses the tree under root top-down, calling fn for every
// directory with a freshly enumerated listing. A nil root walks every
// storage of the device.
//
// The walk tolerates the tree changing underneath it: entries that vanish
// or turn unreadable between enumeration and visit are skipped and reported
// on the error side channel, never aborting the walk. A device disconnect
// ends the walk with a DisconnectedError. Paths handed to fn are built from
// the names observed during this walk, so a visited directory's path always
// extends the path of the parent it was discovered under.
func (d *Device) Walk(ctx context.Context, root *Object, fn WalkFunc, opts ...WalkOption) error {
	cfg := walkConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var queue []*Object
	if root != nil {
		if !root.IsDir() {
			return errors.New("mtp: walk root is not a directory")
		}
		queue = append(queue, root)
	} else {
		storages, err := d.Storages()
		if err != nil {
			return err
		}
		for _, storage := range storages {
			queue = append(queue, storage.Root)
		}
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := queue[0]
		queue = queue[1:]

		if cfg.onProgress != nil && !cfg.onProgress(dir.Path) {
			return nil
		}

		folders, files, err := dir.Children()
		if err != nil {
			if mtperr.IsDisconnected(err) {
				return err
			}
			// The directory itself vanished or turned unreadable after it
			// was enumerated. Report and keep walking the rest.
			d.access.log.Debug().Str("path", dir.Path).Err(err).Msg("skipping unreadable directory")
			if cfg.onError != nil {
				cfg.onError(dir.Path, err)
			}
			continue
		}

		switch err := fn(dir.Path, folders, files); {
		case err == nil:
			queue = append(queue, folders...)
		case errors.Is(err, SkipDir):
			// Prune this subtree, keep walking siblings.
		case errors.Is(err, SkipAll):
			return nil
		default:
			return err
		}
	}
	return nil
}
