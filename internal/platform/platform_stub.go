//go:build !linux && !windows

package platform

import "github.com/portablefs/mtpkit/pkg/mtperr"

func newBackend(Config) (Backend, error) {
	return nil, mtperr.ErrPlatformUnsupported
}
