//go:build !linux

package blockdev

import "errors"

var ErrUnsupportedPlatform = errors.New("raw block devices are only supported on linux")

// Raw is unavailable on this platform.
type Raw struct{}

func OpenRaw(path string) (*Raw, error) {
	return nil, ErrUnsupportedPlatform
}

func (r *Raw) ReadSectors(buf []byte, lba uint64, count uint32) error {
	return ErrUnsupportedPlatform
}

func (r *Raw) WriteSectors(lba uint64, count uint32, buf []byte) error {
	return ErrUnsupportedPlatform
}

func (r *Raw) Close() error {
	return ErrUnsupportedPlatform
}
