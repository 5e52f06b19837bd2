// Package blockdev describes the sector-addressed storage a FAT volume lives
// on and provides a few implementations of it.
//
// All transfers are whole sectors of SectorSize bytes.
package blockdev

import (
	"errors"
	"fmt"
)

// SectorSize is the only sector size supported.
const SectorSize = 512

var (
	ErrBufferSize    = errors.New("buffer size does not match sector count")
	ErrOutOfRange    = errors.New("sector range outside of the device")
	ErrShortTransfer = errors.New("device transferred less than requested")
)

//go:generate mockgen -source=device.go -destination=mock_blockdev/device_mock.go

// Device is a synchronous block device. Calls block until the transfer is
// complete; a device never reports partial success.
type Device interface {
	ReadSectors(buf []byte, lba uint64, count uint32) error
	WriteSectors(lba uint64, count uint32, buf []byte) error
}

func checkBuffer(buf []byte, count uint32) error {
	if len(buf) != int(count)*SectorSize {
		return fmt.Errorf("%w: got %d bytes for %d sectors", ErrBufferSize, len(buf), count)
	}
	return nil
}

// ReadSector is a convenience for reading a single freshly allocated sector.
func ReadSector(dev Device, lba uint64) ([]byte, error) {
	buf := make([]byte, SectorSize)
	if err := dev.ReadSectors(buf, lba, 1); err != nil {
		return nil, err
	}
	return buf, nil
}
