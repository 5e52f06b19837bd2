//go:build linux

package blockdev

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Raw is a block device node (for example /dev/sdb) accessed with positioned
// reads and writes.
type Raw struct {
	fd   int
	path string
}

// OpenRaw opens the device node at path for reading and writing.
func OpenRaw(path string) (*Raw, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening block device `%s`: %w", path, err)
	}
	return &Raw{fd: fd, path: path}, nil
}

func (r *Raw) ReadSectors(buf []byte, lba uint64, count uint32) error {
	if err := checkBuffer(buf, count); err != nil {
		return err
	}

	for done := 0; done < len(buf); {
		n, err := unix.Pread(r.fd, buf[done:], int64(lba)*SectorSize+int64(done))
		if err != nil {
			return fmt.Errorf("reading `%s` at lba `%d`: %w", r.path, lba, err)
		}
		if n == 0 {
			return fmt.Errorf("reading `%s` at lba `%d`: %w", r.path, lba, ErrShortTransfer)
		}
		done += n
	}
	return nil
}

func (r *Raw) WriteSectors(lba uint64, count uint32, buf []byte) error {
	if err := checkBuffer(buf, count); err != nil {
		return err
	}

	for done := 0; done < len(buf); {
		n, err := unix.Pwrite(r.fd, buf[done:], int64(lba)*SectorSize+int64(done))
		if err != nil {
			return fmt.Errorf("writing `%s` at lba `%d`: %w", r.path, lba, err)
		}
		if n == 0 {
			return fmt.Errorf("writing `%s` at lba `%d`: %w", r.path, lba, ErrShortTransfer)
		}
		done += n
	}
	return nil
}

func (r *Raw) Close() error {
	return unix.Close(r.fd)
}
