package blockdev

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// File is a disk image stored in a file. The file is accessed through afero
// so images can come from the OS or from a memory filesystem alike.
type File struct {
	file afero.File
}

// Open opens the image name on fs. A readOnly image rejects writes with
// the error of the underlying file.
func Open(fs afero.Fs, name string, readOnly bool) (*File, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}

	f, err := fs.OpenFile(name, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening disk image `%s`: %w", name, err)
	}

	return &File{file: f}, nil
}

// NewFile uses an already opened file as image.
func NewFile(f afero.File) *File {
	return &File{file: f}
}

func (f *File) ReadSectors(buf []byte, lba uint64, count uint32) error {
	if err := checkBuffer(buf, count); err != nil {
		return err
	}

	n, err := f.file.ReadAt(buf, int64(lba)*SectorSize)
	if n == len(buf) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = ErrShortTransfer
	}
	return fmt.Errorf(
		"reading image `%s` at lba `%d`: %w",
		f.file.Name(),
		lba,
		err,
	)
}

func (f *File) WriteSectors(lba uint64, count uint32, buf []byte) error {
	if err := checkBuffer(buf, count); err != nil {
		return err
	}

	n, err := f.file.WriteAt(buf, int64(lba)*SectorSize)
	if err == nil && n != len(buf) {
		err = ErrShortTransfer
	}
	if err != nil {
		return fmt.Errorf(
			"writing image `%s` at lba `%d`: %w",
			f.file.Name(),
			lba,
			err,
		)
	}
	return nil
}

// Sync flushes the image to its storage.
func (f *File) Sync() error {
	return f.file.Sync()
}

func (f *File) Close() error {
	return f.file.Close()
}
