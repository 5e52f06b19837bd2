package gofat32

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/spf13/afero"
)

// fatFileFs provides all methods needed from a fat filesystem for File.
// It mainly exists to be able to mock the Fs in tests.
// Generated mock using mockgen:
//
//	mockgen -source=file.go -destination=file_mock_test.go -package gofat32
type fatFileFs interface {
	readFileAt(entry DirEntry, offset int64, readSize int64) ([]byte, error)
	readDir(entry DirEntry) ([]DirEntry, error)
}

// File is an open entry of a FAT32 volume. Its content can be read but not
// modified, deleting happens through Fs.Remove.
type File struct {
	fs   fatFileFs
	path string

	entry  DirEntry
	offset int64
}

var _ afero.File = (*File)(nil)

func (f *File) Close() error {
	f.fs = nil
	f.path = ""
	f.entry = DirEntry{}
	f.offset = 0

	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if p == nil {
		return 0, nil
	}

	// Reading a file if the size has been already reached, makes no sense.
	if f.entry.Size() <= f.offset {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry, f.offset, int64(len(p)))
	copy(p, data)

	// Seek even if an error occurred, errors from reading are used even if seek also errors.
	_, seekErr := f.Seek(int64(len(data)), io.SeekCurrent)

	if err != nil {
		return len(data), checkpoint.Wrap(err, ErrReadFile)
	}

	if seekErr != nil {
		return len(data), checkpoint.Wrap(seekErr, ErrReadFile)
	}

	return len(data), nil
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if p == nil {
		return 0, nil
	}

	// Reading over the end makes no sense.
	if f.entry.Size() <= off {
		return 0, io.EOF
	}

	data, err := f.fs.readFileAt(f.entry, off, int64(len(p)))
	copy(p, data)

	if err != nil {
		return len(data), checkpoint.Wrap(err, ErrReadFile)
	}

	if len(data) < len(p) {
		return len(data), io.EOF
	}
	return len(data), nil
}

// Seek jumps to a specific offset in the file. This affects all Read operation except ReadAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = f.entry.Size() + offset
	default:
		return 0, checkpoint.Wrap(syscall.EINVAL, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	if offset < 0 || offset > f.entry.Size() {
		return 0, checkpoint.Wrap(afero.ErrOutOfRange, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	return 0, f.readOnly("write")
}

func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	return 0, f.readOnly("writeat")
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

func (f *File) Truncate(size int64) error {
	return f.readOnly("truncate")
}

func (f *File) Sync() error {
	return nil
}

func (f *File) readOnly(op string) error {
	return &os.PathError{Op: op, Path: f.path, Err: syscall.EPERM}
}

func (f *File) Name() string {
	return f.path
}

// Readdir reads the contents of a directory. With count > 0 at most count
// entries are returned and io.EOF signals the end of the directory.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.entry.IsDir() {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	content, err := f.fs.readDir(f.entry)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	if f.offset > int64(len(content)) {
		f.offset = int64(len(content))
	}
	rest := content[f.offset:]

	if count > 0 {
		if len(rest) == 0 {
			return nil, io.EOF
		}
		if count < len(rest) {
			rest = rest[:count]
		}
	}
	f.offset += int64(len(rest))

	result := make([]os.FileInfo, len(rest))
	for i := range rest {
		result[i] = rest[i].FileInfo()
	}

	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	return f.entry.FileInfo(), nil
}
