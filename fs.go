package gofat32

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

// Fs exposes a mounted volume as afero.Fs. Files can be opened, read,
// listed and removed; everything else fails with syscall.EPERM.
type Fs struct {
	vol *Volume
}

var _ afero.Fs = (*Fs)(nil)

// NewFs wraps vol.
func NewFs(vol *Volume) *Fs {
	return &Fs{vol: vol}
}

// Volume returns the wrapped volume.
func (f *Fs) Volume() *Volume {
	return f.vol
}

// Label returns the volume label.
func (f *Fs) Label() string {
	return f.vol.Descriptor().Label()
}

// absolute turns afero and io/fs style names into volume paths.
func absolute(name string) string {
	return path.Clean("/" + name)
}

// pathError wraps err for name. Missing entries are reported as plain
// fs.ErrNotExist since os.IsNotExist only looks one level deep.
func pathError(op, name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		err = fs.ErrNotExist
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}

func (f *Fs) readFileAt(entry DirEntry, offset int64, readSize int64) ([]byte, error) {
	buf := make([]byte, readSize)
	n, err := f.vol.ReadAt(entry, buf, offset)
	return buf[:n], err
}

func (f *Fs) readDir(entry DirEntry) ([]DirEntry, error) {
	return f.vol.ReadDir(entry)
}

func (f *Fs) Open(name string) (afero.File, error) {
	entry, err := f.vol.Resolve(absolute(name))
	if err != nil {
		return nil, pathError("open", name, err)
	}

	return &File{
		fs:    f,
		path:  name,
		entry: entry,
	}, nil
}

func (f *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: syscall.EPERM}
	}
	return f.Open(name)
}

func (f *Fs) Stat(name string) (os.FileInfo, error) {
	entry, err := f.vol.Resolve(absolute(name))
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return entry.FileInfo(), nil
}

func (f *Fs) Remove(name string) error {
	if err := f.vol.Delete(absolute(name)); err != nil {
		return pathError("remove", name, err)
	}
	return nil
}

// RemoveAll removes a file or an empty directory. A missing path is no error.
func (f *Fs) RemoveAll(name string) error {
	err := f.Remove(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (f *Fs) Name() string {
	return "gofat32"
}

func (f *Fs) Create(name string) (afero.File, error) {
	return nil, &os.PathError{Op: "create", Path: name, Err: syscall.EPERM}
}

func (f *Fs) Mkdir(name string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: name, Err: syscall.EPERM}
}

func (f *Fs) MkdirAll(path string, perm os.FileMode) error {
	return &os.PathError{Op: "mkdir", Path: path, Err: syscall.EPERM}
}

func (f *Fs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: syscall.EPERM}
}

func (f *Fs) Chmod(name string, mode os.FileMode) error {
	return &os.PathError{Op: "chmod", Path: name, Err: syscall.EPERM}
}

func (f *Fs) Chown(name string, uid, gid int) error {
	return &os.PathError{Op: "chown", Path: name, Err: syscall.EPERM}
}

func (f *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return &os.PathError{Op: "chtimes", Path: name, Err: syscall.EPERM}
}
