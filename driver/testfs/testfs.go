// Package testfs is a writable filesystem for partitions of the experimental
// type 0x7F. The partition content itself is not used, files live in an
// afero.Fs below /disk<N>/part<M>.
package testfs

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/aligator/gofat32/checkpoint"
	"github.com/aligator/gofat32/mbr"
	"github.com/aligator/gofat32/vfs"
	"github.com/spf13/afero"
)

// Driver stores the volumes of all mounts in one afero.Fs.
type Driver struct {
	fs afero.Fs
}

var _ vfs.Driver = (*Driver)(nil)

// New creates the driver on backing. A nil backing uses memory.
func New(backing afero.Fs) *Driver {
	if backing == nil {
		backing = afero.NewMemMapFs()
	}
	return &Driver{fs: backing}
}

func (d *Driver) Kind() vfs.FSKind {
	return vfs.KindTest
}

func (d *Driver) Probe(req vfs.MountRequest) (bool, error) {
	return req.Entry.Type == mbr.TypeExperiment, nil
}

// Root returns the directory holding the files of a partition.
func Root(disk uint32, partition uint8) string {
	return fmt.Sprintf("/disk%d/part%d", disk, partition)
}

func (d *Driver) Mount(req vfs.MountRequest) (vfs.Volume, error) {
	root := Root(req.Disk, req.Partition)
	if err := d.fs.MkdirAll(root, 0o755); err != nil {
		return nil, checkpoint.From(err)
	}

	log := req.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Debug("mounted test volume", "root", root)

	return &Volume{
		fs:  afero.NewBasePathFs(d.fs, root),
		log: log,
	}, nil
}

// Entry refers to a file by its path.
type Entry struct {
	Path string
}

func (e Entry) Name() string {
	return path.Base(e.Path)
}

// Volume is one mounted test partition.
type Volume struct {
	mu        sync.RWMutex
	fs        afero.Fs
	log       *slog.Logger
	unmounted bool
}

var _ vfs.Volume = (*Volume)(nil)

func (v *Volume) check() error {
	if v.unmounted {
		return checkpoint.From(fs.ErrClosed)
	}
	return nil
}

func (v *Volume) Open(name string, mode vfs.OpenMode) (vfs.Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(); err != nil {
		return nil, err
	}

	flag := os.O_RDONLY
	switch {
	case mode.Read && mode.Write:
		flag = os.O_RDWR
	case mode.Write:
		flag = os.O_WRONLY
	}
	if mode.Create {
		flag |= os.O_CREATE
	}
	if mode.Exclusive {
		flag |= os.O_EXCL
	}
	if mode.Truncate {
		flag |= os.O_TRUNC
	}

	f, err := v.fs.OpenFile(name, flag, 0o644)
	if err != nil {
		return nil, checkpoint.From(err)
	}
	if err := f.Close(); err != nil {
		return nil, checkpoint.From(err)
	}

	return Entry{Path: name}, nil
}

func entryOf(entry vfs.Entry) (Entry, error) {
	e, ok := entry.(Entry)
	if !ok {
		return Entry{}, checkpoint.From(fmt.Errorf("%w: %T is no test entry", vfs.ErrBadDescriptor, entry))
	}
	return e, nil
}

func (v *Volume) Read(entry vfs.Entry, p []byte, off int64) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := v.check(); err != nil {
		return 0, err
	}
	e, err := entryOf(entry)
	if err != nil {
		return 0, err
	}

	f, err := v.fs.Open(e.Path)
	if err != nil {
		return 0, checkpoint.From(err)
	}
	defer f.Close()

	n, err := f.ReadAt(p, off)
	return n, checkpoint.From(err)
}

func (v *Volume) Write(entry vfs.Entry, p []byte, off int64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(); err != nil {
		return 0, err
	}
	e, err := entryOf(entry)
	if err != nil {
		return 0, err
	}

	f, err := v.fs.OpenFile(e.Path, os.O_WRONLY, 0)
	if err != nil {
		return 0, checkpoint.From(err)
	}
	defer f.Close()

	n, err := f.WriteAt(p, off)
	return n, checkpoint.From(err)
}

func (v *Volume) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(); err != nil {
		return err
	}
	if err := v.fs.Remove(name); err != nil {
		return checkpoint.From(err)
	}
	v.log.Debug("deleted test file", "path", name)
	return nil
}

func (v *Volume) Size(entry vfs.Entry) int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	e, err := entryOf(entry)
	if err != nil {
		return 0
	}
	info, err := v.fs.Stat(e.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (v *Volume) Same(a, b vfs.Entry) bool {
	ea, err := entryOf(a)
	if err != nil {
		return false
	}
	eb, err := entryOf(b)
	if err != nil {
		return false
	}
	return path.Clean(ea.Path) == path.Clean(eb.Path)
}

func (v *Volume) Unmount() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(); err != nil {
		return err
	}
	v.unmounted = true
	return nil
}
