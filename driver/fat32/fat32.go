// Package fat32 serves FAT32 partitions to the vfs manager.
package fat32

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/aligator/gofat32"
	"github.com/aligator/gofat32/checkpoint"
	"github.com/aligator/gofat32/vfs"
)

// Driver mounts FAT32 volumes. Files can be read and deleted, but not
// created or written.
type Driver struct {
	opts []gofat32.Option
}

var _ vfs.Driver = (*Driver)(nil)

// New creates the driver. opts are applied to every mounted volume after
// the logger of the mount request.
func New(opts ...gofat32.Option) *Driver {
	return &Driver{opts: opts}
}

func (d *Driver) Kind() vfs.FSKind {
	return vfs.KindFAT32
}

func (d *Driver) Probe(req vfs.MountRequest) (bool, error) {
	return gofat32.Probe(req.Device, req.Entry.StartLBA)
}

func (d *Driver) Mount(req vfs.MountRequest) (vfs.Volume, error) {
	var opts []gofat32.Option
	if req.Logger != nil {
		opts = append(opts, gofat32.WithLogger(req.Logger))
	}
	opts = append(opts, d.opts...)

	vol, err := gofat32.Mount(req.Device, req.Entry.StartLBA, opts...)
	if err != nil {
		return nil, err
	}
	return &Volume{fat: vol}, nil
}

// Entry is the snapshot of a FAT32 directory entry.
type Entry struct {
	gofat32.DirEntry
}

// Volume adapts a mounted gofat32.Volume.
type Volume struct {
	fat *gofat32.Volume
}

var _ vfs.Volume = (*Volume)(nil)

// FAT returns the underlying volume.
func (v *Volume) FAT() *gofat32.Volume {
	return v.fat
}

func (v *Volume) Open(path string, mode vfs.OpenMode) (vfs.Entry, error) {
	e, err := v.fat.Resolve(path)
	if err != nil {
		if mode.Create && errors.Is(err, fs.ErrNotExist) {
			return nil, checkpoint.Wrap(err, fmt.Errorf("%w: creating %s", vfs.ErrNotSupported, path))
		}
		return nil, err
	}

	if mode.Create && mode.Exclusive {
		return nil, checkpoint.From(fmt.Errorf("%w: %s", fs.ErrExist, path))
	}
	if mode.Truncate {
		return nil, checkpoint.From(fmt.Errorf("%w: truncating %s", vfs.ErrNotSupported, path))
	}

	return Entry{e}, nil
}

func entryOf(entry vfs.Entry) (Entry, error) {
	e, ok := entry.(Entry)
	if !ok {
		return Entry{}, checkpoint.From(fmt.Errorf("%w: %T is no fat32 entry", vfs.ErrBadDescriptor, entry))
	}
	return e, nil
}

func (v *Volume) Read(entry vfs.Entry, p []byte, off int64) (int, error) {
	e, err := entryOf(entry)
	if err != nil {
		return 0, err
	}
	return v.fat.ReadAt(e.DirEntry, p, off)
}

func (v *Volume) Write(entry vfs.Entry, p []byte, off int64) (int, error) {
	return 0, checkpoint.From(fmt.Errorf("%w: writing %s", vfs.ErrNotSupported, entry.Name()))
}

func (v *Volume) Delete(path string) error {
	return v.fat.Delete(path)
}

func (v *Volume) Size(entry vfs.Entry) int64 {
	e, err := entryOf(entry)
	if err != nil {
		return 0
	}
	return e.Size()
}

// Same compares the directory slots of a and b.
func (v *Volume) Same(a, b vfs.Entry) bool {
	ea, err := entryOf(a)
	if err != nil {
		return false
	}
	eb, err := entryOf(b)
	if err != nil {
		return false
	}
	return ea.Location == eb.Location
}

func (v *Volume) Unmount() error {
	return v.fat.Unmount()
}
