// Package vfs binds path prefixes to mounted volumes and keeps track of open
// files. Every filesystem kind is served by a Driver; the Manager dispatches
// to it by the kind a mount was created with.
package vfs

import (
	"log/slog"

	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/mbr"
)

// MountRequest describes the partition a driver should probe or mount.
type MountRequest struct {
	Prefix    string
	Connector Connector
	Disk      uint32
	Partition uint8

	Device blockdev.Device
	Entry  mbr.Partition
	Logger *slog.Logger
}

// Driver implements one filesystem kind.
type Driver interface {
	Kind() FSKind
	// Probe reports if the partition looks like a volume of this kind.
	Probe(req MountRequest) (bool, error)
	Mount(req MountRequest) (Volume, error)
}

// Volume is a mounted filesystem. Paths are absolute and relative to the
// mount prefix.
type Volume interface {
	Open(path string, mode OpenMode) (Entry, error)
	Read(entry Entry, p []byte, off int64) (int, error)
	Write(entry Entry, p []byte, off int64) (int, error)
	Delete(path string) error
	Size(entry Entry) int64
	// Same reports if a and b refer to the same file, however they were
	// spelled when opened.
	Same(a, b Entry) bool
	Unmount() error
}

// Entry is the driver specific snapshot of an opened directory entry.
type Entry interface {
	Name() string
}
