package vfs

import "errors"

var (
	ErrInvalidPrefix = errors.New("mount prefix must be an absolute path")
	ErrMountExists   = errors.New("prefix is already mounted")
	ErrNoMountPoint  = errors.New("no mount point for path")
	ErrUnknownDisk   = errors.New("disk is not attached")
	ErrDiskAttached  = errors.New("disk is already attached")
	ErrNoDriver      = errors.New("no driver for partition")
	ErrBusy          = errors.New("resource is in use")
	ErrBadDescriptor = errors.New("bad file descriptor")
	ErrPermission    = errors.New("file was not opened for this operation")
	ErrNotSupported  = errors.New("operation not supported by the filesystem")
	ErrInvalidOffset = errors.New("offset outside of the file")
)
