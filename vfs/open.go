package vfs

import (
	"fmt"
	"io"

	"github.com/aligator/gofat32/checkpoint"
)

// OpenFile is an open handle. Its entry is a snapshot owned by the handle,
// the driver does not keep a reference to it.
type OpenFile struct {
	id    int
	flags int
	mode  uint32
	open  OpenMode

	path   string
	offset int64

	mount *MountPoint
	entry Entry
}

func (f *OpenFile) ID() int                 { return f.id }
func (f *OpenFile) Flags() int              { return f.flags }
func (f *OpenFile) Mode() uint32            { return f.mode }
func (f *OpenFile) OpenMode() OpenMode      { return f.open }
func (f *OpenFile) Offset() int64           { return f.offset }
func (f *OpenFile) MountPoint() *MountPoint { return f.mount }
func (f *OpenFile) Entry() Entry            { return f.entry }

// Path returns the path relative to the mount point.
func (f *OpenFile) Path() string { return f.path }

// Open opens name. flags are POSIX open flags and mode FS_MODE_* values,
// both are combined by FromRequest.
func (m *Manager) Open(name string, flags int, mode uint32) (*OpenFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.open(name, flags, mode)
}

func (m *Manager) open(name string, flags int, mode uint32) (*OpenFile, error) {
	mnt, rel, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	openMode := FromRequest(flags, mode)

	entry, err := mnt.volume.Open(rel, openMode)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	f := &OpenFile{
		id:    m.nextID,
		flags: flags,
		mode:  mode,
		open:  openMode,
		path:  rel,
		mount: mnt,
		entry: entry,
	}
	m.nextID++
	m.files[f.id] = f
	mnt.open++

	m.log.Debug("opened file", "path", name, "id", f.id, "prefix", mnt.Prefix)
	return f, nil
}

func (m *Manager) lookupFile(f *OpenFile) error {
	if f == nil || m.files[f.id] != f {
		return checkpoint.From(ErrBadDescriptor)
	}
	return nil
}

// Close releases f.
func (m *Manager) Close(f *OpenFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lookupFile(f); err != nil {
		return err
	}
	m.closeFile(f)
	return nil
}

func (m *Manager) closeFile(f *OpenFile) {
	delete(m.files, f.id)
	for fd, candidate := range m.fds {
		if candidate == f {
			delete(m.fds, fd)
		}
	}
	f.mount.open--
	m.log.Debug("closed file", "id", f.id)
}

// Read reads from the current offset of f and advances it.
func (m *Manager) Read(f *OpenFile, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lookupFile(f); err != nil {
		return 0, err
	}
	if !f.open.Read {
		return 0, checkpoint.From(fmt.Errorf("%w: read %s", ErrPermission, f.path))
	}

	n, err := f.mount.volume.Read(f.entry, p, f.offset)
	f.offset += int64(n)
	return n, checkpoint.From(err)
}

// Write writes at the current offset of f and advances it. Files opened for
// appending always write at their end.
func (m *Manager) Write(f *OpenFile, p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lookupFile(f); err != nil {
		return 0, err
	}
	if !f.open.Write {
		return 0, checkpoint.From(fmt.Errorf("%w: write %s", ErrPermission, f.path))
	}

	if f.open.Append {
		f.offset = f.mount.volume.Size(f.entry)
	}

	n, err := f.mount.volume.Write(f.entry, p, f.offset)
	f.offset += int64(n)
	return n, checkpoint.From(err)
}

// Seek moves the offset of f. The offset has to stay within the file.
func (m *Manager) Seek(f *OpenFile, offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lookupFile(f); err != nil {
		return 0, err
	}
	return m.seek(f, offset, whence)
}

func (m *Manager) seek(f *OpenFile, offset int64, whence int) (int64, error) {
	size := f.mount.volume.Size(f.entry)

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += size
	default:
		return 0, checkpoint.From(fmt.Errorf("%w: whence %d", ErrInvalidOffset, whence))
	}

	if offset < 0 || offset > size {
		return 0, checkpoint.From(fmt.Errorf("%w: %d of %d", ErrInvalidOffset, offset, size))
	}

	f.offset = offset
	return offset, nil
}

// Size returns the current size of the file behind f.
func (m *Manager) Size(f *OpenFile) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lookupFile(f); err != nil {
		return 0, err
	}
	return f.mount.volume.Size(f.entry), nil
}

// ReadFull returns the whole content of f independent of its offset.
func (m *Manager) ReadFull(f *OpenFile) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.lookupFile(f); err != nil {
		return nil, err
	}
	if !f.open.Read {
		return nil, checkpoint.From(fmt.Errorf("%w: read %s", ErrPermission, f.path))
	}

	data := make([]byte, f.mount.volume.Size(f.entry))
	n, err := f.mount.volume.Read(f.entry, data, 0)
	if err == io.EOF && n == len(data) {
		err = nil
	}
	return data[:n], checkpoint.From(err)
}

// Delete removes name from its volume. Open files keep it busy.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mnt, rel, err := m.resolve(name)
	if err != nil {
		return err
	}

	// Names may have several spellings, open files are compared by identity.
	if target, err := mnt.volume.Open(rel, OpenMode{Read: true}); err == nil {
		for _, f := range m.files {
			if f.mount == mnt && mnt.volume.Same(f.entry, target) {
				return checkpoint.From(fmt.Errorf("%w: `%s` is open as `%s`", ErrBusy, name, f.path))
			}
		}
	}

	if err := mnt.volume.Delete(rel); err != nil {
		return checkpoint.From(err)
	}
	m.log.Debug("deleted file", "path", name, "prefix", mnt.Prefix)
	return nil
}

// UserOpen opens name like Open and returns a descriptor for it.
// Descriptors start at 3.
func (m *Manager) UserOpen(name string, flags int, mode uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.open(name, flags, mode)
	if err != nil {
		return -1, err
	}

	fd := m.nextFD
	m.nextFD++
	m.fds[fd] = f
	return fd, nil
}

// Lookup returns the file behind fd.
func (m *Manager) Lookup(fd int) (*OpenFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lookupFD(fd)
}

func (m *Manager) lookupFD(fd int) (*OpenFile, error) {
	f, ok := m.fds[fd]
	if !ok {
		return nil, checkpoint.From(fmt.Errorf("%w: %d", ErrBadDescriptor, fd))
	}
	return f, nil
}

// UserClose closes fd.
func (m *Manager) UserClose(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.lookupFD(fd)
	if err != nil {
		return err
	}
	m.closeFile(f)
	return nil
}

// UserSeek moves the offset of fd.
func (m *Manager) UserSeek(fd int, offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.lookupFD(fd)
	if err != nil {
		return 0, err
	}
	return m.seek(f, offset, whence)
}
