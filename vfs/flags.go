package vfs

// POSIX open flags with their linux values.
const (
	O_ACCMODE   = 0o3
	O_RDONLY    = 0o0
	O_WRONLY    = 0o1
	O_RDWR      = 0o2
	O_CREAT     = 0o100
	O_EXCL      = 0o200
	O_NOCTTY    = 0o400
	O_TRUNC     = 0o1000
	O_APPEND    = 0o2000
	O_NONBLOCK  = 0o4000
	O_DSYNC     = 0o10000
	O_DIRECTORY = 0o200000
	O_NOFOLLOW  = 0o400000
	O_CLOEXEC   = 0o2000000
)

// Legacy open modes as used by fatfs.
const (
	FS_MODE_READ          = 0x01
	FS_MODE_WRITE         = 0x02
	FS_MODE_OPEN_EXISTING = 0x00
	FS_MODE_CREATE_NEW    = 0x04
	FS_MODE_CREATE_ALWAYS = 0x08
	FS_MODE_OPEN_ALWAYS   = 0x10
	FS_MODE_OPEN_APPEND   = 0x30
)

// OpenMode is what an open request asks a driver to do.
type OpenMode struct {
	Read      bool
	Write     bool
	Create    bool
	Exclusive bool
	Truncate  bool
	Append    bool
}

// FromPOSIX maps POSIX open flags. Flags without a meaning for the drivers,
// like O_CLOEXEC, are ignored.
func FromPOSIX(flags int) OpenMode {
	var m OpenMode
	switch flags & O_ACCMODE {
	case O_RDONLY:
		m.Read = true
	case O_WRONLY:
		m.Write = true
	default:
		m.Read, m.Write = true, true
	}

	m.Create = flags&O_CREAT != 0
	m.Exclusive = flags&O_EXCL != 0
	m.Truncate = flags&O_TRUNC != 0
	m.Append = flags&O_APPEND != 0
	return m
}

// FromLegacy maps FS_MODE_* values.
func FromLegacy(mode uint32) OpenMode {
	m := OpenMode{
		Read:  mode&FS_MODE_READ != 0,
		Write: mode&FS_MODE_WRITE != 0,
	}

	switch {
	case mode&FS_MODE_OPEN_APPEND == FS_MODE_OPEN_APPEND:
		m.Create, m.Append = true, true
	case mode&FS_MODE_OPEN_ALWAYS != 0:
		m.Create = true
	}
	if mode&FS_MODE_CREATE_ALWAYS != 0 {
		m.Create, m.Truncate = true, true
	}
	if mode&FS_MODE_CREATE_NEW != 0 {
		m.Create, m.Exclusive = true, true
	}
	return m
}

// Merge combines two modes, every request of either one is kept.
func (m OpenMode) Merge(o OpenMode) OpenMode {
	return OpenMode{
		Read:      m.Read || o.Read,
		Write:     m.Write || o.Write,
		Create:    m.Create || o.Create,
		Exclusive: m.Exclusive || o.Exclusive,
		Truncate:  m.Truncate || o.Truncate,
		Append:    m.Append || o.Append,
	}
}

// FromRequest combines the POSIX flags and the FS_MODE_* value of one open
// request. O_RDONLY is zero and cannot be told apart from no POSIX flags, so
// when it meets a legacy mode with access bits the legacy access applies.
func FromRequest(flags int, mode uint32) OpenMode {
	legacy := FromLegacy(mode)
	m := FromPOSIX(flags).Merge(legacy)
	if flags&O_ACCMODE == O_RDONLY && mode&(FS_MODE_READ|FS_MODE_WRITE) != 0 {
		m.Read, m.Write = legacy.Read, legacy.Write
	}
	return m
}
