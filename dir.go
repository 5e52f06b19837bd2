package gofat32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"syscall"
	"unicode/utf16"

	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/checkpoint"
)

// Location is the physical position of a directory slot.
type Location struct {
	// LBA is the sector holding the slot.
	LBA uint64
	// Slot is the index of the slot inside that sector.
	Slot uint16
}

// DirEntry is a snapshot of a directory entry together with the location
// needed to modify it later.
type DirEntry struct {
	Header   EntryHeader
	LongName string

	Location  Location
	Fragments []Location

	root bool
}

func rootEntry() DirEntry {
	return DirEntry{
		Header: EntryHeader{
			Attribute:      AttrDirectory,
			FirstClusterLO: uint16(RootCluster),
		},
		root: true,
	}
}

// Name returns the long name if there is one, otherwise the short name.
func (e DirEntry) Name() string {
	if e.root {
		return "/"
	}
	if e.LongName != "" {
		return e.LongName
	}
	return e.ShortName()
}

// ShortName returns the 8.3 name in its dotted form, e.g. "README.MD".
func (e DirEntry) ShortName() string {
	raw := e.Header.Name
	if raw[0] == entryKanji {
		raw[0] = entryDeleted
	}

	name := strings.TrimRight(string(raw[:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")

	if ext != "" {
		name += "."
	}

	return name + ext
}

func (e DirEntry) FirstCluster() uint32 {
	return uint32(e.Header.FirstClusterHI)<<16 | uint32(e.Header.FirstClusterLO)
}

func (e DirEntry) Size() int64 {
	return int64(e.Header.FileSize)
}

func (e DirEntry) IsRoot() bool {
	return e.root
}

func (e DirEntry) IsDir() bool {
	return e.Header.Attribute&AttrDirectory == AttrDirectory && !e.isFragment()
}

func (e DirEntry) IsVolumeID() bool {
	return e.Header.Attribute&AttrVolumeID == AttrVolumeID && !e.isFragment()
}

// IsRegular reports if the entry is a plain file.
func (e DirEntry) IsRegular() bool {
	return !e.isFragment() && e.Header.Attribute&(AttrDirectory|AttrVolumeID) == 0
}

func (e DirEntry) isFragment() bool {
	return e.Header.Attribute&AttrLongName == AttrLongName
}

func (e DirEntry) isDotEntry() bool {
	return e.Header.Name[0] == '.'
}

// directoryCluster is where the content of a directory entry starts.
// ".." entries pointing to the root use cluster 0.
func (e DirEntry) directoryCluster() uint32 {
	if c := e.FirstCluster(); c != 0 {
		return c
	}
	return RootCluster
}

// formatShortName converts name into the padded upper case 8.3 form.
// It returns false if name cannot be a short name.
func formatShortName(name string) ([11]byte, bool) {
	var short [11]byte
	for i := range short {
		short[i] = ' '
	}

	if name == "." || name == ".." {
		copy(short[:], name)
		return short, true
	}

	base, ext := strings.ToUpper(name), ""
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		base, ext = base[:dot], base[dot+1:]
	}

	if len(base) == 0 || len(base) > 8 || len(ext) > 3 || strings.ContainsAny(base, ". ") {
		return short, false
	}

	copy(short[:8], base)
	copy(short[8:], ext)
	if short[0] == entryDeleted {
		short[0] = entryKanji
	}
	return short, true
}

// longName reassembles the name held by fragments, which are in on-disk
// order (highest ordinal first). It returns false if the fragments do not
// belong to short or are incomplete.
func longName(fragments []LongFilenameEntry, short [11]byte) (string, bool) {
	if len(fragments) == 0 || fragments[0].Sequence&lfnLast == 0 {
		return "", false
	}

	count := int(fragments[0].Sequence & lfnOrdinal)
	if count != len(fragments) {
		return "", false
	}

	sum := shortNameChecksum(short)
	chars := make([]uint16, count*lfnCharacters)
	for i, f := range fragments {
		ordinal := int(f.Sequence & lfnOrdinal)
		if ordinal != count-i || f.Checksum != sum {
			return "", false
		}
		copy(chars[(ordinal-1)*lfnCharacters:], f.characters())
	}

	for i, c := range chars {
		if c == 0x0000 || c == 0xFFFF {
			chars = chars[:i]
			break
		}
	}

	return string(utf16.Decode(chars)), true
}

// scan walks the directory starting at cluster and calls fn for every
// visible entry until fn returns true. Deleted slots and volume labels are
// skipped, long filename fragments are folded into the entry they describe.
func (v *Volume) scan(cluster uint32, fn func(e DirEntry) bool) error {
	var (
		fragments []LongFilenameEntry
		locations []Location
		done      bool
	)

	slotsPerSector := blockdev.SectorSize / entrySize
	buf := make([]byte, v.desc.ClusterSize())

	err := v.walk(cluster, func(cluster uint32) (bool, error) {
		if err := v.readCluster(cluster, buf); err != nil {
			return false, err
		}

		first := v.desc.ClusterLBA(cluster)
		for i := 0; i < len(buf)/entrySize; i++ {
			raw := buf[i*entrySize : (i+1)*entrySize]
			loc := Location{
				LBA:  first + uint64(i/slotsPerSector),
				Slot: uint16(i % slotsPerSector),
			}

			if raw[0] == entryEnd {
				done = true
				return false, nil
			}

			if raw[0] == entryDeleted {
				fragments, locations = nil, nil
				continue
			}

			if raw[11]&AttrLongName == AttrLongName {
				var lfn LongFilenameEntry
				if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &lfn); err != nil {
					return false, checkpoint.Wrap(err, ErrReadDir)
				}
				if lfn.Sequence&lfnLast != 0 {
					fragments, locations = nil, nil
				}
				fragments = append(fragments, lfn)
				locations = append(locations, loc)
				continue
			}

			entry := DirEntry{Location: loc}
			if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &entry.Header); err != nil {
				return false, checkpoint.Wrap(err, ErrReadDir)
			}

			if name, ok := longName(fragments, entry.Header.Name); ok {
				entry.LongName = name
				entry.Fragments = locations
			}
			fragments, locations = nil, nil

			if entry.IsVolumeID() {
				continue
			}

			if fn(entry) {
				done = true
				return false, nil
			}
		}

		return true, nil
	})

	if err != nil {
		return err
	}

	if !done {
		v.log.Debug("directory ended without terminator", "cluster", cluster)
	}
	return nil
}

// matches reports if e is the entry called name.
func (v *Volume) matches(e DirEntry, name string, short [11]byte, hasShort bool) bool {
	if v.longNames && e.LongName != "" && strings.EqualFold(e.LongName, name) {
		return true
	}

	if !hasShort {
		return false
	}

	return e.Header.Name == short
}

// FindEntry looks up name in the directory starting at dirCluster.
// The result matches ErrNotFound if there is no such entry.
func (v *Volume) FindEntry(dirCluster uint32, name string) (DirEntry, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	if err := v.ready(); err != nil {
		return DirEntry{}, err
	}
	return v.findEntry(dirCluster, name)
}

func (v *Volume) findEntry(dirCluster uint32, name string) (DirEntry, error) {
	short, hasShort := formatShortName(name)

	var (
		found DirEntry
		ok    bool
	)
	err := v.scan(dirCluster, func(e DirEntry) bool {
		if v.matches(e, name, short, hasShort) {
			found, ok = e, true
		}
		return ok
	})
	if err != nil {
		return DirEntry{}, err
	}

	if !ok {
		return DirEntry{}, checkpoint.From(fmt.Errorf("%w: %s", ErrNotFound, name))
	}

	v.log.Debug("found directory entry",
		"name", name,
		"cluster", found.FirstCluster(),
		"lba", found.Location.LBA,
		"slot", found.Location.Slot,
	)
	return found, nil
}

// Resolve looks up an absolute path, one segment at a time starting at the
// root directory. "/" resolves to a synthetic root entry.
func (v *Volume) Resolve(path string) (DirEntry, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	if err := v.ready(); err != nil {
		return DirEntry{}, err
	}
	return v.resolve(path)
}

func (v *Volume) resolve(path string) (DirEntry, error) {
	if !strings.HasPrefix(path, "/") {
		return DirEntry{}, checkpoint.From(fmt.Errorf("%w: %s", ErrInvalidPath, path))
	}

	current := rootEntry()
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}

		if !current.IsDir() {
			return DirEntry{}, checkpoint.Wrap(syscall.ENOTDIR, fmt.Errorf("%w: %s", ErrNotFound, path))
		}

		next, err := v.findEntry(current.directoryCluster(), segment)
		if err != nil {
			v.log.Debug("could not resolve path", "path", path, "segment", segment)
			return DirEntry{}, err
		}
		current = next
	}

	return current, nil
}

// ReadDir lists the entries of the directory dir, without "." and "..".
func (v *Volume) ReadDir(dir DirEntry) ([]DirEntry, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	if err := v.ready(); err != nil {
		return nil, err
	}
	return v.readDir(dir)
}

func (v *Volume) readDir(dir DirEntry) ([]DirEntry, error) {
	if !dir.IsDir() {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	var entries []DirEntry
	err := v.scan(dir.directoryCluster(), func(e DirEntry) bool {
		if !e.isDotEntry() {
			entries = append(entries, e)
		}
		return false
	})
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	return entries, nil
}
