package gofat32

import (
	"fmt"
	"io"

	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/checkpoint"
)

// ReadAt reads len(p) bytes of the file e starting at off. Reading stops
// exactly at the file size; a short read at the end returns io.EOF.
// Entries which are no regular files result in ErrInvalidOperation.
func (v *Volume) ReadAt(e DirEntry, p []byte, off int64) (int, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	if err := v.ready(); err != nil {
		return 0, err
	}
	return v.readAt(e, p, off)
}

func (v *Volume) readAt(e DirEntry, p []byte, off int64) (int, error) {
	if !e.IsRegular() {
		return 0, checkpoint.From(fmt.Errorf(
			"%w: cannot read %s with attributes %#02x",
			ErrInvalidOperation,
			e.Name(),
			e.Header.Attribute,
		))
	}

	if off < 0 {
		return 0, checkpoint.From(fmt.Errorf("%w: negative offset %d", ErrReadFile, off))
	}

	size := e.Size()
	if off >= size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if off+want > size {
		want = size - off
	}
	if want == 0 {
		return 0, nil
	}

	clusterSize := int64(v.desc.ClusterSize())
	skip := off / clusterSize
	within := off % clusterSize

	buf := make([]byte, clusterSize)
	var n, index int64

	err := v.walk(e.FirstCluster(), func(cluster uint32) (bool, error) {
		if index < skip {
			index++
			return true, nil
		}
		index++

		if err := v.readCluster(cluster, buf); err != nil {
			return false, err
		}

		n += int64(copy(p[n:want], buf[within:]))
		within = 0
		return n < want, nil
	})
	if err != nil {
		return int(n), checkpoint.Wrap(err, ErrReadFile)
	}

	if n < want {
		return int(n), checkpoint.From(fmt.Errorf(
			"%w: chain of %s ends after %d of %d bytes",
			ErrCorruptChain,
			e.Name(),
			off+n,
			size,
		))
	}

	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// ReadFile returns the complete content of the file e.
func (v *Volume) ReadFile(e DirEntry) ([]byte, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	if err := v.ready(); err != nil {
		return nil, err
	}

	data := make([]byte, e.Size())
	if e.Size() == 0 && e.IsRegular() {
		return data, nil
	}

	n, err := v.readAt(e, data, 0)
	if err != nil {
		return data[:n], err
	}
	return data, nil
}

// Delete removes the file or empty directory at path.
//
// The cluster chain is released before the entry and its long filename
// fragments are marked as deleted. The two steps are not atomic.
func (v *Volume) Delete(path string) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if err := v.ready(); err != nil {
		return err
	}

	e, err := v.resolve(path)
	if err != nil {
		return err
	}

	if e.IsRoot() || e.IsVolumeID() {
		return checkpoint.From(fmt.Errorf("%w: cannot delete %s", ErrInvalidOperation, path))
	}

	if e.IsDir() {
		children, err := v.readDir(e)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return checkpoint.From(fmt.Errorf("%w: directory %s is not empty", ErrInvalidOperation, path))
		}
	}

	if err := v.freeChain(e.FirstCluster()); err != nil {
		return err
	}

	slots := append(append([]Location{}, e.Fragments...), e.Location)
	if err := v.markDeleted(slots); err != nil {
		return err
	}

	v.log.Debug("deleted entry", "path", path, "cluster", e.FirstCluster(), "size", e.Size())
	return nil
}

// markDeleted writes the deleted marker into every slot. Each touched sector
// is read and written once.
func (v *Volume) markDeleted(slots []Location) error {
	bySector := make(map[uint64][]uint16)
	var order []uint64
	for _, s := range slots {
		if _, ok := bySector[s.LBA]; !ok {
			order = append(order, s.LBA)
		}
		bySector[s.LBA] = append(bySector[s.LBA], s.Slot)
	}

	for _, lba := range order {
		sector, err := blockdev.ReadSector(v.dev, lba)
		if err != nil {
			return checkpoint.Wrap(err, ErrReadSector)
		}

		for _, slot := range bySector[lba] {
			sector[int(slot)*entrySize] = entryDeleted
		}

		if err := v.dev.WriteSectors(lba, 1, sector); err != nil {
			return checkpoint.Wrap(err, ErrWriteSector)
		}
	}

	return nil
}
