package gofat32

import (
	"encoding/binary"
	"fmt"

	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/checkpoint"
)

const (
	entryMask    uint32 = 0x0FFFFFFF
	reservedMask uint32 = 0xF0000000
	badCluster   uint32 = 0x0FFFFFF7
	endOfChain   uint32 = 0x0FFFFFF8
)

// isChainEnd reports if value terminates a chain. Besides the end markers
// a bad cluster and a free slot also end it.
func isChainEnd(value uint32) bool {
	return value < 2 || value == badCluster || value >= endOfChain
}

func (v *Volume) tableSlot(cluster uint32) (uint64, int, error) {
	if cluster >= v.desc.tableEntries() {
		return 0, 0, checkpoint.From(fmt.Errorf("%w: cluster %d", ErrClusterRange, cluster))
	}

	byteOffset := cluster * 4
	lba := uint64(v.desc.FATBeginLBA) + uint64(byteOffset/blockdev.SectorSize)
	return lba, int(byteOffset % blockdev.SectorSize), nil
}

// Entry returns the allocation table value of cluster masked to 28 bits.
// 0 means the cluster is free.
func (v *Volume) Entry(cluster uint32) (uint32, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	if err := v.ready(); err != nil {
		return 0, err
	}
	return v.entry(cluster)
}

func (v *Volume) entry(cluster uint32) (uint32, error) {
	lba, offset, err := v.tableSlot(cluster)
	if err != nil {
		return 0, err
	}

	sector, err := blockdev.ReadSector(v.dev, lba)
	if err != nil {
		return 0, checkpoint.Wrap(err, ErrReadSector)
	}

	return binary.LittleEndian.Uint32(sector[offset:]) & entryMask, nil
}

// SetEntry stores value as the allocation table entry of cluster in every
// FAT copy. The reserved upper 4 bits of the slot are preserved.
func (v *Volume) SetEntry(cluster, value uint32) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if err := v.ready(); err != nil {
		return err
	}
	return v.setEntry(cluster, value)
}

func (v *Volume) setEntry(cluster, value uint32) error {
	if value&reservedMask != 0 {
		return checkpoint.From(fmt.Errorf("%w: %#x", ErrEntryValue, value))
	}

	lba, offset, err := v.tableSlot(cluster)
	if err != nil {
		return err
	}

	for i := uint32(0); i < uint32(v.desc.NumberOfFATs); i++ {
		copyLBA := lba + uint64(i)*uint64(v.desc.SectorsPerFAT)

		sector, err := blockdev.ReadSector(v.dev, copyLBA)
		if err != nil {
			return checkpoint.Wrap(err, ErrReadSector)
		}

		old := binary.LittleEndian.Uint32(sector[offset:])
		binary.LittleEndian.PutUint32(sector[offset:], old&reservedMask|value)

		if err := v.dev.WriteSectors(copyLBA, 1, sector); err != nil {
			return checkpoint.Wrap(err, ErrWriteSector)
		}
	}

	return nil
}

// validCluster reports if cluster addresses the data area.
func (v *Volume) validCluster(cluster uint32) bool {
	return cluster >= 2 && cluster < v.desc.ClusterCount()+2
}

// next returns the cluster following cluster and whether the chain continues.
func (v *Volume) next(cluster uint32) (uint32, bool, error) {
	value, err := v.entry(cluster)
	if err != nil {
		return 0, false, err
	}
	if isChainEnd(value) {
		return 0, false, nil
	}
	if !v.validCluster(value) {
		return 0, false, checkpoint.From(fmt.Errorf("%w: cluster %d links to %d", ErrCorruptChain, cluster, value))
	}
	return value, true, nil
}

// walk calls fn for every cluster of the chain starting at first until fn
// returns false or the chain ends. Loops are detected by bounding the walk
// with the number of clusters on the volume.
func (v *Volume) walk(first uint32, fn func(cluster uint32) (bool, error)) error {
	if !v.validCluster(first) {
		return checkpoint.From(fmt.Errorf("%w: first cluster %d", ErrCorruptChain, first))
	}

	limit := v.desc.ClusterCount()
	cluster := first
	for steps := uint32(0); ; steps++ {
		if steps > limit {
			return checkpoint.From(fmt.Errorf("%w: loop at cluster %d", ErrCorruptChain, cluster))
		}

		more, err := fn(cluster)
		if err != nil || !more {
			return err
		}

		next, ok, err := v.next(cluster)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cluster = next
	}
}

// Chain returns all clusters of the chain starting at first.
func (v *Volume) Chain(first uint32) ([]uint32, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	if err := v.ready(); err != nil {
		return nil, err
	}

	var chain []uint32
	err := v.walk(first, func(cluster uint32) (bool, error) {
		chain = append(chain, cluster)
		return true, nil
	})
	return chain, err
}

// freeChain releases every cluster of the chain starting at first. Each link
// is read before its slot is cleared.
func (v *Volume) freeChain(first uint32) error {
	if first == 0 {
		return nil
	}

	var chain []uint32
	err := v.walk(first, func(cluster uint32) (bool, error) {
		chain = append(chain, cluster)
		return true, nil
	})
	if err != nil {
		return err
	}

	for _, cluster := range chain {
		if err := v.setEntry(cluster, 0); err != nil {
			return err
		}
	}

	v.log.Debug("freed cluster chain", "first", first, "clusters", len(chain))
	return nil
}
