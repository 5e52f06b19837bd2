package gofat32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/checkpoint"
)

// Descriptor is the validated geometry of one mounted volume.
type Descriptor struct {
	SectorCount       uint32
	ReservedSectors   uint16
	SectorsPerFAT     uint32
	NumberOfFATs      uint8
	SectorsPerCluster uint8
	SectorsPerTrack   uint16
	VolumeID          uint32
	VolumeLabel       [11]byte

	PartitionStart  uint32
	FATBeginLBA     uint32
	ClusterBeginLBA uint32

	Ready bool
}

// ClusterSize is the size of one cluster in bytes.
func (d Descriptor) ClusterSize() int {
	return int(d.SectorsPerCluster) * blockdev.SectorSize
}

// ClusterCount is the number of data clusters. Valid cluster numbers are
// 2 up to ClusterCount()+1.
func (d Descriptor) ClusterCount() uint32 {
	used := d.ClusterBeginLBA - d.PartitionStart
	if d.SectorCount <= used || d.SectorsPerCluster == 0 {
		return 0
	}
	return (d.SectorCount - used) / uint32(d.SectorsPerCluster)
}

// ClusterLBA returns the first sector of cluster.
func (d Descriptor) ClusterLBA(cluster uint32) uint64 {
	return uint64(d.ClusterBeginLBA) + uint64(cluster-2)*uint64(d.SectorsPerCluster)
}

// tableEntries is the number of slots one FAT copy provides.
func (d Descriptor) tableEntries() uint32 {
	return d.SectorsPerFAT * (blockdev.SectorSize / 4)
}

// Label returns the volume label without padding.
func (d Descriptor) Label() string {
	return strings.TrimRight(string(d.VolumeLabel[:]), " \x00")
}

type bootSector struct {
	bpb   BPB
	fat32 FAT32SpecificData
	raw   []byte
}

func decodeBootSector(sector []byte) (bootSector, bool) {
	bs := bootSector{raw: sector}
	if len(sector) < blockdev.SectorSize {
		return bs, false
	}

	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &bs.bpb); err != nil {
		return bs, false
	}
	if err := binary.Read(bytes.NewReader(bs.bpb.FATSpecificData[:]), binary.LittleEndian, &bs.fat32); err != nil {
		return bs, false
	}

	return bs, true
}

func (bs bootSector) sectorCount() uint32 {
	if bs.bpb.TotalSectors16 != 0 {
		return uint32(bs.bpb.TotalSectors16)
	}
	return bs.bpb.TotalSectors32
}

func (bs bootSector) valid() bool {
	sig := bs.raw[signatureOffset]
	return bs.sectorCount() != 0 &&
		bs.bpb.ReservedSectorCount != 0 &&
		bs.bpb.SectorsPerTrack != 0 &&
		bs.fat32.BSVolumeID != 0 &&
		(sig == signature1 || sig == signature2)
}

// ProbeFormat reports if sector looks like a FAT32 boot sector: the sector
// count, reserved sectors, sectors per track and volume id must be non-zero
// and the extended boot signature must be 0x28 or 0x29.
//
// The check is heuristic. If several filesystem kinds are probed on the same
// partition, the probe order decides which one wins.
func ProbeFormat(sector []byte) bool {
	bs, ok := decodeBootSector(sector)
	return ok && bs.valid()
}

// Probe reads the sector at start and checks it with ProbeFormat.
func Probe(dev blockdev.Device, start uint32) (bool, error) {
	sector, err := blockdev.ReadSector(dev, uint64(start))
	if err != nil {
		return false, checkpoint.Wrap(err, ErrReadSector)
	}
	return ProbeFormat(sector), nil
}

// Option configures a Volume.
type Option func(v *Volume)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(v *Volume) {
		v.log = log
	}
}

// WithLongNames enables or disables matching of long filenames during lookups.
// It is enabled by default.
func WithLongNames(enabled bool) Option {
	return func(v *Volume) {
		v.longNames = enabled
	}
}

// Volume is a mounted FAT32 filesystem.
type Volume struct {
	// lock serializes allocation table and directory mutations against readers.
	lock sync.RWMutex

	dev       blockdev.Device
	desc      Descriptor
	log       *slog.Logger
	longNames bool
}

// Mount reads and validates the boot sector of the partition starting at
// start and returns the ready volume. An invalid boot sector results in an
// error matching ErrFormatInvalid.
func Mount(dev blockdev.Device, start uint32, opts ...Option) (*Volume, error) {
	v := &Volume{
		dev:       dev,
		log:       slog.Default(),
		longNames: true,
	}
	for _, opt := range opts {
		opt(v)
	}

	v.log.Debug("initializing fat32 volume", "lba", start)

	sector, err := blockdev.ReadSector(dev, uint64(start))
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadSector)
	}

	// Validate the copy the volume keeps, not the buffer it came from.
	copied := make([]byte, len(sector))
	copy(copied, sector)

	bs, ok := decodeBootSector(copied)
	if !ok || !bs.valid() {
		return nil, checkpoint.From(fmt.Errorf("%w: lba %d", ErrFormatInvalid, start))
	}
	if err := checkGeometry(bs); err != nil {
		return nil, checkpoint.Wrap(err, ErrFormatInvalid)
	}

	d := Descriptor{
		SectorCount:       bs.sectorCount(),
		ReservedSectors:   bs.bpb.ReservedSectorCount,
		SectorsPerFAT:     bs.fat32.FatSize,
		NumberOfFATs:      bs.bpb.NumFATs,
		SectorsPerCluster: bs.bpb.SectorsPerCluster,
		SectorsPerTrack:   bs.bpb.SectorsPerTrack,
		VolumeID:          bs.fat32.BSVolumeID,
		VolumeLabel:       bs.fat32.BSVolumeLabel,
		PartitionStart:    start,
	}
	d.FATBeginLBA = start + uint32(d.ReservedSectors)
	d.ClusterBeginLBA = d.FATBeginLBA + uint32(d.NumberOfFATs)*d.SectorsPerFAT
	d.Ready = true
	v.desc = d

	v.log.Info("mounted fat32 volume",
		"volume_id", fmt.Sprintf("%08X", d.VolumeID),
		"label", d.Label(),
		"sector_count", d.SectorCount,
		"fats", d.NumberOfFATs,
		"reserved_sectors", d.ReservedSectors,
		"sectors_per_fat", d.SectorsPerFAT,
		"sectors_per_track", d.SectorsPerTrack,
		"sectors_per_cluster", d.SectorsPerCluster,
	)

	return v, nil
}

// checkGeometry rejects layouts the driver cannot walk safely.
func checkGeometry(bs bootSector) error {
	switch {
	case bs.bpb.BytesPerSector != blockdev.SectorSize:
		return fmt.Errorf("unsupported sector size %d", bs.bpb.BytesPerSector)
	case bs.bpb.SectorsPerCluster == 0:
		return fmt.Errorf("invalid sectors per cluster")
	case bs.bpb.NumFATs == 0:
		return fmt.Errorf("invalid number of FATs")
	case bs.fat32.FatSize == 0:
		return fmt.Errorf("invalid FAT size")
	}
	return nil
}

// Unmount invalidates the volume. Every later operation fails with ErrNotMounted.
func (v *Volume) Unmount() error {
	v.lock.Lock()
	defer v.lock.Unlock()

	if !v.desc.Ready {
		return checkpoint.From(ErrNotMounted)
	}
	v.desc.Ready = false
	v.log.Debug("unmounted fat32 volume", "volume_id", fmt.Sprintf("%08X", v.desc.VolumeID))
	return nil
}

// Descriptor returns a copy of the volume geometry.
func (v *Volume) Descriptor() Descriptor {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.desc
}

func (v *Volume) ready() error {
	if !v.desc.Ready {
		return checkpoint.From(ErrNotMounted)
	}
	return nil
}

func (v *Volume) readCluster(cluster uint32, buf []byte) error {
	err := v.dev.ReadSectors(buf, v.desc.ClusterLBA(cluster), uint32(v.desc.SectorsPerCluster))
	return checkpoint.Wrap(err, ErrReadSector)
}
