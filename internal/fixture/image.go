// Package fixture builds small FAT32 disk images in memory.
//
// The builder writes raw structures directly and gives tests full control
// over cluster placement. It panics on misuse.
package fixture

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/mbr"
)

// Attribute values used by the builder.
const (
	AttrReadOnly  byte = 0x01
	AttrVolumeID  byte = 0x08
	AttrDirectory byte = 0x10
	AttrArchive   byte = 0x20
	AttrLongName  byte = 0x0F

	Deleted    byte   = 0xE5
	EndOfChain uint32 = 0x0FFFFFFF

	slotSize = 32
)

// Options describe the geometry of the image. Zero values use the defaults.
type Options struct {
	// PartitionStart is the LBA of the FAT32 partition. An MBR describing
	// the partition is written to LBA 0. Default 8.
	PartitionStart uint32
	// PartitionType is the type written into the MBR. Default 0x0C.
	PartitionType     byte
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumberOfFATs      uint8
	SectorsPerFAT     uint32
	// Clusters is the number of data clusters. Default 64.
	Clusters uint32
	VolumeID uint32
	Label    string
}

func (o Options) withDefaults() Options {
	if o.PartitionStart == 0 {
		o.PartitionStart = 8
	}
	if o.PartitionType == 0 {
		o.PartitionType = mbr.TypeFAT32LBA
	}
	if o.SectorsPerCluster == 0 {
		o.SectorsPerCluster = 1
	}
	if o.ReservedSectors == 0 {
		o.ReservedSectors = 4
	}
	if o.NumberOfFATs == 0 {
		o.NumberOfFATs = 2
	}
	if o.SectorsPerFAT == 0 {
		o.SectorsPerFAT = 1
	}
	if o.Clusters == 0 {
		o.Clusters = 64
	}
	if o.VolumeID == 0 {
		o.VolumeID = 0x1234ABCD
	}
	if o.Label == "" {
		o.Label = "GOFAT32"
	}
	return o
}

// TotalSectors is the size of the partition.
func (o Options) TotalSectors() uint32 {
	return uint32(o.ReservedSectors) +
		uint32(o.NumberOfFATs)*o.SectorsPerFAT +
		o.Clusters*uint32(o.SectorsPerCluster)
}

// BootSector encodes a FAT32 boot sector for the options.
func BootSector(opts Options) []byte {
	o := opts.withDefaults()
	b := make([]byte, blockdev.SectorSize)

	copy(b[0:3], []byte{0xEB, 0x58, 0x90})
	copy(b[3:11], "MSWIN4.1")
	binary.LittleEndian.PutUint16(b[11:], blockdev.SectorSize)
	b[13] = o.SectorsPerCluster
	binary.LittleEndian.PutUint16(b[14:], o.ReservedSectors)
	b[16] = o.NumberOfFATs
	b[21] = 0xF8
	binary.LittleEndian.PutUint16(b[24:], 32)
	binary.LittleEndian.PutUint16(b[26:], 64)
	binary.LittleEndian.PutUint32(b[28:], o.PartitionStart)
	binary.LittleEndian.PutUint32(b[32:], o.TotalSectors())
	binary.LittleEndian.PutUint32(b[36:], o.SectorsPerFAT)
	binary.LittleEndian.PutUint32(b[44:], 2)
	binary.LittleEndian.PutUint16(b[48:], 1)
	binary.LittleEndian.PutUint16(b[50:], 6)
	b[64] = 0x80
	b[66] = 0x29
	binary.LittleEndian.PutUint32(b[67:], o.VolumeID)
	copy(b[71:82], fmt.Sprintf("%-11s", o.Label))
	copy(b[82:90], "FAT32   ")
	b[510] = 0x55
	b[511] = 0xAA

	return b
}

// Image is a partitioned disk holding one FAT32 volume.
type Image struct {
	Dev  *blockdev.Memory
	Opts Options

	fatBegin     uint32
	clusterBegin uint32
}

// New creates the image with an MBR, a boot sector, empty FATs and an empty
// root directory at cluster 2.
func New(opts Options) *Image {
	o := opts.withDefaults()
	img := &Image{
		Dev:  blockdev.NewMemory(uint64(o.PartitionStart) + uint64(o.TotalSectors())),
		Opts: o,
	}
	img.fatBegin = o.PartitionStart + uint32(o.ReservedSectors)
	img.clusterBegin = img.fatBegin + uint32(o.NumberOfFATs)*o.SectorsPerFAT

	table := mbr.Table{{
		Status:   0x80,
		Type:     o.PartitionType,
		StartLBA: o.PartitionStart,
		Sectors:  o.TotalSectors(),
	}}
	table.Encode(img.sector(0))

	copy(img.sector(uint64(o.PartitionStart)), BootSector(o))

	img.SetFAT(0, 0x0FFFFFF8)
	img.SetFAT(1, EndOfChain)
	img.SetFAT(2, EndOfChain)

	return img
}

func (img *Image) sector(lba uint64) []byte {
	start := lba * blockdev.SectorSize
	return img.Dev.Bytes()[start : start+blockdev.SectorSize]
}

// BootSectorBytes returns the boot sector as stored on the image.
func (img *Image) BootSectorBytes() []byte {
	return img.sector(uint64(img.Opts.PartitionStart))
}

// ClusterSize returns the size of one cluster in bytes.
func (img *Image) ClusterSize() int {
	return int(img.Opts.SectorsPerCluster) * blockdev.SectorSize
}

// SlotsPerCluster returns how many directory slots fit into a cluster.
func (img *Image) SlotsPerCluster() int {
	return img.ClusterSize() / slotSize
}

func (img *Image) fatSlot(cluster uint32, copyIndex int) []byte {
	if cluster >= img.Opts.SectorsPerFAT*blockdev.SectorSize/4 {
		panic(fmt.Sprintf("fixture: cluster %d outside of the FAT", cluster))
	}
	lba := uint64(img.fatBegin) + uint64(copyIndex)*uint64(img.Opts.SectorsPerFAT) + uint64(cluster*4/blockdev.SectorSize)
	offset := cluster * 4 % blockdev.SectorSize
	return img.sector(lba)[offset : offset+4]
}

// SetFAT writes value for cluster into every FAT copy.
func (img *Image) SetFAT(cluster, value uint32) {
	for i := 0; i < int(img.Opts.NumberOfFATs); i++ {
		binary.LittleEndian.PutUint32(img.fatSlot(cluster, i), value)
	}
}

// FAT returns the raw value for cluster in the FAT copy copyIndex.
func (img *Image) FAT(cluster uint32, copyIndex int) uint32 {
	return binary.LittleEndian.Uint32(img.fatSlot(cluster, copyIndex))
}

// Cluster returns the writable bytes of cluster.
func (img *Image) Cluster(cluster uint32) []byte {
	if cluster < 2 || cluster >= img.Opts.Clusters+2 {
		panic(fmt.Sprintf("fixture: cluster %d outside of the data area", cluster))
	}
	start := (uint64(img.clusterBegin) + uint64(cluster-2)*uint64(img.Opts.SectorsPerCluster)) * blockdev.SectorSize
	return img.Dev.Bytes()[start : start+uint64(img.ClusterSize())]
}

// ClusterLBA returns the first sector of cluster.
func (img *Image) ClusterLBA(cluster uint32) uint64 {
	return uint64(img.clusterBegin) + uint64(cluster-2)*uint64(img.Opts.SectorsPerCluster)
}

// Slot returns the writable bytes of a directory slot of dirCluster.
func (img *Image) Slot(dirCluster uint32, slot int) []byte {
	return img.Cluster(dirCluster)[slot*slotSize : (slot+1)*slotSize]
}

// PutSlot copies raw into a directory slot.
func (img *Image) PutSlot(dirCluster uint32, slot int, raw []byte) {
	copy(img.Slot(dirCluster, slot), raw)
}

// ShortName converts "NAME.EXT" into the padded 11 byte form.
func ShortName(name string) [11]byte {
	var short [11]byte
	for i := range short {
		short[i] = ' '
	}
	if name == "." || name == ".." {
		copy(short[:], name)
		return short
	}

	base, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
	}
	copy(short[:8], base)
	copy(short[8:], ext)
	return short
}

// ShortEntry encodes a 32 byte short name entry.
func ShortEntry(name string, attr byte, cluster uint32, size uint32) []byte {
	raw := make([]byte, slotSize)
	short := ShortName(name)
	copy(raw[0:11], short[:])
	raw[11] = attr
	binary.LittleEndian.PutUint16(raw[20:], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(raw[26:], uint16(cluster))
	binary.LittleEndian.PutUint32(raw[28:], size)
	// 2024-03-15 12:30:20
	binary.LittleEndian.PutUint16(raw[22:], 12<<11|30<<5|10)
	binary.LittleEndian.PutUint16(raw[24:], 44<<9|3<<5|15)
	return raw
}

// Checksum is the short name checksum stored in long filename fragments.
func Checksum(short [11]byte) byte {
	var sum byte
	for _, c := range short {
		sum = (sum>>1 | sum<<7) + c
	}
	return sum
}

// LongEntries encodes the long filename fragments for long in on-disk order,
// highest ordinal first.
func LongEntries(long string, short [11]byte) [][]byte {
	chars := utf16.Encode([]rune(long))
	count := (len(chars) + 12) / 13

	padded := make([]uint16, count*13)
	for i := range padded {
		switch {
		case i < len(chars):
			padded[i] = chars[i]
		case i == len(chars):
			padded[i] = 0x0000
		default:
			padded[i] = 0xFFFF
		}
	}

	sum := Checksum(short)
	entries := make([][]byte, 0, count)
	for ordinal := count; ordinal >= 1; ordinal-- {
		raw := make([]byte, slotSize)
		raw[0] = byte(ordinal)
		if ordinal == count {
			raw[0] |= 0x40
		}
		raw[11] = AttrLongName
		raw[13] = sum

		part := padded[(ordinal-1)*13 : ordinal*13]
		for i, c := range part {
			var offset int
			switch {
			case i < 5:
				offset = 1 + i*2
			case i < 11:
				offset = 14 + (i-5)*2
			default:
				offset = 28 + (i-11)*2
			}
			binary.LittleEndian.PutUint16(raw[offset:], c)
		}
		entries = append(entries, raw)
	}

	return entries
}

// WriteChain stores content in clusters, links them in the FAT and ends the
// chain with EndOfChain.
func (img *Image) WriteChain(content []byte, clusters ...uint32) {
	size := img.ClusterSize()
	for i, c := range clusters {
		data := img.Cluster(c)
		for j := range data {
			data[j] = 0
		}
		if i*size < len(content) {
			copy(data, content[i*size:])
		}

		next := EndOfChain
		if i+1 < len(clusters) {
			next = clusters[i+1]
		}
		img.SetFAT(c, next)
	}
}

// AddFile writes content into clusters and a short entry for name at slot of
// dirCluster. It returns the next free slot.
func (img *Image) AddFile(dirCluster uint32, slot int, name string, content []byte, clusters ...uint32) int {
	first := uint32(0)
	if len(clusters) > 0 {
		first = clusters[0]
		img.WriteChain(content, clusters...)
	}
	img.PutSlot(dirCluster, slot, ShortEntry(name, AttrArchive, first, uint32(len(content))))
	return slot + 1
}

// AddLongFile is like AddFile but precedes the short entry with long
// filename fragments for long.
func (img *Image) AddLongFile(dirCluster uint32, slot int, long, short string, content []byte, clusters ...uint32) int {
	for _, raw := range LongEntries(long, ShortName(short)) {
		img.PutSlot(dirCluster, slot, raw)
		slot++
	}
	return img.AddFile(dirCluster, slot, short, content, clusters...)
}

// AddDir creates an empty directory at cluster with "." and ".." entries and
// an entry called name at slot of parentCluster. It returns the next free slot.
func (img *Image) AddDir(parentCluster uint32, slot int, name string, cluster uint32) int {
	img.WriteChain(nil, cluster)

	parent := parentCluster
	if parent == 2 {
		parent = 0
	}
	img.PutSlot(cluster, 0, ShortEntry(".", AttrDirectory, cluster, 0))
	img.PutSlot(cluster, 1, ShortEntry("..", AttrDirectory, parent, 0))

	img.PutSlot(parentCluster, slot, ShortEntry(name, AttrDirectory, cluster, 0))
	return slot + 1
}

// Delete marks a slot as deleted.
func (img *Image) Delete(dirCluster uint32, slot int) {
	img.Slot(dirCluster, slot)[0] = Deleted
}
