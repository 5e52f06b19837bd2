// Package mbr reads classic master boot record partition tables.
package mbr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aligator/gofat32/blockdev"
)

const (
	tableOffset     = 446
	entrySize       = 16
	signatureOffset = 510

	// Partitions is the number of primary partitions an MBR can describe.
	Partitions = 4
)

// Some well known partition types.
const (
	TypeEmpty      byte = 0x00
	TypeFAT32CHS   byte = 0x0B
	TypeFAT32LBA   byte = 0x0C
	TypeExperiment byte = 0x7F
)

var (
	ErrNoSignature = errors.New("sector has no boot record signature")
	ErrNoPartition = errors.New("partition does not exist")
)

// Partition is one entry of the partition table.
type Partition struct {
	Status   byte
	Type     byte
	StartLBA uint32
	Sectors  uint32
}

// Empty reports if the slot is unused.
func (p Partition) Empty() bool {
	return p.Type == TypeEmpty
}

// Bootable reports if the active flag is set.
func (p Partition) Bootable() bool {
	return p.Status&0x80 == 0x80
}

// Table is the partition table of one disk.
type Table [Partitions]Partition

// Parse decodes the partition table of a boot sector.
func Parse(sector []byte) (Table, error) {
	var table Table
	if len(sector) < blockdev.SectorSize {
		return table, fmt.Errorf("parsing boot record: %w", ErrNoSignature)
	}

	if sector[signatureOffset] != 0x55 || sector[signatureOffset+1] != 0xAA {
		return table, fmt.Errorf(
			"parsing boot record: %w: found `%#02x %#02x`",
			ErrNoSignature,
			sector[signatureOffset],
			sector[signatureOffset+1],
		)
	}

	for i := range table {
		raw := sector[tableOffset+i*entrySize : tableOffset+(i+1)*entrySize]
		table[i] = Partition{
			Status:   raw[0],
			Type:     raw[4],
			StartLBA: binary.LittleEndian.Uint32(raw[8:12]),
			Sectors:  binary.LittleEndian.Uint32(raw[12:16]),
		}
	}

	return table, nil
}

// Read loads and parses the partition table from LBA 0 of dev.
func Read(dev blockdev.Device) (Table, error) {
	sector, err := blockdev.ReadSector(dev, 0)
	if err != nil {
		return Table{}, fmt.Errorf("reading boot record: %w", err)
	}
	return Parse(sector)
}

// Get returns the partition at index.
func (t Table) Get(index uint8) (Partition, error) {
	if int(index) >= len(t) || t[index].Empty() {
		return Partition{}, fmt.Errorf("%w: index %d", ErrNoPartition, index)
	}
	return t[index], nil
}

// Encode writes the table and the signature into sector, leaving the boot
// code area untouched.
func (t Table) Encode(sector []byte) {
	for i, p := range t {
		raw := sector[tableOffset+i*entrySize : tableOffset+(i+1)*entrySize]
		raw[0] = p.Status
		raw[4] = p.Type
		binary.LittleEndian.PutUint32(raw[8:12], p.StartLBA)
		binary.LittleEndian.PutUint32(raw[12:16], p.Sectors)
	}
	sector[signatureOffset] = 0x55
	sector[signatureOffset+1] = 0xAA
}
