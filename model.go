// File model contains the structs which match the direct structures of the FAT32 filesystem.

package gofat32

// Directory entry attributes.
const (
	AttrReadOnly  byte = 0x01
	AttrHidden    byte = 0x02
	AttrSystem    byte = 0x04
	AttrVolumeID  byte = 0x08
	AttrDirectory byte = 0x10
	AttrArchive   byte = 0x20
	AttrLongName       = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

// Special values of the first name byte of a directory entry.
const (
	entryEnd     byte = 0x00
	entryKanji   byte = 0x05
	entryDeleted byte = 0xE5
)

const (
	// entrySize is the size of one directory slot.
	entrySize = 32

	// RootCluster is where the root directory starts.
	RootCluster uint32 = 2

	// signatureOffset is the position of the extended boot signature.
	signatureOffset = 66
	signature1      = 0x28
	signature2      = 0x29

	lfnLast       = 0x40
	lfnOrdinal    = 0x1F
	lfnCharacters = 13
)

type BPB struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSpecificData     [54]byte
}

type FAT32SpecificData struct {
	FatSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfo           uint16
	BkBootSector     uint16
	Reserved         [12]byte
	BSDriveNumber    byte
	BSReserved1      byte
	BSBootSignature  byte
	BSVolumeID       uint32
	BSVolumeLabel    [11]byte
	BSFileSystemType [8]byte
}

type EntryHeader struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

type LongFilenameEntry struct {
	Sequence  byte
	First     [5]uint16
	Attribute byte
	EntryType byte
	Checksum  byte
	Second    [6]uint16
	Zero      [2]byte
	Third     [2]uint16
}

// characters returns the 13 UTF-16 code units of the fragment in order.
func (l *LongFilenameEntry) characters() []uint16 {
	chars := make([]uint16, 0, lfnCharacters)
	chars = append(chars, l.First[:]...)
	chars = append(chars, l.Second[:]...)
	return append(chars, l.Third[:]...)
}

// shortNameChecksum is the checksum long filename fragments carry to bind
// them to their short entry.
func shortNameChecksum(name [11]byte) byte {
	var sum byte
	for _, c := range name {
		sum = (sum>>1 | sum<<7) + c
	}
	return sum
}
