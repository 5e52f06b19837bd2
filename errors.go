package gofat32

import (
	"errors"
	"fmt"
	"io/fs"
)

// These errors may occur while working with a volume. They are usually
// wrapped by a checkpoint, so compare them using errors.Is.
var (
	ErrFormatInvalid    = errors.New("boot sector is not a valid FAT32 volume")
	ErrNotMounted       = errors.New("volume is not mounted")
	ErrNotFound         = fmt.Errorf("entry not found: %w", fs.ErrNotExist)
	ErrInvalidPath      = errors.New("path must be absolute")
	ErrInvalidOperation = errors.New("operation not valid for this entry")
	ErrClusterRange     = errors.New("cluster outside of the allocation table")
	ErrEntryValue       = errors.New("allocation table value wider than 28 bits")
	ErrCorruptChain     = errors.New("cluster chain is corrupt")
	ErrReadSector       = errors.New("could not read from the device")
	ErrWriteSector      = errors.New("could not write to the device")

	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
	ErrReadDir  = errors.New("could not read the directory")
)
