package gofat32

import (
	"os"
	"time"
)

// FileInfo describes the entry as os.FileInfo.
func (e DirEntry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

type entryFileInfo struct {
	entry DirEntry
}

func (i entryFileInfo) Name() string {
	return i.entry.Name()
}

func (i entryFileInfo) Size() int64 {
	return i.entry.Size()
}

func (i entryFileInfo) Mode() os.FileMode {
	mode := os.FileMode(0o666)
	if i.entry.Header.Attribute&AttrReadOnly == AttrReadOnly {
		mode = 0o444
	}
	if i.IsDir() {
		return mode | 0o111 | os.ModeDir
	}
	return mode
}

func (i entryFileInfo) ModTime() time.Time {
	return timestamp(i.entry.Header.WriteDate, i.entry.Header.WriteTime)
}

func (i entryFileInfo) IsDir() bool {
	return i.entry.IsDir()
}

func (i entryFileInfo) Sys() interface{} {
	return i.entry
}

// timestamp combines a FAT date and time stamp into a UTC time.
//
// Dates count days (bits 0-4), months (bits 5-8) and years since 1980
// (bits 9-15). Times count 2-second units (bits 0-4), minutes (bits 5-10)
// and hours (bits 11-15).
//
// A date with day or month 0 is invalid and yields time.Time{}. Time fields
// exceeding their range are clamped to 23:59:58.
func timestamp(date, clock uint16) time.Time {
	day := int(date & 0x1F)
	month := int(date >> 5 & 0x0F)
	year := 1980 + int(date>>9)

	if day == 0 || month == 0 {
		return time.Time{}
	}

	seconds := int(clock&0x1F) * 2
	minutes := int(clock >> 5 & 0x3F)
	hours := int(clock >> 11)
	if seconds > 58 || minutes > 59 || hours > 23 {
		hours, minutes, seconds = 23, 59, 58
	}

	return time.Date(year, time.Month(month), day, hours, minutes, seconds, 0, time.UTC)
}
