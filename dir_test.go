package gofat32

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"syscall"
	"testing"

	"github.com/aligator/gofat32/internal/fixture"
)

const testLongName = "Hello World Long Name.txt"

// testImage builds an image with the following root directory:
//
//	slot 0    volume label
//	slot 1    deleted GONE.TXT
//	slot 2-4  "Hello World Long Name.txt" (HELLOW~1.TXT) in clusters 7 and 8
//	slot 5    A.TXT in cluster 5
//	slot 6    SUB/ (cluster 10) holding NESTED.TXT
//	slot 7    BIG/ spanning clusters 12 and 13
//	slot 8    orphaned long name fragment spelling ORPHAN.TXT
func testImage() *fixture.Image {
	img := fixture.New(fixture.Options{})

	img.PutSlot(RootCluster, 0, fixture.ShortEntry("GOFAT32", fixture.AttrVolumeID, 0, 0))
	img.AddFile(RootCluster, 1, "GONE.TXT", []byte("gone"), 3)
	img.Delete(RootCluster, 1)

	long := make([]byte, 600)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	slot := img.AddLongFile(RootCluster, 2, testLongName, "HELLOW~1.TXT", long, 7, 8)
	slot = img.AddFile(RootCluster, slot, "A.TXT", []byte("abcd"), 5)

	slot = img.AddDir(RootCluster, slot, "SUB", 10)
	img.AddFile(10, 2, "NESTED.TXT", []byte("nested"), 11)

	slot = img.AddDir(RootCluster, slot, "BIG", 12)
	img.SetFAT(12, 13)
	img.SetFAT(13, fixture.EndOfChain)
	for i := 2; i < img.SlotsPerCluster(); i++ {
		img.AddFile(12, i, fmt.Sprintf("F%02d.TXT", i), nil)
	}
	img.AddFile(13, 0, "LAST.TXT", []byte("last"), 14)

	img.PutSlot(RootCluster, slot, fixture.ShortEntry("ORPHAN.TXT", fixture.AttrLongName, 0, 0))

	return img
}

func TestVolume_FindEntry(t *testing.T) {
	tests := []struct {
		name        string
		opts        []Option
		dir         uint32
		find        string
		wantName    string
		wantCluster uint32
		wantSlot    uint16
		wantErr     error
	}{
		{
			name:        "short name",
			dir:         RootCluster,
			find:        "A.TXT",
			wantName:    "A.TXT",
			wantCluster: 5,
			wantSlot:    5,
		},
		{
			name:        "short name in lower case",
			dir:         RootCluster,
			find:        "a.txt",
			wantName:    "A.TXT",
			wantCluster: 5,
			wantSlot:    5,
		},
		{
			name:        "long name",
			dir:         RootCluster,
			find:        testLongName,
			wantName:    testLongName,
			wantCluster: 7,
			wantSlot:    4,
		},
		{
			name:        "long name ignores case",
			dir:         RootCluster,
			find:        "HELLO world long name.TXT",
			wantName:    testLongName,
			wantCluster: 7,
			wantSlot:    4,
		},
		{
			name:        "short alias of a long name",
			dir:         RootCluster,
			find:        "HELLOW~1.TXT",
			wantName:    testLongName,
			wantCluster: 7,
			wantSlot:    4,
		},
		{
			name:    "long names disabled",
			opts:    []Option{WithLongNames(false)},
			dir:     RootCluster,
			find:    testLongName,
			wantErr: ErrNotFound,
		},
		{
			name:    "deleted entry",
			dir:     RootCluster,
			find:    "GONE.TXT",
			wantErr: ErrNotFound,
		},
		{
			name:    "volume label",
			dir:     RootCluster,
			find:    "GOFAT32",
			wantErr: ErrNotFound,
		},
		{
			name:    "long name fragment never matches a short name",
			dir:     RootCluster,
			find:    "ORPHAN.TXT",
			wantErr: ErrNotFound,
		},
		{
			name:    "missing",
			dir:     RootCluster,
			find:    "NOPE.TXT",
			wantErr: ErrNotFound,
		},
		{
			name:        "subdirectory",
			dir:         10,
			find:        "NESTED.TXT",
			wantName:    "NESTED.TXT",
			wantCluster: 11,
			wantSlot:    2,
		},
		{
			name:        "second cluster of a directory",
			dir:         12,
			find:        "LAST.TXT",
			wantName:    "LAST.TXT",
			wantCluster: 14,
			wantSlot:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := testImage()
			vol := testingMount(t, img, tt.opts...)

			got, err := vol.FindEntry(tt.dir, tt.find)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) || !errors.Is(err, fs.ErrNotExist) {
					t.Errorf("FindEntry() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindEntry() error = %v", err)
			}

			if got.Name() != tt.wantName {
				t.Errorf("FindEntry() name = %v, want %v", got.Name(), tt.wantName)
			}
			if got.FirstCluster() != tt.wantCluster {
				t.Errorf("FindEntry() cluster = %v, want %v", got.FirstCluster(), tt.wantCluster)
			}
			if got.Location.Slot != tt.wantSlot {
				t.Errorf("FindEntry() slot = %v, want %v", got.Location.Slot, tt.wantSlot)
			}
			if want := img.ClusterLBA(tt.dir); tt.dir != 12 && got.Location.LBA != want {
				t.Errorf("FindEntry() lba = %v, want %v", got.Location.LBA, want)
			}
		})
	}
}

func TestVolume_FindEntry_longNameFragments(t *testing.T) {
	img := testImage()
	vol := testingMount(t, img)

	got, err := vol.FindEntry(RootCluster, testLongName)
	if err != nil {
		t.Fatalf("FindEntry() error = %v", err)
	}

	lba := img.ClusterLBA(RootCluster)
	want := []Location{{LBA: lba, Slot: 2}, {LBA: lba, Slot: 3}}
	if !reflect.DeepEqual(got.Fragments, want) {
		t.Errorf("FindEntry() fragments = %v, want %v", got.Fragments, want)
	}
	if got.ShortName() != "HELLOW~1.TXT" {
		t.Errorf("FindEntry() short name = %v, want HELLOW~1.TXT", got.ShortName())
	}
}

func TestVolume_FindEntry_badChecksum(t *testing.T) {
	img := fixture.New(fixture.Options{})
	img.AddLongFile(RootCluster, 0, "Some long file.txt", "SOMELO~1.TXT", []byte("x"), 5)
	// Break the binding between the fragments and the short entry.
	img.Slot(RootCluster, 0)[13]++
	vol := testingMount(t, img)

	if _, err := vol.FindEntry(RootCluster, "Some long file.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindEntry() error = %v, want %v", err, ErrNotFound)
	}

	got, err := vol.FindEntry(RootCluster, "SOMELO~1.TXT")
	if err != nil {
		t.Fatalf("FindEntry() error = %v", err)
	}
	if got.LongName != "" || got.Fragments != nil {
		t.Errorf("FindEntry() kept invalid fragments: %q %v", got.LongName, got.Fragments)
	}
}

func TestVolume_FindEntry_fullDirectory(t *testing.T) {
	img := fixture.New(fixture.Options{})
	for i := 0; i < img.SlotsPerCluster(); i++ {
		img.AddFile(RootCluster, i, fmt.Sprintf("F%02d.TXT", i), nil)
	}
	vol := testingMount(t, img)

	if _, err := vol.FindEntry(RootCluster, "F15.TXT"); err != nil {
		t.Errorf("FindEntry() of the last slot error = %v", err)
	}
	if _, err := vol.FindEntry(RootCluster, "F16.TXT"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindEntry() past the chain end error = %v, want %v", err, ErrNotFound)
	}
}

func TestVolume_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantName    string
		wantCluster uint32
		wantDir     bool
		wantErr     []error
	}{
		{name: "root", path: "/", wantName: "/", wantCluster: RootCluster, wantDir: true},
		{name: "file in root", path: "/A.TXT", wantName: "A.TXT", wantCluster: 5},
		{name: "long name", path: "/" + testLongName, wantName: testLongName, wantCluster: 7},
		{name: "directory", path: "/SUB", wantName: "SUB", wantCluster: 10, wantDir: true},
		{name: "nested file", path: "/SUB/NESTED.TXT", wantName: "NESTED.TXT", wantCluster: 11},
		{name: "lower case", path: "/sub/nested.txt", wantName: "NESTED.TXT", wantCluster: 11},
		{name: "empty segments", path: "//SUB//NESTED.TXT/", wantName: "NESTED.TXT", wantCluster: 11},
		{name: "dot dot to the root", path: "/SUB/../A.TXT", wantName: "A.TXT", wantCluster: 5},
		{name: "second directory cluster", path: "/BIG/LAST.TXT", wantName: "LAST.TXT", wantCluster: 14},
		{name: "relative path", path: "A.TXT", wantErr: []error{ErrInvalidPath}},
		{name: "empty path", path: "", wantErr: []error{ErrInvalidPath}},
		{name: "missing", path: "/SUB/MISSING.TXT", wantErr: []error{ErrNotFound, fs.ErrNotExist}},
		{name: "missing directory", path: "/NOPE/A.TXT", wantErr: []error{ErrNotFound}},
		{name: "file as directory", path: "/A.TXT/B.TXT", wantErr: []error{ErrNotFound, syscall.ENOTDIR}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vol := testingMount(t, testImage())

			got, err := vol.Resolve(tt.path)
			if tt.wantErr != nil {
				for _, want := range tt.wantErr {
					if !errors.Is(err, want) {
						t.Errorf("Resolve(%q) error = %v, want %v", tt.path, err, want)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.path, err)
			}

			if got.Name() != tt.wantName || got.FirstCluster() != tt.wantCluster || got.IsDir() != tt.wantDir {
				t.Errorf("Resolve(%q) = %v cluster %v dir %v, want %v cluster %v dir %v",
					tt.path, got.Name(), got.FirstCluster(), got.IsDir(), tt.wantName, tt.wantCluster, tt.wantDir)
			}
		})
	}
}

func TestVolume_ReadDir(t *testing.T) {
	vol := testingMount(t, testImage())

	tests := []struct {
		name      string
		path      string
		wantNames []string
		wantErr   error
	}{
		{
			name:      "root",
			path:      "/",
			wantNames: []string{testLongName, "A.TXT", "SUB", "BIG"},
		},
		{
			name:      "subdirectory without dot entries",
			path:      "/SUB",
			wantNames: []string{"NESTED.TXT"},
		},
		{
			name:    "file",
			path:    "/A.TXT",
			wantErr: syscall.ENOTDIR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, err := vol.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			entries, err := vol.ReadDir(dir)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ReadDir() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadDir() error = %v", err)
			}

			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			if !reflect.DeepEqual(names, tt.wantNames) {
				t.Errorf("ReadDir() = %v, want %v", names, tt.wantNames)
			}
		})
	}

	t.Run("two clusters", func(t *testing.T) {
		dir, err := vol.Resolve("/BIG")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		entries, err := vol.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 15 || entries[14].Name() != "LAST.TXT" {
			t.Errorf("ReadDir() returned %d entries", len(entries))
		}
	})
}

func TestDirEntry(t *testing.T) {
	tests := []struct {
		name        string
		header      EntryHeader
		wantName    string
		wantCluster uint32
		wantRegular bool
		wantDir     bool
		wantLabel   bool
	}{
		{
			name: "regular file",
			header: EntryHeader{
				Name:           [11]byte{'R', 'E', 'A', 'D', 'M', 'E', ' ', ' ', 'M', 'D', ' '},
				Attribute:      AttrArchive,
				FirstClusterLO: 9,
			},
			wantName:    "README.MD",
			wantCluster: 9,
			wantRegular: true,
		},
		{
			name: "without extension and high cluster word",
			header: EntryHeader{
				Name:           [11]byte{'M', 'A', 'K', 'E', 'F', 'I', 'L', 'E', ' ', ' ', ' '},
				Attribute:      AttrReadOnly | AttrHidden,
				FirstClusterHI: 1,
				FirstClusterLO: 2,
			},
			wantName:    "MAKEFILE",
			wantCluster: 0x10002,
			wantRegular: true,
		},
		{
			name: "kanji lead byte",
			header: EntryHeader{
				Name:      [11]byte{0x05, 'A', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '},
				Attribute: AttrArchive,
			},
			wantName:    "\xe5A",
			wantRegular: true,
		},
		{
			name: "directory",
			header: EntryHeader{
				Name:           [11]byte{'D', 'I', 'R', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '},
				Attribute:      AttrDirectory,
				FirstClusterLO: 3,
			},
			wantName:    "DIR",
			wantCluster: 3,
			wantDir:     true,
		},
		{
			name: "volume label",
			header: EntryHeader{
				Name:      [11]byte{'L', 'A', 'B', 'E', 'L', ' ', ' ', ' ', ' ', ' ', ' '},
				Attribute: AttrVolumeID | AttrArchive,
			},
			wantName:  "LABEL",
			wantLabel: true,
		},
		{
			name: "long name fragment",
			header: EntryHeader{
				Name:      [11]byte{'A', 'B', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '},
				Attribute: AttrLongName,
			},
			wantName: "AB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DirEntry{Header: tt.header}
			if got := e.Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
			if got := e.FirstCluster(); got != tt.wantCluster {
				t.Errorf("FirstCluster() = %v, want %v", got, tt.wantCluster)
			}
			if got := e.IsRegular(); got != tt.wantRegular {
				t.Errorf("IsRegular() = %v, want %v", got, tt.wantRegular)
			}
			if got := e.IsDir(); got != tt.wantDir {
				t.Errorf("IsDir() = %v, want %v", got, tt.wantDir)
			}
			if got := e.IsVolumeID(); got != tt.wantLabel {
				t.Errorf("IsVolumeID() = %v, want %v", got, tt.wantLabel)
			}
		})
	}
}

func TestFormatShortName(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOk bool
	}{
		{name: "a.txt", want: "A       TXT", wantOk: true},
		{name: "README", want: "README     ", wantOk: true},
		{name: "12345678.123", want: "12345678123", wantOk: true},
		{name: "..", want: "..         ", wantOk: true},
		{name: "123456789.TXT"},
		{name: "A.TEXT"},
		{name: "my file.txt"},
		{name: "a.b.c"},
		{name: ".hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formatShortName(tt.name)
			if ok != tt.wantOk {
				t.Fatalf("formatShortName() ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && string(got[:]) != tt.want {
				t.Errorf("formatShortName() = %q, want %q", got, tt.want)
			}
		})
	}
}
