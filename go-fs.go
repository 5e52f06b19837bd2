package gofat32

import (
	"errors"
	"io/fs"
	"sort"
)

type GoDirEntry struct {
	fs.FileInfo
}

func (g GoDirEntry) Type() fs.FileMode {
	return g.FileInfo.Mode().Type()
}

func (g GoDirEntry) Info() (fs.FileInfo, error) {
	return g.FileInfo, nil
}

type GoFile struct {
	*File
}

func (g GoFile) ReadDir(n int) ([]fs.DirEntry, error) {
	entries, err := g.File.Readdir(n)

	goEntries := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		goEntries[i] = GoDirEntry{e}
	}

	return goEntries, err
}

// GoFs wraps the afero implementation to be compatible with fs.FS.
type GoFs struct {
	*Fs
}

var (
	_ fs.ReadDirFS = GoFs{}
	_ fs.StatFS    = GoFs{}
)

// NewGoFS exposes a mounted volume as fs.FS.
func NewGoFS(vol *Volume) GoFs {
	return GoFs{NewFs(vol)}
}

func (g GoFs) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	file, err := g.Fs.Open(name)
	if err != nil {
		return nil, err
	}

	f, ok := file.(*File)
	if !ok {
		return nil, errors.New("invalid File implementation")
	}

	return GoFile{f}, nil
}

// ReadDir lists the directory name sorted by filename.
func (g GoFs) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := g.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries, err := file.(GoFile).ReadDir(-1)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}
