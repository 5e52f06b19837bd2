// Package checkpoint decorates errors with the location they passed through,
// which gives a cheap trace of how an error travelled from the block device
// up to the caller.
//
// Every checkpoint can carry a describing error (usually a package sentinel
// like gofat32.ErrNotFound) in addition to the error it wraps. Both stay
// visible to errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps err into a checkpoint holding only the caller location.
// It returns nil if err is nil.
func From(err error) error {
	if err == nil {
		return nil
	}

	// io.EOF and io.ErrUnexpectedEOF are compared by identity by most readers.
	// https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(err, nil)
}

// Wrap records a checkpoint for prev and describes it with err.
// It returns nil if prev is nil, which allows wrapping unconditionally:
//
//	data, err := dev.ReadSectors(buf, lba, 1)
//	return checkpoint.Wrap(err, ErrReadSector)
//
// errors.Is then matches both ErrReadSector and the device error.
func Wrap(prev, err error) error {
	if prev == nil {
		return nil
	}

	if prev == io.EOF {
		return io.EOF
	}

	return newCheckpoint(prev, err)
}

// Frames returns the "file:line" locations recorded along the chain of err,
// innermost last.
func Frames(err error) []string {
	var frames []string
	for err != nil {
		if c, ok := err.(*checkpoint); ok {
			frames = append(frames, c.location())
		}
		err = errors.Unwrap(err)
	}
	return frames
}

type checkpoint struct {
	prev error
	desc error

	file string
	line int
}

func newCheckpoint(prev, desc error) *checkpoint {
	c := &checkpoint{prev: prev, desc: desc}

	// Skip newCheckpoint and the exported constructor.
	if _, file, line, ok := runtime.Caller(2); ok {
		c.file = filepath.Base(file)
		c.line = line
	}

	return c
}

func (c *checkpoint) location() string {
	if c.file == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", c.file, c.line)
}

func (c *checkpoint) Error() string {
	var b strings.Builder
	if c.desc != nil {
		b.WriteString(c.desc.Error())
		b.WriteString(": ")
	}

	b.WriteString(c.prev.Error())

	if _, ok := c.prev.(*checkpoint); !ok {
		b.WriteString(" (at ")
		b.WriteString(c.location())
		b.WriteString(")")
	}

	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.prev
}

func (c *checkpoint) Is(target error) bool {
	return c.desc != nil && errors.Is(c.desc, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.desc != nil && errors.As(c.desc, target)
}
