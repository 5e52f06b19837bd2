package blockdev

import (
	"fmt"
	"sync"
)

// Memory is a fixed size in-memory block device.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemory creates a zeroed device with the given number of sectors.
func NewMemory(sectors uint64) *Memory {
	return &Memory{data: make([]byte, sectors*SectorSize)}
}

// Sectors returns the size of the device in sectors.
func (m *Memory) Sectors() uint64 {
	return uint64(len(m.data)) / SectorSize
}

// Bytes exposes the raw device content. Callers must not use it concurrently
// with writes.
func (m *Memory) Bytes() []byte {
	return m.data
}

func (m *Memory) span(lba uint64, count uint32) (int, int, error) {
	start := lba * SectorSize
	end := start + uint64(count)*SectorSize
	if end > uint64(len(m.data)) || end < start {
		return 0, 0, fmt.Errorf("%w: lba %d count %d", ErrOutOfRange, lba, count)
	}
	return int(start), int(end), nil
}

func (m *Memory) ReadSectors(buf []byte, lba uint64, count uint32) error {
	if err := checkBuffer(buf, count); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	start, end, err := m.span(lba, count)
	if err != nil {
		return err
	}
	copy(buf, m.data[start:end])
	return nil
}

func (m *Memory) WriteSectors(lba uint64, count uint32, buf []byte) error {
	if err := checkBuffer(buf, count); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start, end, err := m.span(lba, count)
	if err != nil {
		return err
	}
	copy(m.data[start:end], buf)
	return nil
}
