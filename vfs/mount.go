package vfs

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/checkpoint"
	"github.com/aligator/gofat32/mbr"
)

// MountPoint binds a prefix to a mounted partition.
type MountPoint struct {
	Prefix    string
	Connector Connector
	Disk      uint32
	Partition uint8
	Kind      FSKind
	Entry     mbr.Partition

	volume Volume
	open   int
}

// Volume returns the driver volume behind the mount.
func (m *MountPoint) Volume() Volume {
	return m.volume
}

type diskKey struct {
	connector Connector
	disk      uint32
}

// Option configures a Manager.
type Option func(m *Manager)

// WithLogger sets the logger of the manager. It is passed on to the drivers.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithDrivers registers drivers. KindAuto mounts probe them in the given
// order and the first match wins. As probing is heuristic, a partition may
// look valid to several drivers, so the more specific ones belong first.
func WithDrivers(drivers ...Driver) Option {
	return func(m *Manager) {
		m.drivers = append(m.drivers, drivers...)
	}
}

// Manager holds the mount table and the open file table. All methods are
// safe for concurrent use; operations are serialized by a single lock.
type Manager struct {
	mu sync.Mutex

	log     *slog.Logger
	drivers []Driver
	disks   map[diskKey]blockdev.Device
	mounts  []*MountPoint

	files  map[int]*OpenFile
	nextID int
	fds    map[int]*OpenFile
	nextFD int
}

// New creates an empty manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		log:    slog.Default(),
		disks:  make(map[diskKey]blockdev.Device),
		files:  make(map[int]*OpenFile),
		fds:    make(map[int]*OpenFile),
		nextID: 1,
		nextFD: 3,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AttachDisk makes dev available as disk on connector.
func (m *Manager) AttachDisk(connector Connector, disk uint32, dev blockdev.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := diskKey{connector, disk}
	if _, ok := m.disks[key]; ok {
		return checkpoint.From(fmt.Errorf("%w: %s disk %d", ErrDiskAttached, connector, disk))
	}
	m.disks[key] = dev
	return nil
}

// cleanPrefix normalizes a mount prefix, "/data/" becomes "/data".
func cleanPrefix(prefix string) (string, error) {
	if !strings.HasPrefix(prefix, "/") {
		return "", checkpoint.From(fmt.Errorf("%w: `%s`", ErrInvalidPrefix, prefix))
	}
	return path.Clean(prefix), nil
}

// Mount reads the partition table of the disk, selects a driver for the
// partition and registers the mounted volume under prefix. With KindAuto
// the drivers are probed, otherwise the driver of kind is used as is.
func (m *Manager) Mount(prefix string, connector Connector, disk uint32, partition uint8, kind FSKind) (*MountPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix, err := cleanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	for _, mnt := range m.mounts {
		if mnt.Prefix == prefix {
			return nil, checkpoint.From(fmt.Errorf("%w: `%s`", ErrMountExists, prefix))
		}
	}

	dev, ok := m.disks[diskKey{connector, disk}]
	if !ok {
		return nil, checkpoint.From(fmt.Errorf("%w: %s disk %d", ErrUnknownDisk, connector, disk))
	}

	table, err := mbr.Read(dev)
	if err != nil {
		return nil, checkpoint.From(err)
	}
	entry, err := table.Get(partition)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	req := MountRequest{
		Prefix:    prefix,
		Connector: connector,
		Disk:      disk,
		Partition: partition,
		Device:    dev,
		Entry:     entry,
		Logger:    m.log.With("prefix", prefix),
	}

	driver, err := m.selectDriver(req, kind)
	if err != nil {
		return nil, err
	}

	vol, err := driver.Mount(req)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	mnt := &MountPoint{
		Prefix:    prefix,
		Connector: connector,
		Disk:      disk,
		Partition: partition,
		Kind:      driver.Kind(),
		Entry:     entry,
		volume:    vol,
	}
	m.mounts = append(m.mounts, mnt)

	m.log.Info("mounted partition",
		"prefix", prefix,
		"connector", connector,
		"disk", disk,
		"partition", partition,
		"kind", mnt.Kind,
		"start_lba", entry.StartLBA,
	)
	return mnt, nil
}

func (m *Manager) selectDriver(req MountRequest, kind FSKind) (Driver, error) {
	if kind != KindAuto {
		for _, d := range m.drivers {
			if d.Kind() == kind {
				return d, nil
			}
		}
		return nil, checkpoint.From(fmt.Errorf("%w: kind %s is not registered", ErrNoDriver, kind))
	}

	for _, d := range m.drivers {
		ok, err := d.Probe(req)
		if err != nil {
			return nil, checkpoint.Wrap(err, fmt.Errorf("%w: probing %s", ErrNoDriver, d.Kind()))
		}
		if ok {
			m.log.Debug("driver accepted partition", "kind", d.Kind(), "prefix", req.Prefix)
			return d, nil
		}
	}

	return nil, checkpoint.From(fmt.Errorf(
		"%w: partition %d of %s disk %d (type %#02x)",
		ErrNoDriver,
		req.Partition,
		req.Connector,
		req.Disk,
		req.Entry.Type,
	))
}

// Unmount removes mnt from the mount table. It fails with ErrBusy while
// files of the mount are open.
func (m *Manager) Unmount(mnt *MountPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.unmount(mnt)
}

func (m *Manager) unmount(mnt *MountPoint) error {
	index := -1
	for i, candidate := range m.mounts {
		if candidate == mnt {
			index = i
		}
	}
	if index < 0 {
		return checkpoint.From(fmt.Errorf("%w: `%s` is not mounted", ErrNoMountPoint, mnt.Prefix))
	}

	if mnt.open > 0 {
		return checkpoint.From(fmt.Errorf("%w: %d open files on `%s`", ErrBusy, mnt.open, mnt.Prefix))
	}

	if err := mnt.volume.Unmount(); err != nil {
		return checkpoint.From(err)
	}

	m.mounts = append(m.mounts[:index], m.mounts[index+1:]...)
	m.log.Info("unmounted partition", "prefix", mnt.Prefix)
	return nil
}

// Mounts returns the mount points in the order they were mounted.
func (m *Manager) Mounts() []*MountPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*MountPoint(nil), m.mounts...)
}

// Resolve returns the mount point with the longest prefix of name, and
// name relative to it. Prefixes only match whole path segments, "/data"
// serves "/data/foo" but not "/database".
func (m *Manager) Resolve(name string) (*MountPoint, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resolve(name)
}

func (m *Manager) resolve(name string) (*MountPoint, string, error) {
	if !strings.HasPrefix(name, "/") {
		return nil, "", checkpoint.From(fmt.Errorf("%w: `%s` is not absolute", ErrNoMountPoint, name))
	}
	name = path.Clean(name)

	var best *MountPoint
	for _, mnt := range m.mounts {
		if !servesPath(mnt.Prefix, name) {
			continue
		}
		if best == nil || len(mnt.Prefix) > len(best.Prefix) {
			best = mnt
		}
	}

	if best == nil {
		return nil, "", checkpoint.From(fmt.Errorf("%w: `%s`", ErrNoMountPoint, name))
	}

	rel := name
	if best.Prefix != "/" {
		rel = strings.TrimPrefix(name, best.Prefix)
	}
	if rel == "" {
		rel = "/"
	}
	return best, rel, nil
}

func servesPath(prefix, name string) bool {
	return prefix == "/" || name == prefix || strings.HasPrefix(name, prefix+"/")
}

// Shutdown closes every open file and unmounts every volume, the most
// recent mount first. All errors are reported.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.files {
		m.closeFile(f)
	}

	var errs []error
	for i := len(m.mounts) - 1; i >= 0; i-- {
		if err := m.unmount(m.mounts[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
