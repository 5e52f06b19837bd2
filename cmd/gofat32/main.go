// gofat32 inspects FAT32 disk images and devices through a mount table.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/aligator/gofat32"
	"github.com/aligator/gofat32/blockdev"
	"github.com/aligator/gofat32/driver/fat32"
	"github.com/aligator/gofat32/driver/testfs"
	"github.com/aligator/gofat32/vfs"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "gofat32",
		Usage: "read and clean up FAT32 volumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML mount table",
				EnvVars: []string{envVarPrefix + "_CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "disk image mounted at / (overrides the config file)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mounts",
				Usage:  "list the mount table",
				Action: withManager(listMounts),
			},
			{
				Name:      "ls",
				Usage:     "list a directory of a fat32 mount",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}},
				},
				Action: withManager(listDir),
			},
			{
				Name:      "cat",
				Usage:     "print a file",
				ArgsUsage: "path",
				Action:    withManager(catFile),
			},
			{
				Name:      "rm",
				Usage:     "delete a file or an empty directory",
				ArgsUsage: "path...",
				Action:    withManager(removeFiles),
			},
			{
				Name:      "info",
				Usage:     "show the geometry of a fat32 mount",
				ArgsUsage: "[path]",
				Action:    withManager(showInfo),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type action func(c *cli.Context, m *vfs.Manager) error

// withManager loads the configuration, mounts the table and tears it down
// after running fn.
func withManager(fn action) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		osFs := afero.NewOsFs()

		cfg, err := LoadConfig(osFs, c.String("config"), c.String("image"))
		if err != nil {
			return err
		}

		m, closeManager, err := openManager(osFs, cfg)
		defer func() {
			if closeErr := closeManager(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		if err != nil {
			return err
		}

		return fn(c, m)
	}
}

// openManager attaches the disks of cfg and mounts its table. The returned
// close function shuts the manager down and closes the disks, it has to be
// called even if err is set.
func openManager(osFs afero.Fs, cfg *Config) (*vfs.Manager, func() error, error) {
	m := vfs.New(
		vfs.WithLogger(cfg.Logger()),
		vfs.WithDrivers(testfs.New(afero.NewMemMapFs()), fat32.New()),
	)

	var closers []io.Closer
	closeManager := func() error {
		errs := []error{m.Shutdown()}
		for _, closer := range closers {
			errs = append(errs, closer.Close())
		}
		return errors.Join(errs...)
	}

	closers, err := attachDisks(osFs, m, cfg.Disks)
	if err != nil {
		return m, closeManager, err
	}

	for _, mc := range cfg.Mounts {
		connector, _ := mc.connector()
		kind, _ := mc.kind()
		if _, err := m.Mount(mc.Prefix, connector, mc.Disk, mc.Partition, kind); err != nil {
			return m, closeManager, fmt.Errorf("mounting `%s`: %w", mc.Prefix, err)
		}
	}
	return m, closeManager, nil
}

func attachDisks(osFs afero.Fs, m *vfs.Manager, disks []DiskConfig) ([]io.Closer, error) {
	var closers []io.Closer
	for _, d := range disks {
		var (
			dev interface {
				blockdev.Device
				io.Closer
			}
			err error
		)
		if d.Raw {
			dev, err = blockdev.OpenRaw(d.Path)
		} else {
			dev, err = blockdev.Open(osFs, d.Path, d.ReadOnly)
		}
		if err != nil {
			return closers, err
		}
		closers = append(closers, dev)

		connector, _ := d.connector()
		if err := m.AttachDisk(connector, d.Disk, dev); err != nil {
			return closers, err
		}
	}
	return closers, nil
}

func listMounts(c *cli.Context, m *vfs.Manager) error {
	w := c.App.Writer
	for _, mnt := range m.Mounts() {
		fmt.Fprintf(w, "%-16s %s disk %d part %d  %-6s start %d, %d sectors\n",
			mnt.Prefix,
			mnt.Connector,
			mnt.Disk,
			mnt.Partition,
			mnt.Kind,
			mnt.Entry.StartLBA,
			mnt.Entry.Sectors,
		)
	}
	return nil
}

// fatMount resolves name to a fat32 volume and the path inside of it.
func fatMount(m *vfs.Manager, name string) (*gofat32.Volume, string, error) {
	mnt, rel, err := m.Resolve(name)
	if err != nil {
		return nil, "", err
	}
	vol, ok := mnt.Volume().(*fat32.Volume)
	if !ok {
		return nil, "", fmt.Errorf("`%s` is a %s mount, not fat32", mnt.Prefix, mnt.Kind)
	}
	return vol.FAT(), rel, nil
}

func argOrRoot(c *cli.Context) string {
	if c.Args().Present() {
		return c.Args().First()
	}
	return "/"
}

func listDir(c *cli.Context, m *vfs.Manager) error {
	name := argOrRoot(c)
	vol, rel, err := fatMount(m, name)
	if err != nil {
		return err
	}
	fsys := gofat32.NewFs(vol)
	w := c.App.Writer

	if c.Bool("recursive") {
		return afero.Walk(fsys, rel, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %10d %s %s\n", info.Mode(), info.Size(), info.ModTime().Format("2006-01-02 15:04"), p)
			return nil
		})
	}

	infos, err := afero.ReadDir(fsys, rel)
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s %10d %s %s\n", info.Mode(), info.Size(), info.ModTime().Format("2006-01-02 15:04"), info.Name())
	}
	return nil
}

func catFile(c *cli.Context, m *vfs.Manager) error {
	if !c.Args().Present() {
		return errors.New("missing path")
	}

	f, err := m.Open(c.Args().First(), vfs.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer m.Close(f)

	buf := make([]byte, 32*1024)
	for {
		n, err := m.Read(f, buf)
		if n > 0 {
			if _, werr := c.App.Writer.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func removeFiles(c *cli.Context, m *vfs.Manager) error {
	if !c.Args().Present() {
		return errors.New("missing path")
	}

	for _, name := range c.Args().Slice() {
		if err := m.Delete(name); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "removed %s\n", path.Clean(name))
	}
	return nil
}

func showInfo(c *cli.Context, m *vfs.Manager) error {
	vol, _, err := fatMount(m, argOrRoot(c))
	if err != nil {
		return err
	}

	d := vol.Descriptor()
	w := c.App.Writer
	fmt.Fprintf(w, "label:               %s\n", d.Label())
	fmt.Fprintf(w, "volume id:           %08X\n", d.VolumeID)
	fmt.Fprintf(w, "partition start:     %d\n", d.PartitionStart)
	fmt.Fprintf(w, "sectors:             %d\n", d.SectorCount)
	fmt.Fprintf(w, "reserved sectors:    %d\n", d.ReservedSectors)
	fmt.Fprintf(w, "fats:                %d x %d sectors\n", d.NumberOfFATs, d.SectorsPerFAT)
	fmt.Fprintf(w, "sectors per track:   %d\n", d.SectorsPerTrack)
	fmt.Fprintf(w, "sectors per cluster: %d\n", d.SectorsPerCluster)
	fmt.Fprintf(w, "clusters:            %d of %d bytes\n", d.ClusterCount(), d.ClusterSize())
	fmt.Fprintf(w, "fat begin lba:       %d\n", d.FATBeginLBA)
	fmt.Fprintf(w, "cluster begin lba:   %d\n", d.ClusterBeginLBA)
	return nil
}
