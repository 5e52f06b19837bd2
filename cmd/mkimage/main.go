// mkimage writes a small partitioned FAT32 disk image with sample content.
// The result can be inspected with the gofat32 command.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aligator/gofat32"
	"github.com/aligator/gofat32/internal/fixture"
	"github.com/aligator/gofat32/mbr"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "mkimage",
		Usage:     "write a sample FAT32 disk image",
		ArgsUsage: "output",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Value: "GOFAT32", Usage: "volume label"},
			&cli.UintFlag{Name: "clusters", Value: 64, Usage: "number of data clusters"},
			&cli.UintFlag{Name: "sectors-per-cluster", Value: 1},
			&cli.BoolFlag{Name: "test", Usage: "use the experimental partition type 0x7F"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "overwrite an existing file"},
		},
		Action: func(c *cli.Context) error {
			if !c.Args().Present() {
				return fmt.Errorf("missing output path")
			}
			opts := fixture.Options{
				Label:             c.String("label"),
				Clusters:          uint32(c.Uint("clusters")),
				SectorsPerCluster: uint8(c.Uint("sectors-per-cluster")),
			}
			if c.Bool("test") {
				opts.PartitionType = mbr.TypeExperiment
			}
			return writeImage(afero.NewOsFs(), c.Args().First(), opts, c.Bool("force"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func writeImage(fsys afero.Fs, dest string, opts fixture.Options, force bool) error {
	if exists, err := afero.Exists(fsys, dest); err != nil {
		return err
	} else if exists && !force {
		return fmt.Errorf("%s already exists", dest)
	}

	if opts.Clusters < 16 {
		return fmt.Errorf("at least 16 clusters are needed, got %d", opts.Clusters)
	}
	// One FAT sector holds 128 entries, two of them reserved.
	opts.SectorsPerFAT = (opts.Clusters + 2 + 127) / 128

	img := fixture.New(opts)
	populate(img)

	return afero.WriteFile(fsys, dest, img.Dev.Bytes(), 0o644)
}

// populate writes the sample tree:
//
//	/HELLO.TXT
//	/A long file name.txt   (two clusters)
//	/DOCS/README.MD
//	/OLD.TXT                (deleted)
func populate(img *fixture.Image) {
	root := gofat32.RootCluster
	slot := 0

	img.PutSlot(root, slot, fixture.ShortEntry(img.Opts.Label, fixture.AttrVolumeID, 0, 0))
	slot++

	img.AddFile(root, slot, "OLD.TXT", []byte("gone\n"), 3)
	img.Delete(root, slot)
	img.SetFAT(3, 0)
	slot++

	slot = img.AddFile(root, slot, "HELLO.TXT", []byte("Hello, FAT32!\n"), 4)

	long := []byte(strings.Repeat("The quick brown fox jumps over the lazy dog.\n", 2*img.ClusterSize()/45+1))
	slot = img.AddLongFile(root, slot, "A long file name.txt", "ALONGF~1.TXT", long[:img.ClusterSize()+100], 5, 6)

	img.AddDir(root, slot, "DOCS", 7)
	img.AddFile(7, 2, "README.MD", []byte("# Docs\n\nWritten by mkimage.\n"), 8)
}
