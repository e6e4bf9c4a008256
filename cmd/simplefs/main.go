package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"

	"github.com/tchajed/goose/machine/disk"
	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/blkdev"
	"github.com/mit-pdos/go-simplefs/fs"
	"github.com/mit-pdos/go-simplefs/super"
	"github.com/mit-pdos/go-simplefs/util/timed_disk"
)

func main() {
	app := cli.App{
		Name:  "simplefs",
		Usage: "format and manipulate a simplefs disk image",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "disk",
				Usage: "disk image file",
			},
			&cli.Uint64Flag{
				Name:  "blocks",
				Usage: "size of the image in blocks, for format",
				Value: defaultBlocks,
			},
			&cli.Uint64Flag{
				Name:  "cache-slots",
				Usage: "block cache slots (0 for a fifth of the disk)",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "seed for cache eviction",
			},
			&cli.Uint64Flag{
				Name:  "debug",
				Usage: "debug level (higher is more verbose)",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "print cache and disk stats to stderr at exit",
			},
		},
		Commands: []*cli.Command{{
			Name:        "format",
			Aliases:     []string{"mkfs"},
			Description: "create an empty file system, erasing the image",
			Action: withDisk(true, func(v *fs.Volume, ctx *cli.Context) error {
				if err := v.Format(); err != nil {
					return err
				}
				s, err := mountedSuper(v)
				if err != nil {
					return err
				}
				fmt.Printf("formatted %d blocks, %d inodes\n", s.Size, s.NInode())
				return nil
			}),
		}, {
			Name:        "debug",
			Description: "print the superblock and every file's inode",
			Action: withDisk(false, func(v *fs.Volume, ctx *cli.Context) error {
				return v.Debug(os.Stdout)
			}),
		}, {
			Name:        "check",
			Aliases:     []string{"fsck"},
			Description: "check the consistency of the file system",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				if err := v.Check(); err != nil {
					return err
				}
				free, err := v.FreeBlocks()
				if err != nil {
					return err
				}
				fmt.Printf("ok, %d free blocks\n", free)
				return nil
			}),
		}, {
			Name:        "create",
			Aliases:     []string{"touch"},
			Description: "create an empty file and print its inode number",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				inum, err := v.CreateFile()
				if err != nil {
					return err
				}
				fmt.Println(inum)
				return nil
			}),
		}, {
			Name:        "delete",
			Aliases:     []string{"rm"},
			ArgsUsage:   "INUM",
			Description: "delete a file",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				inum, err := inumArg(ctx, 0)
				if err != nil {
					return err
				}
				return v.DeleteFile(inum)
			}),
		}, {
			Name:        "size",
			ArgsUsage:   "INUM",
			Description: "print the size of a file in bytes",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				inum, err := inumArg(ctx, 0)
				if err != nil {
					return err
				}
				sz, err := v.FileSize(inum)
				if err != nil {
					return err
				}
				fmt.Println(sz)
				return nil
			}),
		}, {
			Name:        "cat",
			ArgsUsage:   "INUM",
			Description: "write a file's contents to stdout",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				inum, err := inumArg(ctx, 0)
				if err != nil {
					return err
				}
				data, err := readAll(v, inum)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}),
		}, {
			Name:        "copyin",
			ArgsUsage:   "PATH [INUM]",
			Description: "copy a host file into a new file, or over INUM",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				if ctx.NArg() < 1 {
					return cli.Exit("copyin: missing PATH", 2)
				}
				data, err := ioutil.ReadFile(ctx.Args().Get(0))
				if err != nil {
					return err
				}
				var inum common.Inum
				if ctx.NArg() > 1 {
					inum, err = inumArg(ctx, 1)
				} else {
					inum, err = v.CreateFile()
				}
				if err != nil {
					return err
				}
				n, err := v.WriteFile(inum, data, 0)
				if err != nil {
					return err
				}
				fmt.Printf("%d: wrote %d of %d bytes\n", inum, n, len(data))
				if n < uint64(len(data)) {
					return cli.Exit("copyin: short write (disk full or file too large)", 1)
				}
				return nil
			}),
		}, {
			Name:        "copyout",
			ArgsUsage:   "INUM PATH",
			Description: "copy a file out to the host",
			Action: withVolume(func(v *fs.Volume, ctx *cli.Context) error {
				inum, err := inumArg(ctx, 0)
				if err != nil {
					return err
				}
				if ctx.NArg() < 2 {
					return cli.Exit("copyout: missing PATH", 2)
				}
				data, err := readAll(v, inum)
				if err != nil {
					return err
				}
				return ioutil.WriteFile(ctx.Args().Get(1), data, 0644)
			}),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func inumArg(ctx *cli.Context, i int) (common.Inum, error) {
	if ctx.NArg() <= i {
		return 0, cli.Exit(ctx.Command.Name+": missing INUM", 2)
	}
	n, err := strconv.ParseUint(ctx.Args().Get(i), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing inode number: %w", err)
	}
	return common.Inum(n), nil
}

func readAll(v *fs.Volume, inum common.Inum) ([]byte, error) {
	sz, err := v.FileSize(inum)
	if err != nil {
		return nil, err
	}
	data := make([]byte, sz)
	n, err := v.ReadFile(inum, data, 0)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}

func mountedSuper(v *fs.Volume) (super.FsSuper, error) {
	if err := v.Mount(); err != nil {
		return super.FsSuper{}, err
	}
	s, err := v.Super()
	if err != nil {
		return s, err
	}
	return s, v.Close()
}

// withDisk opens the configured image and hands f an unmounted volume on
// it. The image is created with the configured size when create is set;
// otherwise it keeps its size.
func withDisk(create bool, f func(*fs.Volume, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		c, err := LoadConfig()
		if err != nil {
			return err
		}
		c.ApplyFlags(ctx)
		if err := c.Validate(); err != nil {
			return err
		}
		util.Debug = c.Debug

		var nblocks uint64
		if create {
			nblocks = c.Blocks
		}
		bd, err := blkdev.Open(c.Disk, nblocks)
		if err != nil {
			return err
		}
		var d disk.Disk = bd
		var td *timed_disk.Disk
		if c.Stats {
			td = timed_disk.New(bd)
			d = td
		}
		defer d.Close()

		err = f(fs.MkVolume(d, c.Options()), ctx)
		if td != nil {
			td.WriteStats(os.Stderr)
		}
		return err
	}
}

// withVolume is withDisk for commands that need the file system mounted.
// The volume is closed, and so written back, when f returns.
func withVolume(f func(*fs.Volume, *cli.Context) error) cli.ActionFunc {
	return withDisk(false, func(v *fs.Volume, ctx *cli.Context) error {
		if err := v.Mount(); err != nil {
			return fmt.Errorf("mounting: %w", err)
		}
		err := f(v, ctx)
		if cerr := v.Close(); err == nil {
			err = cerr
		}
		return err
	})
}
