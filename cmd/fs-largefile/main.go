package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/blkdev"
	"github.com/mit-pdos/go-simplefs/fs"
	"github.com/mit-pdos/go-simplefs/super"
	"github.com/mit-pdos/go-simplefs/util/timed_disk"
)

const (
	KB    uint64 = 1024
	WSIZE        = 4096
)

// makefiles fills nfiles files of the largest possible size, WSIZE bytes
// per write, and flushes the volume.
func makefiles(v *fs.Volume, nfiles int, data []byte) []common.Inum {
	var inums []common.Inum
	for i := 0; i < nfiles; i++ {
		inum, err := v.CreateFile()
		if err != nil {
			panic(err)
		}
		for off := uint64(0); off < super.MAXFILESIZE; off += WSIZE {
			n, err := v.WriteFile(inum, data, off)
			if err != nil {
				panic(err)
			}
			if n != WSIZE {
				panic(fmt.Errorf("disk full after %d files", i))
			}
		}
		inums = append(inums, inum)
	}
	if err := v.Flush(); err != nil {
		panic(err)
	}
	return inums
}

func deletefiles(v *fs.Volume, inums []common.Inum) {
	for _, inum := range inums {
		if err := v.DeleteFile(inum); err != nil {
			panic(err)
		}
	}
}

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

func main() {
	diskfile := flag.String("disk", "", "disk image (empty for MemDisk)")
	nblocks := flag.Uint64("blocks", 10000, "size of the disk in blocks")
	nfiles := flag.Int("files", 100, "number of maximum-size files to write")
	dumpStats := flag.Bool("stats", false, "dump stats to stderr at end")
	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()

	var d disk.Disk
	if *diskfile == "" {
		d = disk.NewMemDisk(*nblocks)
	} else {
		bd, err := blkdev.Open(*diskfile, *nblocks)
		if err != nil {
			panic(err)
		}
		d = bd
	}
	td := timed_disk.New(d)
	defer td.Close()

	v := fs.MkVolume(td, fs.Options{})
	if err := v.Format(); err != nil {
		panic(err)
	}
	if err := v.Mount(); err != nil {
		panic(err)
	}

	data := mkdata(WSIZE)
	deletefiles(v, makefiles(v, 1, data))
	td.ResetStats()

	start := time.Now()
	inums := makefiles(v, *nfiles, data)
	elapsed := time.Now().Sub(start)
	total := uint64(len(inums)) * super.MAXFILESIZE
	tput := float64(total/KB) / 1024 / elapsed.Seconds()
	fmt.Printf("fs-largefile: %v KB throughput %.2f MB/s\n", total/KB, tput)

	if err := v.Close(); err != nil {
		panic(err)
	}
	if *dumpStats {
		td.WriteStats(os.Stderr)
	}
}
