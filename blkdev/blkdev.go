// Package blkdev is a disk backed by a regular file, one 4096-byte block
// after another. Out-of-range block numbers and wrong-sized buffers are
// caller bugs and panic, as in the goose disks; I/O errors panic too,
// since the emulated device has no way to report a partial failure.
package blkdev

import (
	"errors"
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-journal/util"
)

var ErrLocked = errors.New("disk image is in use by another process")

var _ disk.Disk = (*FileDisk)(nil)

type FileDisk struct {
	fd        int
	numBlocks uint64
}

// Open opens (creating if needed) the image at path and sizes it to
// numBlocks blocks, or keeps its current size if numBlocks is 0. It takes an exclusive lock on the file, so a second
// Open of the same image fails with ErrLocked until Close.
func Open(path string, numBlocks uint64) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if numBlocks == 0 {
		numBlocks = uint64(stat.Size) / disk.BlockSize
	}
	sz := int64(numBlocks * disk.BlockSize)
	if (stat.Mode&unix.S_IFMT) == unix.S_IFREG && stat.Size != sz {
		err = unix.Ftruncate(fd, sz)
		if err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}
	util.DPrintf(1, "blkdev: %s, %d blocks\n", path, numBlocks)
	return &FileDisk{fd: fd, numBlocks: numBlocks}, nil
}

func (d *FileDisk) ReadTo(a uint64, buf disk.Block) {
	if uint64(len(buf)) != disk.BlockSize {
		panic("buffer is not block-sized")
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	_, err := unix.Pread(d.fd, buf, int64(a*disk.BlockSize))
	if err != nil {
		panic("read failed: " + err.Error())
	}
}

func (d *FileDisk) Read(a uint64) disk.Block {
	buf := make(disk.Block, disk.BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *FileDisk) Write(a uint64, v disk.Block) {
	if uint64(len(v)) != disk.BlockSize {
		panic(fmt.Errorf("v is not block sized (%d bytes)", len(v)))
	}
	if a >= d.numBlocks {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	_, err := unix.Pwrite(d.fd, v, int64(a*disk.BlockSize))
	if err != nil {
		panic("write failed: " + err.Error())
	}
}

func (d *FileDisk) Size() uint64 {
	return d.numBlocks
}

func (d *FileDisk) Barrier() {
	err := unix.Fsync(d.fd)
	if err != nil {
		panic("file sync failed: " + err.Error())
	}
}

// Close releases the lock and the file.
func (d *FileDisk) Close() {
	err := unix.Close(d.fd)
	if err != nil {
		panic(err)
	}
}
