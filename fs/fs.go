package fs

import (
	"io"
	"sync"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-simplefs/balloc"
	"github.com/mit-pdos/go-simplefs/bcache"
	"github.com/mit-pdos/go-simplefs/inode"
	"github.com/mit-pdos/go-simplefs/super"
)

type Options struct {
	// CacheSlots overrides the default cache size of a fifth of the disk.
	CacheSlots uint64
	// Seed for the cache's random eviction.
	Seed int64
	// If set, Close writes the cache counters here.
	Stats io.Writer
}

// Volume is a file system on a disk. It is unmounted until Mount
// succeeds and again after Close; all file operations need it mounted.
// A Volume is safe for concurrent use, though operations run one at a
// time.
type Volume struct {
	mu   *sync.Mutex
	d    disk.Disk
	opts Options

	// mount state, nil when unmounted
	super  *super.FsSuper
	bc     *bcache.Bcache
	balloc *balloc.Balloc
	st     *inode.FsState
}

func MkVolume(d disk.Disk, opts Options) *Volume {
	return &Volume{
		mu:   new(sync.Mutex),
		d:    d,
		opts: opts,
	}
}

func (v *Volume) mounted() bool {
	return v.super != nil && v.super.Magic == super.MAGIC
}

func (v *Volume) unmount() {
	v.super = nil
	v.bc = nil
	v.balloc = nil
	v.st = nil
}

// Mounted reports whether the volume is mounted.
func (v *Volume) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounted()
}

// Super returns a copy of the mounted superblock.
func (v *Volume) Super() (super.FsSuper, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return super.FsSuper{}, ErrNotMounted
	}
	return *v.super, nil
}

func (v *Volume) FreeBlocks() (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return 0, ErrNotMounted
	}
	return v.balloc.NumFree(), nil
}

// CacheStats returns the counters of the mounted volume's cache.
func (v *Volume) CacheStats() (bcache.Stats, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return bcache.Stats{}, ErrNotMounted
	}
	return v.bc.Stats(), nil
}
