package bcache

import (
	"io"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/cache"
	"github.com/mit-pdos/go-simplefs/precond"
	"github.com/mit-pdos/go-simplefs/util/stats"
)

//
// Write-back block cache
//

// Stats are cumulative counters since the cache was made.
type Stats struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64 // dirty or clean slots rebound to another block
	WriteBacks uint64 // dirty slots written to disk
}

type Bcache struct {
	d       disk.Disk
	nblocks uint64
	bcache  *cache.Cache
	stats   Stats
	closed  bool
}

// MkBcache makes a cache of sz slots in front of d. seed fixes the
// sequence of random eviction choices.
func MkBcache(d disk.Disk, sz uint64, seed int64) *Bcache {
	return &Bcache{
		d:       d,
		nblocks: d.Size(),
		bcache:  cache.MkCache(sz, seed),
	}
}

func (bc *Bcache) check(op string, bn common.Bnum) error {
	if bc.closed {
		return precond.Errorf(op, "cache is closed")
	}
	if bn >= bc.nblocks {
		return precond.Errorf(op, "block %d out of range [0, %d)", bn, bc.nblocks)
	}
	return nil
}

func (bc *Bcache) writeBack(slot *cache.Cslot) {
	util.DPrintf(5, "writeBack: slot %d blk %d\n", slot.Index, slot.Id)
	bc.d.Write(slot.Id, slot.Obj.(disk.Block))
	slot.Dirty = false
	bc.stats.WriteBacks++
}

// victim returns a slot bound to bn whose buffer still holds whatever the
// previous owner left in it.
func (bc *Bcache) victim(bn common.Bnum) *cache.Cslot {
	slot := bc.bcache.Victim()
	if slot.Bound {
		if slot.Dirty {
			bc.writeBack(slot)
		}
		bc.stats.Evictions++
	}
	if slot.Obj == nil {
		slot.Obj = make(disk.Block, disk.BlockSize)
	}
	bc.bcache.Bind(slot, bn)
	return slot
}

// Read returns a copy of block bn.
func (bc *Bcache) Read(bn common.Bnum) (disk.Block, error) {
	if err := bc.check("bcache.Read", bn); err != nil {
		return nil, err
	}
	bc.stats.Reads++
	slot := bc.bcache.Lookup(bn)
	if slot != nil {
		bc.stats.Hits++
	} else {
		bc.stats.Misses++
		slot = bc.victim(bn)
		bc.d.ReadTo(bn, slot.Obj.(disk.Block))
	}
	blk := make(disk.Block, disk.BlockSize)
	copy(blk, slot.Obj.(disk.Block))
	return blk, nil
}

// Write replaces block bn in the cache. The disk is only updated when the
// slot is evicted or flushed.
func (bc *Bcache) Write(bn common.Bnum, b disk.Block) error {
	if err := bc.check("bcache.Write", bn); err != nil {
		return err
	}
	if uint64(len(b)) != disk.BlockSize {
		return precond.Errorf("bcache.Write", "buffer is %d bytes, not a block", len(b))
	}
	bc.stats.Writes++
	slot := bc.bcache.Lookup(bn)
	if slot != nil {
		bc.stats.Hits++
	} else {
		bc.stats.Misses++
		slot = bc.victim(bn)
	}
	copy(slot.Obj.(disk.Block), b)
	slot.Dirty = true
	return nil
}

// Flush writes every dirty slot back, in slot order, and waits for the
// disk to persist them.
func (bc *Bcache) Flush() error {
	if bc.closed {
		return precond.Errorf("bcache.Flush", "cache is closed")
	}
	n := 0
	for i := uint64(0); i < bc.bcache.Size(); i++ {
		slot := bc.bcache.Slot(i)
		if slot.Bound && slot.Dirty {
			bc.writeBack(slot)
			n++
		}
	}
	bc.d.Barrier()
	util.DPrintf(1, "Flush: wrote %d blocks\n", n)
	return nil
}

// Close flushes and drops every slot. The disk itself stays open.
func (bc *Bcache) Close() error {
	if err := bc.Flush(); err != nil {
		return err
	}
	s := bc.stats
	util.DPrintf(1, "bcache: reads %d writes %d hits %d misses %d\n",
		s.Reads, s.Writes, s.Hits, s.Misses)
	bc.bcache.Reset()
	bc.closed = true
	return nil
}

// Size returns the number of blocks of the underlying disk.
func (bc *Bcache) Size() uint64 {
	return bc.nblocks
}

func (bc *Bcache) Slots() uint64 {
	return bc.bcache.Size()
}

func (bc *Bcache) Stats() Stats {
	return bc.stats
}

var statNames = []string{"reads", "writes", "hits", "misses", "evictions", "writebacks"}

func (bc *Bcache) WriteStats(w io.Writer) {
	s := bc.stats
	stats.WriteCounters(statNames,
		[]uint64{s.Reads, s.Writes, s.Hits, s.Misses, s.Evictions, s.WriteBacks}, w)
}
