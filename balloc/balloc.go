package balloc

import (
	"github.com/mit-pdos/go-journal/alloc"
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/precond"
)

// Balloc is the free-block map of a mounted volume, one bit per block.
// It lives only in memory: mount rebuilds it from the inode table, so
// nothing here is ever written to disk.
//
// Block 0 always holds the superblock and doubles as the "no block"
// value, so it is never handed out.
type Balloc struct {
	a       *alloc.Alloc
	nblocks uint64
}

func MkBalloc(nblocks uint64) *Balloc {
	nbytes := util.RoundUp(nblocks, 8)
	a := alloc.MkAlloc(make([]byte, nbytes))
	// the tail of the last byte doesn't correspond to any block
	for n := nblocks; n < nbytes*8; n++ {
		a.MarkUsed(n)
	}
	a.MarkUsed(0)
	return &Balloc{a: a, nblocks: nblocks}
}

func (b *Balloc) check(op string, bn common.Bnum) error {
	if bn >= b.nblocks {
		return precond.Errorf(op, "block %d out of range [0, %d)", bn, b.nblocks)
	}
	return nil
}

// MarkUsed records that bn is in use by the volume.
func (b *Balloc) MarkUsed(bn common.Bnum) error {
	if err := b.check("MarkUsed", bn); err != nil {
		return err
	}
	b.a.MarkUsed(bn)
	return nil
}

// AllocBlock returns a free block and marks it used, or NULLBNUM if the
// disk is full.
func (b *Balloc) AllocBlock() common.Bnum {
	bn := common.Bnum(b.a.AllocNum())
	util.DPrintf(5, "AllocBlock -> %d\n", bn)
	return bn
}

func (b *Balloc) FreeBlock(bn common.Bnum) error {
	if err := b.check("FreeBlock", bn); err != nil {
		return err
	}
	if bn == common.NULLBNUM {
		return precond.Errorf("FreeBlock", "block 0 holds the superblock")
	}
	util.DPrintf(5, "FreeBlock %d\n", bn)
	b.a.FreeNum(bn)
	return nil
}

func (b *Balloc) NumFree() uint64 {
	return b.a.NumFree()
}

func (b *Balloc) Size() uint64 {
	return b.nblocks
}
