package super

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"
)

const (
	MAGIC uint32 = 0xF0F03410

	INODESZ  uint64 = 64 // on-disk size
	INODEBLK uint64 = disk.BlockSize / INODESZ
	NDIRECT  uint64 = 14 // # blk in an inode's blks array

	MAXFILESIZE uint64 = NDIRECT * disk.BlockSize

	// every on-disk field is 32 bits wide
	MAXBLOCKS uint64 = 1<<32 - 1
	MINBLOCKS uint64 = 2 // superblock and one inode-table block
)

// FsSuper is the decoded superblock. Block 0 holds it; blocks
// 1..NInodeBlk hold the inode table; the rest are data blocks.
type FsSuper struct {
	Magic     uint32
	Size      uint64 // in blocks
	NInodeBlk uint64
	nInode    uint64
}

func nInodeBlk(sz uint64) uint64 {
	return util.RoundUp(sz, 10)
}

// MkFsSuper computes the geometry for a device of sz blocks: a tenth of
// the blocks (rounded up) hold the inode table.
func MkFsSuper(sz uint64) *FsSuper {
	ninodeblk := nInodeBlk(sz)
	return &FsSuper{
		Magic:     MAGIC,
		Size:      sz,
		NInodeBlk: ninodeblk,
		nInode:    ninodeblk * INODEBLK,
	}
}

func (fs *FsSuper) Encode() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt32(fs.Magic)
	enc.PutInt32(uint32(fs.Size))
	enc.PutInt32(uint32(fs.NInodeBlk))
	enc.PutInt32(uint32(fs.nInode))
	return enc.Finish()
}

func Decode(blk disk.Block) *FsSuper {
	dec := marshal.NewDec(blk)
	fs := &FsSuper{}
	fs.Magic = dec.GetInt32()
	fs.Size = uint64(dec.GetInt32())
	fs.NInodeBlk = uint64(dec.GetInt32())
	fs.nInode = uint64(dec.GetInt32())
	return fs
}

// Formatted reports whether the magic number matches.
func (fs *FsSuper) Formatted() bool {
	return fs.Magic == MAGIC
}

// Consistent reports whether the stored inode-table geometry agrees with
// the formulas for the stored size.
func (fs *FsSuper) Consistent() bool {
	return fs.Size >= MINBLOCKS &&
		fs.NInodeBlk == nInodeBlk(fs.Size) &&
		fs.nInode == fs.NInodeBlk*INODEBLK
}

func (fs *FsSuper) InodeStart() common.Bnum {
	return common.Bnum(1)
}

func (fs *FsSuper) DataStart() common.Bnum {
	return fs.InodeStart() + common.Bnum(fs.NInodeBlk)
}

func (fs *FsSuper) MaxBnum() common.Bnum {
	return common.Bnum(fs.Size)
}

func (fs *FsSuper) NInode() common.Inum {
	return common.Inum(fs.nInode)
}

// Inum2Blk returns the inode-table block holding inum and the byte offset
// of its record within that block.
func (fs *FsSuper) Inum2Blk(inum common.Inum) (common.Bnum, uint64) {
	blk := fs.InodeStart() + common.Bnum(uint64(inum)/INODEBLK)
	off := (uint64(inum) % INODEBLK) * INODESZ
	return blk, off
}

// CacheSize is the default number of cache slots: a fifth of the blocks,
// rounded up.
func (fs *FsSuper) CacheSize() uint64 {
	return util.RoundUp(fs.Size, 5)
}

func (fs *FsSuper) String() string {
	return fmt.Sprintf("magic %#x blocks %d inode blocks %d inodes %d",
		fs.Magic, fs.Size, fs.NInodeBlk, fs.nInode)
}
