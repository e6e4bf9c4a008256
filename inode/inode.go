package inode

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/precond"
	"github.com/mit-pdos/go-simplefs/super"
)

const (
	FREE  uint32 = 0
	VALID uint32 = 1
)

type Inode struct {
	// in-memory info:
	Inum common.Inum

	// the on-disk inode:
	Valid bool
	Size  uint64
	blks  []common.Bnum
}

func MkInode(inum common.Inum) *Inode {
	return &Inode{
		Inum: inum,
		blks: make([]common.Bnum, super.NDIRECT),
	}
}

func (ip *Inode) String() string {
	return fmt.Sprintf("# %d v %v sz %d %v", ip.Inum, ip.Valid, ip.Size, ip.blks)
}

func (ip *Inode) Encode() []byte {
	enc := marshal.NewEnc(super.INODESZ)
	if ip.Valid {
		enc.PutInt32(VALID)
	} else {
		enc.PutInt32(FREE)
	}
	enc.PutInt32(uint32(ip.Size))
	for _, bn := range ip.blks {
		enc.PutInt32(uint32(bn))
	}
	return enc.Finish()
}

// Decode reads the INODESZ-byte record in b.
func Decode(b []byte, inum common.Inum) *Inode {
	ip := MkInode(inum)
	dec := marshal.NewDec(b)
	ip.Valid = dec.GetInt32() != FREE
	ip.Size = uint64(dec.GetInt32())
	for i := range ip.blks {
		ip.blks[i] = common.Bnum(dec.GetInt32())
	}
	return ip
}

// NBlocks is the number of blocks the inode's size covers.
func (ip *Inode) NBlocks() uint64 {
	return util.Min(util.RoundUp(ip.Size, disk.BlockSize), super.NDIRECT)
}

// Blocks returns the block numbers holding the file's data, in order.
func (ip *Inode) Blocks() []common.Bnum {
	n := ip.NBlocks()
	blks := make([]common.Bnum, n)
	copy(blks, ip.blks[:n])
	return blks
}

// Direct returns the i-th direct pointer, whether or not the size covers it.
func (ip *Inode) Direct(i uint64) common.Bnum {
	return ip.blks[i]
}

func checkInum(op string, st *FsState, inum common.Inum) error {
	if inum >= st.Super.NInode() {
		return precond.Errorf(op, "inode %d out of range [0, %d)", inum, st.Super.NInode())
	}
	return nil
}

func ReadInode(st *FsState, inum common.Inum) (*Inode, error) {
	if err := checkInum("ReadInode", st, inum); err != nil {
		return nil, err
	}
	blkno, off := st.Super.Inum2Blk(inum)
	blk, err := st.Cache.Read(blkno)
	if err != nil {
		return nil, err
	}
	ip := Decode(blk[off:off+super.INODESZ], inum)
	util.DPrintf(10, "ReadInode %v\n", ip)
	return ip, nil
}

// WriteInode stores ip in its inode-table block, leaving the other
// records in that block as they are.
func (ip *Inode) WriteInode(st *FsState) error {
	if err := checkInum("WriteInode", st, ip.Inum); err != nil {
		return err
	}
	blkno, off := st.Super.Inum2Blk(ip.Inum)
	blk, err := st.Cache.Read(blkno)
	if err != nil {
		return err
	}
	copy(blk[off:off+super.INODESZ], ip.Encode())
	util.DPrintf(5, "WriteInode %v\n", ip)
	return st.Cache.Write(blkno, blk)
}

// Init turns ip into an empty, valid file. The caller writes it.
func (ip *Inode) Init() {
	ip.Valid = true
	ip.Size = 0
	for i := range ip.blks {
		ip.blks[i] = common.NULLBNUM
	}
}

// Free gives the inode's blocks back to the allocator and writes the
// inode out as free.
func (ip *Inode) Free(st *FsState) error {
	util.DPrintf(1, "Free %v\n", ip)
	for _, bn := range ip.Blocks() {
		if bn == common.NULLBNUM {
			continue
		}
		if err := st.Balloc.FreeBlock(bn); err != nil {
			return err
		}
	}
	ip.Valid = false
	ip.Size = 0
	for i := range ip.blks {
		ip.blks[i] = common.NULLBNUM
	}
	return ip.WriteInode(st)
}

// Map logical block number bn to a physical block number, allocating a
// block if none exists for bn. Returns NULLBNUM past the last direct
// pointer or when the disk is full.
func (ip *Inode) bmap(st *FsState, bn uint64) (common.Bnum, bool) {
	if bn >= super.NDIRECT {
		return common.NULLBNUM, false
	}
	var alloc = false
	if ip.blks[bn] == common.NULLBNUM {
		ip.blks[bn] = st.Balloc.AllocBlock()
		if ip.blks[bn] != common.NULLBNUM {
			alloc = true
		}
	}
	return ip.blks[bn], alloc
}

// Read copies file data starting at offset into data and returns the
// number of bytes copied, which is less than len(data) at end of file.
func (ip *Inode) Read(st *FsState, offset uint64, data []byte) (uint64, error) {
	if offset >= ip.Size {
		return 0, nil
	}
	count := util.Min(uint64(len(data)), ip.Size-offset)
	util.DPrintf(5, "Read: off %d cnt %d\n", offset, count)
	var n uint64 = 0
	var off = offset
	for boff := off / disk.BlockSize; n < count; boff++ {
		byteoff := off % disk.BlockSize
		nbytes := util.Min(disk.BlockSize-byteoff, count-n)
		if boff >= super.NDIRECT || ip.blks[boff] == common.NULLBNUM {
			return n, precond.Errorf("Read", "inode %d has no block %d below size %d",
				ip.Inum, boff, ip.Size)
		}
		blk, err := st.Cache.Read(ip.blks[boff])
		if err != nil {
			return n, err
		}
		copy(data[n:n+nbytes], blk[byteoff:byteoff+nbytes])
		n += nbytes
		off += nbytes
	}
	return n, nil
}

// Write copies data into the file starting at offset, which must not be
// past the end of the file. It allocates blocks as the file grows and
// stops early, without an error, when the disk is full or the file has
// reached MAXFILESIZE. Returns the number of bytes written.
func (ip *Inode) Write(st *FsState, offset uint64, data []byte) (uint64, error) {
	var cnt uint64 = 0
	var off = offset
	var alloc = false
	n := uint64(len(data))

	util.DPrintf(5, "Write: off %d cnt %d\n", offset, n)
	if offset > ip.Size {
		return 0, precond.Errorf("Write", "offset %d past size %d", offset, ip.Size)
	}
	for boff := off / disk.BlockSize; cnt < n; boff++ {
		blkno, new := ip.bmap(st, boff)
		if blkno == common.NULLBNUM {
			break
		}
		if new {
			alloc = true
		}
		byteoff := off % disk.BlockSize
		nbytes := util.Min(disk.BlockSize-byteoff, n-cnt)
		var blk disk.Block
		if new || (byteoff == 0 && nbytes == disk.BlockSize) {
			// nothing in the block survives
			blk = make(disk.Block, disk.BlockSize)
		} else {
			b, err := st.Cache.Read(blkno)
			if err != nil {
				return cnt, err
			}
			blk = b
		}
		copy(blk[byteoff:byteoff+nbytes], data[cnt:cnt+nbytes])
		if err := st.Cache.Write(blkno, blk); err != nil {
			return cnt, err
		}
		cnt += nbytes
		off += nbytes
	}
	util.DPrintf(1, "Write: off %d cnt %d size %d\n", offset, cnt, ip.Size)
	if offset+cnt > ip.Size {
		ip.Size = offset + cnt
	}
	if alloc || cnt > 0 {
		if err := ip.WriteInode(st); err != nil {
			return cnt, err
		}
	}
	return cnt, nil
}
