package fs

import (
	"fmt"
	"io"

	"github.com/rodaine/table"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-journal/common"

	"github.com/mit-pdos/go-simplefs/inode"
	"github.com/mit-pdos/go-simplefs/precond"
	"github.com/mit-pdos/go-simplefs/super"
)

// Debug prints the superblock and every valid inode. It works on an
// unmounted disk by reading it directly; a mounted volume is read through
// its cache, so unflushed changes show up.
func (v *Volume) Debug(w io.Writer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var read func(bn common.Bnum) (disk.Block, error)
	var s *super.FsSuper
	if v.mounted() {
		read = v.bc.Read
		s = v.super
	} else {
		sz := v.d.Size()
		read = func(bn common.Bnum) (disk.Block, error) {
			if bn >= sz {
				return nil, precond.Errorf("Debug", "block %d out of range [0, %d)", bn, sz)
			}
			return v.d.Read(bn), nil
		}
		if sz > 0 {
			s = super.Decode(v.d.Read(0))
		}
	}
	if s == nil || !s.Formatted() {
		fmt.Fprintf(w, "disk unformatted\n")
		return nil
	}

	fmt.Fprintf(w, "superblock:\n")
	fmt.Fprintf(w, "    %d blocks\n", s.Size)
	fmt.Fprintf(w, "    %d inode blocks\n", s.NInodeBlk)
	fmt.Fprintf(w, "    %d inodes\n", s.NInode())

	tbl := table.New("inode", "size", "blocks").WithWriter(w)
	for i := uint64(0); i < s.NInodeBlk; i++ {
		blk, err := read(s.InodeStart() + common.Bnum(i))
		if err != nil {
			return err
		}
		for j := uint64(0); j < super.INODEBLK; j++ {
			inum := common.Inum(i*super.INODEBLK + j)
			ip := inode.Decode(blk[j*super.INODESZ:(j+1)*super.INODESZ], inum)
			if ip.Valid {
				tbl.AddRow(inum, ip.Size, fmt.Sprint(ip.Blocks()))
			}
		}
	}
	tbl.Print()
	return nil
}

// Check re-derives the volume's invariants from the inode table: every
// valid inode's size and pointers agree and stay in the data area, free
// inodes own nothing, no block has two owners, and the free-block map
// counts exactly the blocks no inode owns.
func (v *Volume) Check() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return ErrNotMounted
	}
	s := v.super
	owner := make(map[common.Bnum]common.Inum)
	err := forEachInode(v.st, func(ip *inode.Inode) error {
		if !ip.Valid {
			for i := uint64(0); i < super.NDIRECT; i++ {
				if ip.Direct(i) != common.NULLBNUM {
					return precond.Errorf("Check", "free inode %d points at block %d",
						ip.Inum, ip.Direct(i))
				}
			}
			return nil
		}
		if err := checkInode(s, ip); err != nil {
			return err
		}
		for _, bn := range ip.Blocks() {
			if o, ok := owner[bn]; ok {
				return precond.Errorf("Check", "block %d used by inodes %d and %d",
					bn, o, ip.Inum)
			}
			owner[bn] = ip.Inum
		}
		return nil
	})
	if err != nil {
		return err
	}
	free := s.Size - uint64(s.DataStart()) - uint64(len(owner))
	if v.balloc.NumFree() != free {
		return precond.Errorf("Check", "free map has %d free blocks, inode table implies %d",
			v.balloc.NumFree(), free)
	}
	return nil
}
