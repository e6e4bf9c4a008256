package fs

import (
	"fmt"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/balloc"
	"github.com/mit-pdos/go-simplefs/bcache"
	"github.com/mit-pdos/go-simplefs/inode"
	"github.com/mit-pdos/go-simplefs/precond"
	"github.com/mit-pdos/go-simplefs/super"
)

// Mount checks that the disk holds a file system of the right size,
// builds the block cache, and rebuilds the free-block map from the inode
// table.
func (v *Volume) Mount() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mounted() {
		return ErrAlreadyMounted
	}
	sz := v.d.Size()
	if sz < super.MINBLOCKS {
		return ErrInvalidVolume
	}
	s := super.Decode(v.d.Read(0))
	if !s.Formatted() {
		return ErrInvalidVolume
	}
	if s.Size != sz {
		return fmt.Errorf("%w: super %d blocks, disk %d blocks",
			ErrSizeMismatch, s.Size, sz)
	}
	if !s.Consistent() {
		return fmt.Errorf("%w: bad geometry: %v", ErrInvalidVolume, s)
	}

	nslots := v.opts.CacheSlots
	if nslots == 0 {
		nslots = s.CacheSize()
	}
	bc := bcache.MkBcache(v.d, nslots, v.opts.Seed)
	ba := balloc.MkBalloc(s.Size)
	for bn := common.Bnum(0); bn < s.DataStart(); bn++ {
		ba.MarkUsed(bn)
	}
	st := inode.MkFsState(s, bc, ba)
	if err := markInodeBlocks(st, ba); err != nil {
		// nothing is dirty; the scan only reads
		bc.Close()
		return fmt.Errorf("Mount: %w", err)
	}

	v.super = s
	v.bc = bc
	v.balloc = ba
	v.st = st
	util.DPrintf(1, "Mount: %v, %d cache slots, %d free blocks\n",
		s, nslots, ba.NumFree())
	return nil
}

// markInodeBlocks marks the blocks of every valid inode as used,
// refusing inode tables that point outside the data area or share a
// block between two inodes.
func markInodeBlocks(st *inode.FsState, ba *balloc.Balloc) error {
	owner := make(map[common.Bnum]common.Inum)
	return forEachInode(st, func(ip *inode.Inode) error {
		if !ip.Valid {
			return nil
		}
		if err := checkInode(st.Super, ip); err != nil {
			return err
		}
		for _, bn := range ip.Blocks() {
			if o, ok := owner[bn]; ok {
				return precond.Errorf("mount", "block %d used by inodes %d and %d",
					bn, o, ip.Inum)
			}
			owner[bn] = ip.Inum
			if err := ba.MarkUsed(bn); err != nil {
				return err
			}
		}
		return nil
	})
}

// checkInode verifies a valid inode's size and pointers against the
// volume geometry.
func checkInode(s *super.FsSuper, ip *inode.Inode) error {
	if ip.Size > super.MAXFILESIZE {
		return precond.Errorf("check", "inode %d size %d exceeds %d",
			ip.Inum, ip.Size, super.MAXFILESIZE)
	}
	for i := uint64(0); i < super.NDIRECT; i++ {
		bn := ip.Direct(i)
		if i >= ip.NBlocks() {
			if bn != common.NULLBNUM {
				return precond.Errorf("check", "inode %d has block %d past its size",
					ip.Inum, bn)
			}
			continue
		}
		if bn < s.DataStart() || bn >= s.MaxBnum() {
			return precond.Errorf("check", "inode %d block %d outside data area [%d, %d)",
				ip.Inum, bn, s.DataStart(), s.MaxBnum())
		}
	}
	return nil
}

func forEachInode(st *inode.FsState, f func(ip *inode.Inode) error) error {
	for inum := common.Inum(0); inum < st.Super.NInode(); inum++ {
		ip, err := inode.ReadInode(st, inum)
		if err != nil {
			return err
		}
		if err := f(ip); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes all cached changes to disk.
func (v *Volume) Flush() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return ErrNotMounted
	}
	return v.bc.Flush()
}

// Close flushes the cache and unmounts the volume. The disk stays open;
// the volume can be mounted again.
func (v *Volume) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return ErrNotMounted
	}
	err := v.bc.Close()
	if v.opts.Stats != nil {
		v.bc.WriteStats(v.opts.Stats)
	}
	v.unmount()
	return err
}
