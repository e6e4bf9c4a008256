package fs

import (
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/super"
)

//
// mkfs
//

// Format writes an empty file system to the disk, destroying whatever
// was there. A tenth of the disk goes to the inode table, every inode
// starting out free. Format does not mount.
func (v *Volume) Format() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mounted() {
		return ErrAlreadyMounted
	}
	sz := v.d.Size()
	if sz < super.MINBLOCKS {
		return ErrVolumeTooSmall
	}
	if sz > super.MAXBLOCKS {
		return ErrVolumeTooLarge
	}

	s := super.MkFsSuper(sz)
	util.DPrintf(1, "Format: %v\n", s)
	v.d.Write(0, s.Encode())

	zero := make(disk.Block, disk.BlockSize)
	for bn := s.InodeStart(); bn < s.DataStart(); bn++ {
		v.d.Write(bn, zero)
	}
	v.d.Barrier()
	return nil
}
