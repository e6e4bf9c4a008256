package fs

import (
	"fmt"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/inode"
)

// CreateFile takes the first free inode, makes it an empty file, and
// returns its number.
func (v *Volume) CreateFile() (common.Inum, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return 0, ErrNotMounted
	}
	for inum := common.Inum(0); inum < v.super.NInode(); inum++ {
		ip, err := inode.ReadInode(v.st, inum)
		if err != nil {
			return 0, err
		}
		if ip.Valid {
			continue
		}
		ip.Init()
		if err := ip.WriteInode(v.st); err != nil {
			return 0, err
		}
		util.DPrintf(1, "CreateFile -> # %d\n", inum)
		return inum, nil
	}
	return 0, ErrNoFreeInode
}

// DeleteFile frees inum and all of its blocks. Deleting a free inode
// does nothing.
func (v *Volume) DeleteFile(inum common.Inum) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.mounted() {
		return ErrNotMounted
	}
	ip, err := inode.ReadInode(v.st, inum)
	if err != nil {
		return err
	}
	if !ip.Valid {
		return nil
	}
	return ip.Free(v.st)
}

// getFile loads inum and checks that it is a file.
func (v *Volume) getFile(inum common.Inum) (*inode.Inode, error) {
	if !v.mounted() {
		return nil, ErrNotMounted
	}
	ip, err := inode.ReadInode(v.st, inum)
	if err != nil {
		return nil, err
	}
	if !ip.Valid {
		return nil, fmt.Errorf("inode %d: %w", inum, ErrInvalidInode)
	}
	return ip, nil
}

func (v *Volume) FileSize(inum common.Inum) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ip, err := v.getFile(inum)
	if err != nil {
		return 0, err
	}
	return ip.Size, nil
}

// ReadFile reads up to len(data) bytes of inum starting at off and
// returns how many it read; fewer than len(data) means end of file.
func (v *Volume) ReadFile(inum common.Inum, data []byte, off uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ip, err := v.getFile(inum)
	if err != nil {
		return 0, err
	}
	if off > ip.Size {
		return 0, fmt.Errorf("inode %d: %w: offset %d size %d",
			inum, ErrOffsetPastEnd, off, ip.Size)
	}
	return ip.Read(v.st, off, data)
}

// WriteFile writes data to inum starting at off, which may be at most
// the file's size. It returns how many bytes it wrote; fewer than
// len(data) means the disk is full or the file reached its maximum size.
func (v *Volume) WriteFile(inum common.Inum, data []byte, off uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ip, err := v.getFile(inum)
	if err != nil {
		return 0, err
	}
	if off > ip.Size {
		return 0, fmt.Errorf("inode %d: %w: offset %d size %d",
			inum, ErrOffsetPastEnd, off, ip.Size)
	}
	return ip.Write(v.st, off, data)
}
