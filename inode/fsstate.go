package inode

import (
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-journal/common"

	"github.com/mit-pdos/go-simplefs/super"
)

// Cache is the cache-aware block interface the inode layer goes through.
type Cache interface {
	Read(bn common.Bnum) (disk.Block, error)
	Write(bn common.Bnum, b disk.Block) error
}

// Allocator hands out and takes back data blocks.
type Allocator interface {
	AllocBlock() common.Bnum
	FreeBlock(bn common.Bnum) error
}

// FsState is what inode operations need from a mounted volume.
type FsState struct {
	Super  *super.FsSuper
	Cache  Cache
	Balloc Allocator
}

func MkFsState(s *super.FsSuper, c Cache, balloc Allocator) *FsState {
	st := &FsState{
		Super:  s,
		Cache:  c,
		Balloc: balloc,
	}
	return st
}
