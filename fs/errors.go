package fs

import "errors"

var (
	ErrNotMounted     = errors.New("volume not mounted")
	ErrAlreadyMounted = errors.New("volume already mounted")
	ErrInvalidVolume  = errors.New("no valid file system on disk")
	ErrSizeMismatch   = errors.New("file system size and disk size differ")
	ErrVolumeTooSmall = errors.New("disk too small for a file system")
	ErrVolumeTooLarge = errors.New("disk too large for 32-bit block numbers")
	ErrNoFreeInode    = errors.New("no free inode")
	ErrInvalidInode   = errors.New("inode is not valid")
	ErrOffsetPastEnd  = errors.New("offset past end of file")
)
