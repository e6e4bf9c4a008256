package fs

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-journal/common"

	"github.com/mit-pdos/go-simplefs/inode"
	"github.com/mit-pdos/go-simplefs/precond"
	"github.com/mit-pdos/go-simplefs/super"
)

func mkData(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

func randData(rnd *rand.Rand, sz uint64) []byte {
	data := make([]byte, sz)
	rnd.Read(data)
	return data
}

type TestState struct {
	t *testing.T
	d disk.Disk
	v *Volume
}

func newTest(t *testing.T, nblocks uint64, opts Options) *TestState {
	ts := &TestState{t: t, d: disk.NewMemDisk(nblocks)}
	ts.v = MkVolume(ts.d, opts)
	require.NoError(t, ts.v.Format())
	require.NoError(t, ts.v.Mount())
	return ts
}

func (ts *TestState) Create() common.Inum {
	inum, err := ts.v.CreateFile()
	require.NoError(ts.t, err)
	return inum
}

func (ts *TestState) Write(inum common.Inum, off uint64, data []byte) uint64 {
	n, err := ts.v.WriteFile(inum, data, off)
	require.NoError(ts.t, err)
	return n
}

func (ts *TestState) Read(inum common.Inum, off uint64, sz uint64) []byte {
	buf := make([]byte, sz)
	n, err := ts.v.ReadFile(inum, buf, off)
	require.NoError(ts.t, err)
	return buf[:n]
}

func (ts *TestState) Size(inum common.Inum) uint64 {
	sz, err := ts.v.FileSize(inum)
	require.NoError(ts.t, err)
	return sz
}

func (ts *TestState) Remount() {
	require.NoError(ts.t, ts.v.Close())
	require.NoError(ts.t, ts.v.Mount())
}

func (ts *TestState) Check() {
	assert.NoError(ts.t, ts.v.Check())
}

func TestHelloWorld(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 64, Options{})
	inum := ts.Create()
	n := ts.Write(inum, 0, []byte("hello world"))
	assert.Equal(uint64(11), n)
	assert.Equal(uint64(11), ts.Size(inum))
	assert.Equal([]byte("hello world"), ts.Read(inum, 0, 11))
	ts.Check()
}

func TestTwoBlocks(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 64, Options{})
	inum := ts.Create()
	data := mkData(5000)
	assert.Equal(uint64(5000), ts.Write(inum, 0, data))
	assert.Equal(uint64(5000), ts.Size(inum))
	assert.Equal(data, ts.Read(inum, 0, 5000))

	ts.Remount()
	assert.Equal(uint64(5000), ts.Size(inum))
	assert.Equal(data, ts.Read(inum, 0, 5000), "data survives remount")
	ts.Check()
}

func TestDeleteThenSize(t *testing.T) {
	ts := newTest(t, 64, Options{})
	inum := ts.Create()
	require.NoError(t, ts.v.DeleteFile(inum))
	_, err := ts.v.FileSize(inum)
	assert.True(t, errors.Is(err, ErrInvalidInode))
	assert.NoError(t, ts.v.DeleteFile(inum), "deleting a free inode does nothing")
	ts.Check()
}

func TestNotMounted(t *testing.T) {
	assert := assert.New(t)
	d := disk.NewMemDisk(64)
	v := MkVolume(d, Options{})
	buf := make([]byte, 10)
	_, err := v.ReadFile(0, buf, 0)
	assert.Equal(ErrNotMounted, err)
	_, err = v.WriteFile(0, buf, 0)
	assert.Equal(ErrNotMounted, err)
	_, err = v.CreateFile()
	assert.Equal(ErrNotMounted, err)
	assert.Equal(ErrNotMounted, v.DeleteFile(0))
	_, err = v.FileSize(0)
	assert.Equal(ErrNotMounted, err)
	assert.Equal(ErrNotMounted, v.Flush())
	assert.Equal(ErrNotMounted, v.Close())
	assert.Equal(ErrNotMounted, v.Check())
	_, err = v.FreeBlocks()
	assert.Equal(ErrNotMounted, err)
	assert.Equal(make(disk.Block, disk.BlockSize), d.Read(0), "disk untouched")
}

func TestEvictionTransparency(t *testing.T) {
	assert := assert.New(t)
	// 3 cache slots for a working set of many more blocks
	ts := newTest(t, 100, Options{CacheSlots: 3, Seed: 5})
	var inums []common.Inum
	var datas [][]byte
	for i := 0; i < 5; i++ {
		inum := ts.Create()
		data := mkData(uint64(3*4096 + i))
		data[0] = byte(i)
		assert.Equal(uint64(len(data)), ts.Write(inum, 0, data))
		inums = append(inums, inum)
		datas = append(datas, data)
	}
	s, err := ts.v.CacheStats()
	require.NoError(t, err)
	assert.True(s.Evictions > 0, "working set exceeds the cache")

	for i, inum := range inums {
		assert.Equal(datas[i], ts.Read(inum, 0, uint64(len(datas[i]))))
	}
	require.NoError(t, ts.v.Flush())

	// a fresh handle sees exactly what was flushed
	v2 := MkVolume(ts.d, Options{})
	require.NoError(t, ts.v.Close())
	require.NoError(t, v2.Mount())
	for i, inum := range inums {
		buf := make([]byte, len(datas[i]))
		n, err := v2.ReadFile(inum, buf, 0)
		require.NoError(t, err)
		assert.Equal(uint64(len(datas[i])), n)
		assert.Equal(datas[i], buf)
	}
}

func TestCloseWritesBack(t *testing.T) {
	assert := assert.New(t)
	stats := new(bytes.Buffer)
	ts := newTest(t, 64, Options{Stats: stats})
	inum := ts.Create()
	ts.Write(inum, 0, []byte("dirty"))
	require.NoError(t, ts.v.Close())
	assert.Contains(stats.String(), "hits")

	blk, off := super.MkFsSuper(64).Inum2Blk(inum)
	b := ts.d.Read(blk)
	ip := inode.Decode(b[off:off+super.INODESZ], inum)
	assert.True(ip.Valid)
	assert.Equal(uint64(5), ip.Size)
	assert.Equal([]byte("dirty"), ts.d.Read(ip.Direct(0))[:5])
}

func TestSizeMonotonic(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 200, Options{})
	rnd := rand.New(rand.NewSource(1))
	inum := ts.Create()
	shadow := []byte{}
	for i := 0; i < 200; i++ {
		prev := ts.Size(inum)
		off := uint64(rnd.Int63n(int64(prev) + 1))
		data := randData(rnd, uint64(rnd.Intn(6000)))
		n := ts.Write(inum, off, data)
		assert.Equal(maxu(prev, off+n), ts.Size(inum))

		end := off + n
		if end > uint64(len(shadow)) {
			shadow = append(shadow, make([]byte, end-uint64(len(shadow)))...)
		}
		copy(shadow[off:end], data[:n])
	}
	assert.Equal(shadow, ts.Read(inum, 0, super.MAXFILESIZE))
	ts.Check()
}

func maxu(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func TestReadPastEnd(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 64, Options{})
	inum := ts.Create()
	ts.Write(inum, 0, mkData(100))

	assert.Equal(mkData(100)[40:], ts.Read(inum, 40, 1000), "short read at end of file")
	assert.Equal([]byte{}, ts.Read(inum, 100, 10), "read at end of file")

	buf := make([]byte, 10)
	_, err := ts.v.ReadFile(inum, buf, 101)
	assert.True(errors.Is(err, ErrOffsetPastEnd))
	_, err = ts.v.WriteFile(inum, buf, 101)
	assert.True(errors.Is(err, ErrOffsetPastEnd))
	assert.Equal(uint64(100), ts.Size(inum))
}

func TestInvalidInode(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 64, Options{})
	buf := make([]byte, 10)
	_, err := ts.v.ReadFile(5, buf, 0)
	assert.True(errors.Is(err, ErrInvalidInode))
	_, err = ts.v.WriteFile(5, buf, 0)
	assert.True(errors.Is(err, ErrInvalidInode))
}

func TestOutOfRange(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 64, Options{})
	n := common.Inum(7 * 64)
	_, err := ts.v.FileSize(n)
	assert.True(precond.Is(err))
	assert.True(precond.Is(ts.v.DeleteFile(n)))
	_, err = ts.v.ReadFile(n, make([]byte, 1), 0)
	assert.True(precond.Is(err))
	_, err = ts.v.FileSize(n - 1)
	assert.True(errors.Is(err, ErrInvalidInode), "last inode is in range")
}

func TestBoundary(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 100, Options{})
	inum := ts.Create()
	data := mkData(super.MAXFILESIZE + 1)
	n := ts.Write(inum, 0, data)
	assert.Less(n, uint64(len(data)))
	assert.Equal(super.MAXFILESIZE, n)
	assert.Equal(super.MAXFILESIZE, ts.Size(inum))
	assert.Equal(data[:n], ts.Read(inum, 0, super.MAXFILESIZE+1))
	ts.Check()
}

func TestDiskFull(t *testing.T) {
	assert := assert.New(t)
	// 40 blocks: superblock, 4 inode blocks, 35 data blocks
	ts := newTest(t, 40, Options{})
	free, err := ts.v.FreeBlocks()
	require.NoError(t, err)
	assert.Equal(uint64(35), free)

	a := ts.Create()
	b := ts.Create()
	c := ts.Create()
	assert.Equal(super.MAXFILESIZE, ts.Write(a, 0, mkData(super.MAXFILESIZE)))
	assert.Equal(super.MAXFILESIZE, ts.Write(b, 0, mkData(super.MAXFILESIZE)))
	n := ts.Write(c, 0, mkData(super.MAXFILESIZE))
	assert.Equal(7*disk.BlockSize, n, "partial write, not an error")
	assert.Equal(uint64(0), ts.Write(c, n, []byte{1}))
	ts.Check()

	// deleting a makes its blocks available again
	require.NoError(t, ts.v.DeleteFile(a))
	d := ts.Create()
	assert.Equal(a, d, "first free inode is reused")
	assert.Equal(super.MAXFILESIZE, ts.Write(d, 0, mkData(super.MAXFILESIZE)))
	free, err = ts.v.FreeBlocks()
	require.NoError(t, err)
	assert.Equal(uint64(0), free)
	ts.Check()
	assert.Equal(mkData(super.MAXFILESIZE), ts.Read(b, 0, super.MAXFILESIZE), "b untouched")
}

func TestBitmapAfterMount(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 128, Options{})
	rnd := rand.New(rand.NewSource(2))
	used := uint64(0)
	for i := 0; i < 6; i++ {
		inum := ts.Create()
		sz := uint64(rnd.Intn(int(super.MAXFILESIZE)))
		ts.Write(inum, 0, randData(rnd, sz))
		used += (sz + disk.BlockSize - 1) / disk.BlockSize
		if i%2 == 1 {
			require.NoError(t, ts.v.DeleteFile(inum))
			used -= (sz + disk.BlockSize - 1) / disk.BlockSize
		}
	}
	ts.Remount()
	s, err := ts.v.Super()
	require.NoError(t, err)
	free, err := ts.v.FreeBlocks()
	require.NoError(t, err)
	assert.Equal(s.Size-uint64(s.DataStart())-used, free)
	ts.Check()
}

func TestCreateAll(t *testing.T) {
	assert := assert.New(t)
	ts := newTest(t, 10, Options{})
	for i := 0; i < 64; i++ {
		assert.Equal(common.Inum(i), ts.Create())
	}
	_, err := ts.v.CreateFile()
	assert.Equal(ErrNoFreeInode, err)
	require.NoError(t, ts.v.DeleteFile(17))
	assert.Equal(common.Inum(17), ts.Create())
}

func TestRandomOps(t *testing.T) {
	ts := newTest(t, 150, Options{CacheSlots: 4, Seed: 9})
	rnd := rand.New(rand.NewSource(11))
	shadow := make(map[common.Inum][]byte)
	for i := 0; i < 300; i++ {
		switch op := rnd.Intn(10); {
		case op == 0 || len(shadow) == 0:
			inum := ts.Create()
			shadow[inum] = []byte{}
		case op == 1:
			for inum := range shadow {
				require.NoError(t, ts.v.DeleteFile(inum))
				delete(shadow, inum)
				break
			}
		case op < 6:
			for inum, data := range shadow {
				off := uint64(rnd.Intn(len(data) + 1))
				w := randData(rnd, uint64(rnd.Intn(9000)))
				n := ts.Write(inum, off, w)
				if end := off + n; end > uint64(len(data)) {
					data = append(data, make([]byte, end-uint64(len(data)))...)
				}
				copy(data[off:], w[:n])
				shadow[inum] = data
				break
			}
		default:
			for inum, data := range shadow {
				assert.Equal(t, data, ts.Read(inum, 0, super.MAXFILESIZE), "inode %d", inum)
				break
			}
		}
		if i%50 == 0 {
			ts.Remount()
			ts.Check()
		}
	}
	for inum, data := range shadow {
		assert.Equal(t, data, ts.Read(inum, 0, super.MAXFILESIZE), "inode %d", inum)
	}
	ts.Check()
}
