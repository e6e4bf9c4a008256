// Package timed_disk wraps a disk and records the latency of each
// operation, for the stats report printed when a volume is closed.
package timed_disk

import (
	"io"
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-simplefs/util/stats"
)

type Disk struct {
	d   disk.Disk
	ops [3]stats.Op
}

func New(d disk.Disk) *Disk {
	return &Disk{d: d}
}

const (
	readOp int = iota
	writeOp
	barrierOp
)

var ops = []string{"disk.Read", "disk.Write", "disk.Barrier"}

var _ disk.Disk = &Disk{}

func (d *Disk) ReadTo(a uint64, b disk.Block) {
	defer d.ops[readOp].Record(time.Now())
	d.d.ReadTo(a, b)
}

func (d *Disk) Read(a uint64) disk.Block {
	buf := make(disk.Block, disk.BlockSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *Disk) Write(a uint64, b disk.Block) {
	defer d.ops[writeOp].Record(time.Now())
	d.d.Write(a, b)
}

func (d *Disk) Barrier() {
	defer d.ops[barrierOp].Record(time.Now())
	d.d.Barrier()
}

func (d *Disk) Size() uint64 {
	return d.d.Size()
}

func (d *Disk) Close() {
	d.d.Close()
}

// Reads and Writes count block transfers that reached the device.
func (d *Disk) Reads() uint32 {
	return d.ops[readOp].Count()
}

func (d *Disk) Writes() uint32 {
	return d.ops[writeOp].Count()
}

func (d *Disk) WriteStats(w io.Writer) {
	stats.WriteTable(ops, d.ops[:], w)
}

func (d *Disk) ResetStats() {
	for i := range d.ops {
		d.ops[i].Reset()
	}
}
