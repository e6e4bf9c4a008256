package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-simplefs/blkdev"
	"github.com/mit-pdos/go-simplefs/fs"
	"github.com/mit-pdos/go-simplefs/util/timed_disk"
)

// smallfile represents one iteration of this benchmark: it creates a file,
// write data to it, flushes, and deletes it.
func smallfile(v *fs.Volume, data []byte) {
	inum, err := v.CreateFile()
	if err != nil {
		panic(err)
	}
	n, err := v.WriteFile(inum, data, 0)
	if err != nil {
		panic(err)
	}
	if n != uint64(len(data)) {
		panic(fmt.Errorf("short write %d", n))
	}
	if err := v.Flush(); err != nil {
		panic(err)
	}
	if err := v.DeleteFile(inum); err != nil {
		panic(err)
	}
}

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

type result struct {
	iters int
	times []time.Duration
}

func client(duration time.Duration, allTimes bool, v *fs.Volume) result {
	data := mkdata(uint64(100))
	var times []time.Duration
	if allTimes {
		times = make([]time.Duration, 0, int(duration.Seconds()*1000))
	}
	start := time.Now()
	i := 0
	var elapsed time.Duration
	for {
		before := elapsed
		smallfile(v, data)
		i++
		elapsed = time.Since(start)
		if allTimes {
			times = append(times, (elapsed - before))
		}
		if elapsed >= duration {
			return result{iters: i, times: times}
		}
	}
}

type config struct {
	duration time.Duration
	allTimes bool // whether to record individual iteration timings
}

func run(v *fs.Volume, c config, nt int) (elapsed time.Duration, iters int, times []time.Duration) {
	start := time.Now()
	count := make(chan result)
	for i := 0; i < nt; i++ {
		i := i
		go func() {
			allTimes := c.allTimes && i == 0
			count <- client(c.duration, allTimes, v)
		}()
	}
	for i := 0; i < nt; i++ {
		r := <-count
		iters += r.iters
		if r.times != nil {
			times = r.times
		}
	}
	elapsed = time.Since(start)
	return
}

func main() {
	var c config
	var start int
	var nthread int
	var timingFile string
	var diskfile string
	var nblocks uint64
	var dumpStats bool
	flag.StringVar(&diskfile, "disk", "", "disk image (empty for MemDisk)")
	flag.Uint64Var(&nblocks, "blocks", 10000, "size of the disk in blocks")
	flag.DurationVar(&c.duration, "benchtime", 10*time.Second, "time to run each iteration for")
	flag.StringVar(&timingFile, "time-iters", "", "prefix for individual timing files")
	flag.IntVar(&start, "start", 1, "number of threads to start at")
	flag.IntVar(&nthread, "threads", 1, "number of threads to run till")
	flag.BoolVar(&dumpStats, "stats", false, "dump stats to stderr at end")
	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")

	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")

	flag.Parse()
	if start < 1 {
		panic("invalid start")
	}

	var d disk.Disk
	if diskfile == "" {
		d = disk.NewMemDisk(nblocks)
	} else {
		bd, err := blkdev.Open(diskfile, nblocks)
		if err != nil {
			panic(err)
		}
		d = bd
	}
	td := timed_disk.New(d)
	defer td.Close()

	opts := fs.Options{}
	if dumpStats {
		opts.Stats = os.Stderr
	}
	v := fs.MkVolume(td, opts)
	if err := v.Format(); err != nil {
		panic(err)
	}
	if err := v.Mount(); err != nil {
		panic(err)
	}

	// warmup (skip if running for very little time, for example when using a
	// duration of 0s to run just one iteration)
	if c.duration > 500*time.Millisecond {
		run(v, config{duration: 500 * time.Millisecond}, nthread)
	}
	td.ResetStats()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	for nt := start; nt <= nthread; nt++ {
		if timingFile != "" {
			c.allTimes = true
		}

		elapsed, count, times := run(v, c, nt)
		fmt.Printf("fs-smallfile: %v %0.4f file/sec\n", nt,
			float64(count)/elapsed.Seconds())
		if len(times) > 0 {
			f, err := os.Create(fmt.Sprintf("%s-%d.txt", timingFile, nt))
			if err != nil {
				panic(fmt.Errorf("could not create timing file: %v", err))
			}
			for _, t := range times {
				fmt.Fprintf(f, "%f\n", t.Seconds())
			}
			f.Close()
		}
	}

	if err := v.Close(); err != nil {
		panic(err)
	}
	if dumpStats {
		td.WriteStats(os.Stderr)
	}
}
