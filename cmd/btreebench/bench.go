package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"strings"
	"time"

	btreedb "github.com/weixu8/btree-db"
)

const (
	keySize   = 16
	valueSize = 100

	line  = "+-----------------------+---------------------------+----------------------------------+---------------------+\n"
	line1 = "--------------------------------------------------------------------------------------------------------------\n"
)

type bench struct {
	store    *btreedb.Store
	num      int // keys written by write
	reads    int // lookups per read test
	out      io.Writer
	progress io.Writer
	rng      *rand.Rand
	value    []byte
	key      []byte
}

func newBench(store *btreedb.Store, num, reads int, seed uint64, out, progress io.Writer) *bench {
	b := &bench{
		store:    store,
		num:      num,
		reads:    reads,
		out:      out,
		progress: progress,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		value:    make([]byte, valueSize),
		key:      make([]byte, keySize),
	}

	salt := []byte("12345678ab")
	for i := range b.value {
		b.value[i] = salt[b.rng.IntN(len(salt))]
	}
	return b
}

// formatKey writes "%dkey" into the fixed-width key buffer.
func (b *bench) formatKey(i int) []byte {
	clear(b.key)
	copy(b.key, fmt.Sprintf("%dkey", i))
	return b.key
}

// Estimated on-disk and queried volumes, in MB.
func (b *bench) fileSize() float64 {
	return float64((keySize+8*6)*b.num)/1048576.0 + float64((valueSize+8*3)*b.num)/1048576.0
}

func (b *bench) querySize() float64 {
	return float64((keySize+valueSize+8*4)*b.reads) / 1048576.0
}

func (b *bench) tick(i int) {
	if i%10000 == 0 {
		_, _ = fmt.Fprintf(b.progress, "finished %d ops%30s\r", i, "")
	}
}

func (b *bench) printHeader() {
	_, _ = fmt.Fprintf(b.out, "Keys:\t\t%d bytes each\n", keySize)
	_, _ = fmt.Fprintf(b.out, "Values:\t\t%d bytes each\n", valueSize)
	_, _ = fmt.Fprintf(b.out, "Entries:\t%d\n", b.num)
	_, _ = fmt.Fprintf(b.out, "IndexSize:\t%.1f MB (estimated)\n", float64((keySize+8*6)*b.num)/1048576.0)
	_, _ = fmt.Fprintf(b.out, "DBSize:\t\t%.1f MB (estimated)\n", float64((valueSize+8*3)*b.num)/1048576.0)
	_, _ = fmt.Fprint(b.out, line1)
}

func (b *bench) printEnvironment() {
	_, _ = fmt.Fprintf(b.out, "BTreeDB:\tversion %s\n", version)
	_, _ = fmt.Fprintf(b.out, "Date:\t\t%s\n", time.Now().Format(time.ANSIC))
	_, _ = fmt.Fprintf(b.out, "Go:\t\t%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return
	}
	defer f.Close()

	var cpus int
	var model, cache string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "model name":
			cpus++
			model = strings.TrimSpace(val)
		case "cache size":
			cache = strings.TrimSpace(val)
		}
	}
	if cpus > 0 {
		_, _ = fmt.Fprintf(b.out, "CPU:\t\t%d * %s\n", cpus, model)
		_, _ = fmt.Fprintf(b.out, "CPUCache:\t%s\n", cache)
	}
}

// report prints one result row; label names what count measures, such as
// "succ" for writes or "found" for reads.
func (b *bench) report(name, label, unit string, ops, count int, size float64, cost time.Duration) {
	secs := cost.Seconds()
	_, _ = fmt.Fprint(b.out, line)
	_, _ = fmt.Fprintf(b.out, "|%s\t(%s:%d): %.6f sec/op; %.1f %s/sec(estimated); %.1f MB/sec; cost:%.6f(sec)\n",
		name, label, count, secs/float64(ops), float64(ops)/secs, unit, size/secs, secs)
}

func (b *bench) write() error {
	dups := b.store.Stats().Duplicates
	start := time.Now()
	for i := 0; i < b.num; i++ {
		if err := b.store.Put(b.formatKey(i), b.value); err != nil {
			return fmt.Errorf("write %q: %w", trimKey(b.key), err)
		}
		b.tick(i)
	}
	succ := b.num - int(b.store.Stats().Duplicates-dups)
	b.report("write", "succ", "writes", b.num, succ, b.fileSize(), time.Since(start))
	return nil
}

// randomKey fills the key buffer with random lowercase letters and digits.
func (b *bench) randomKey() []byte {
	const salt = "abcdefghijklmnopqrstuvwxyz0123456789"
	for i := range b.key {
		b.key[i] = salt[b.rng.IntN(len(salt))]
	}
	return b.key
}

// writeRandom inserts num random 16 byte keys, each with a "val:%d" value.
func (b *bench) writeRandom() error {
	value := make([]byte, valueSize)
	start := time.Now()
	for i := 0; i < b.num; i++ {
		clear(value)
		copy(value, fmt.Sprintf("val:%d", i))
		if err := b.store.Put(b.randomKey(), value); err != nil {
			return fmt.Errorf("write %q: %w", b.key, err)
		}
		b.tick(i)
	}
	b.report("writerandom", "done", "writes", b.num, b.num, b.fileSize(), time.Since(start))
	return nil
}

// read looks up keys num/2 .. num/2+reads, or random keys below the current
// index when random is set.
func (b *bench) read(random bool) error {
	found := 0
	first := b.num / 2
	start := time.Now()
	for i := first; i < first+b.reads; i++ {
		n := i
		if random {
			n = b.rng.IntN(i + 1)
		}
		key := b.formatKey(n)
		_, ok, err := b.store.Get(key)
		if err != nil {
			return fmt.Errorf("read %q: %w", trimKey(key), err)
		}
		if ok {
			found++
		} else {
			_, _ = fmt.Fprintf(b.out, "not found:%s\n", trimKey(key))
		}
		b.tick(i)
	}

	name := "readseq"
	if random {
		name = "readrandom"
	}
	b.report(name, "found", "reads", b.reads, found, b.querySize(), time.Since(start))
	return nil
}

func (b *bench) readOne(key string) error {
	value, found, err := b.store.Get([]byte(key))
	if err != nil {
		return err
	}
	if !found {
		_, _ = fmt.Fprintf(b.out, "not found:%s\n", key)
		return nil
	}
	_, _ = fmt.Fprintf(b.out, "%s: %s\n", key, value)
	return nil
}

// walk visits every key in order and verifies the order holds.
func (b *bench) walk() error {
	var prev []byte
	count := 0
	start := time.Now()
	err := b.store.ForEach(func(key, _ []byte) error {
		if prev != nil && bytes.Compare(prev, key) >= 0 {
			return fmt.Errorf("walk: %q after %q", key, prev)
		}
		prev = key
		b.tick(count)
		count++
		return nil
	})
	if err != nil {
		return err
	}
	b.report("walk", "found", "keys", max(count, 1), count, float64((keySize+valueSize)*count)/1048576.0, time.Since(start))
	return nil
}

func (b *bench) check() error {
	start := time.Now()
	if err := b.store.Check(); err != nil {
		return err
	}
	_, _ = fmt.Fprint(b.out, line)
	_, _ = fmt.Fprintf(b.out, "|check\t\tok, depth %d; cost:%.6f(sec)\n", b.store.Depth(), time.Since(start).Seconds())
	return nil
}

func (b *bench) printStats() {
	st := b.store.Stats()
	_, _ = fmt.Fprint(b.out, line)
	_, _ = fmt.Fprintf(b.out, "|stats\t\tdepth %d; puts %d; duplicates %d; deletes %d; splits %d; merges %d\n",
		st.Depth, st.Puts, st.Duplicates, st.Deletes, st.Splits, st.Merges)
	_, _ = fmt.Fprintf(b.out, "|cache\t\thits %d; victim hits %d; misses %d; evictions %d; resident %d\n",
		st.CacheHits, st.CacheVictimHits, st.CacheMisses, st.CacheEvictions, st.CacheResident)
	_, _ = fmt.Fprintf(b.out, "|io\t\tindex %d reads %d writes; data %d reads %d writes; free chunks %d\n",
		st.IndexReads, st.IndexWrites, st.DataReads, st.DataWrites, st.FreeChunks)
	_, _ = fmt.Fprint(b.out, line)
}

func trimKey(key []byte) string {
	return string(bytes.TrimRight(key, "\x00"))
}
