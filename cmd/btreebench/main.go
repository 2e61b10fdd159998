// Command btreebench writes and reads a store the way the classic embedded
// database benchmarks do: 16 byte "%dkey" keys with 100 byte values.
//
// Usage:
//
//	btreebench [flags] add|write|writerandom|readseq|readrandom|walk|check|stats
//	btreebench [flags] readone KEY
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	btreedb "github.com/weixu8/btree-db"
	btreelog "github.com/weixu8/btree-db/logger"
)

const version = "1.1"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("btreebench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		name   = fs.String("db", "db_btree", "store name; NAME.idx and NAME.db are used")
		num    = fs.Int("n", 2000000, "number of entries to write")
		reads  = fs.Int("r", 10000, "number of lookups per read test")
		seed   = fs.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
		fresh  = fs.Bool("fresh", false, "remove an existing store before writing")
		sync   = fs.Bool("sync", false, "fdatasync after every put")
		reuse  = fs.Bool("reuse", false, "reuse node chunks freed by deletes")
		verify = fs.Bool("verify", false, "check the whole tree on open")
		slots  = fs.Int("cache-slots", 23, "direct-mapped node cache slots")
		pool   = fs.Int("victims", 64, "LRU victim pool entries, 0 disables")
	)
	logCfg := logConfig{}
	fs.StringVar(&logCfg.File, "log", "btreebench.log", "log file, empty disables logging")
	fs.StringVar(&logCfg.Level, "log-level", "info", "log level")
	fs.IntVar(&logCfg.MaxSize, "log-max-size", 100, "log file size in MB before rotation")
	fs.IntVar(&logCfg.MaxBackups, "log-max-backups", 3, "rotated log files to keep")
	fs.IntVar(&logCfg.MaxAge, "log-max-age", 28, "days to keep rotated log files")
	fs.BoolVar(&logCfg.Compress, "log-compress", false, "gzip rotated log files")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: btreebench [flags] <add|write|writerandom|readseq|readrandom|walk|check|stats|readone KEY>\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}
	op := fs.Arg(0)

	switch op {
	case "add", "write", "writerandom", "readseq", "readrandom", "walk", "check", "stats":
	case "readone":
		if fs.NArg() != 2 {
			fs.Usage()
			return 2
		}
	default:
		_, _ = fmt.Fprintf(stderr, "not supported op %s\n", op)
		return 2
	}

	logger, err := newLogger(logCfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	if *fresh && (op == "add" || op == "write" || op == "writerandom") {
		for _, ext := range []string{btreedb.IndexExt, btreedb.DataExt} {
			if err := os.Remove(*name + ext); err != nil && !errors.Is(err, os.ErrNotExist) {
				_, _ = fmt.Fprintf(stderr, "remove: %v\n", err)
				return 1
			}
		}
	}

	opts := []btreedb.Option{
		btreedb.WithLogger(btreelog.NewZap(logger)),
		btreedb.WithCacheSlots(*slots),
		btreedb.WithVictimPool(*pool),
	}
	if *sync {
		opts = append(opts, btreedb.WithSyncEveryPut())
	}
	if *reuse {
		opts = append(opts, btreedb.WithNodeReuse())
	}
	if *verify {
		opts = append(opts, btreedb.WithVerifyOnOpen())
	}

	store, err := btreedb.Open(*name, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open %s: %v\n", *name, err)
		return 1
	}

	b := newBench(store, *num, *reads, *seed, stdout, stderr)
	if op != "readone" {
		b.printHeader()
		b.printEnvironment()
	}

	switch op {
	case "add":
		err = b.write()
		if err == nil {
			err = b.read(false)
		}
		if err == nil {
			err = b.read(true)
		}
		if err == nil {
			_, _ = fmt.Fprint(stdout, line)
		}
	case "write":
		err = b.write()
	case "writerandom":
		err = b.writeRandom()
	case "readseq":
		err = b.read(false)
	case "readrandom":
		err = b.read(true)
	case "walk":
		err = b.walk()
	case "check":
		err = b.check()
	case "stats":
		b.printStats()
	case "readone":
		err = b.readOne(fs.Arg(1))
	}

	if closeErr := store.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", op, err)
		return 1
	}
	return 0
}
