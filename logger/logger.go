// Package logger provides adapters for popular logger libraries to work with
// the btreedb.Logger interface.
//
// The standard library's slog.Logger already implements btreedb.Logger
// directly.
//
// Example with zap:
//
//	import (
//	    "github.com/weixu8/btree-db"
//	    "github.com/weixu8/btree-db/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    store, err := btreedb.Open("data", btreedb.WithLogger(logger.NewZap(zapLogger)))
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer store.Close()
//	}
package logger

// fields turns alternating key/value arguments into pairs. A trailing key
// without a value and keys that are not strings are dropped.
func fields(args []any, add func(key string, value any)) {
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			add(key, args[i+1])
		}
	}
}
