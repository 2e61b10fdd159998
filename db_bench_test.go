package btreedb

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"
)

func openBench(b *testing.B, opts ...Option) *Store {
	b.Helper()
	s, err := Open(filepath.Join(b.TempDir(), "bench"), opts...)
	if err != nil {
		b.Fatalf("Failed to create store: %v", err)
	}
	b.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func populate(b *testing.B, s *Store, numKeys int) {
	b.Helper()
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key%08d", i)
		value := fmt.Sprintf("value%08d", i)
		if err := s.Put([]byte(key), []byte(value)); err != nil {
			b.Fatalf("Failed to populate store: %v", err)
		}
	}
}

func BenchmarkStoreGet(b *testing.B) {
	s := openBench(b)

	// Pre-populate with 10k keys
	numKeys := 10000
	populate(b, s, numKeys)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		keyNum := (i * 7) % numKeys
		key := fmt.Sprintf("key%08d", keyNum)
		if _, found, err := s.Get([]byte(key)); err != nil || !found {
			b.Errorf("get %s failed: found=%v err=%v", key, found, err)
		}
	}
}

func BenchmarkStorePut(b *testing.B) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "NoSync"},
		{name: "SyncEveryPut", opts: []Option{WithSyncEveryPut()}},
		{name: "NoVictimPool", opts: []Option{WithVictimPool(0)}},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			s := openBench(b, tt.opts...)
			value := make([]byte, 100)

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				key := fmt.Sprintf("%dkey", i)
				if err := s.Put([]byte(key), value); err != nil {
					b.Errorf("put failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkStoreRandomInsert(b *testing.B) {
	s := openBench(b)
	rng := rand.New(rand.NewPCG(1, 1))
	value := make([]byte, 100)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("key%016x", rng.Uint64())
		if err := s.Put([]byte(key), value); err != nil {
			b.Errorf("put failed: %v", err)
		}
	}
}

func BenchmarkStoreMixed(b *testing.B) {
	s := openBench(b)

	numKeys := 10000
	populate(b, s, numKeys)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		switch i % 4 {
		case 0:
			key := fmt.Sprintf("new%08d", i)
			if err := s.Put([]byte(key), []byte("value")); err != nil {
				b.Errorf("put failed: %v", err)
			}
		case 1:
			key := fmt.Sprintf("key%08d", (i*13)%numKeys)
			if _, err := s.Delete([]byte(key)); err != nil {
				b.Errorf("delete failed: %v", err)
			}
		default:
			key := fmt.Sprintf("key%08d", (i*7)%numKeys)
			if _, _, err := s.Get([]byte(key)); err != nil {
				b.Errorf("get failed: %v", err)
			}
		}
	}
}

func BenchmarkStoreForEach(b *testing.B) {
	s := openBench(b)
	populate(b, s, 10000)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		count := 0
		if err := s.ForEach(func(_, _ []byte) error {
			count++
			return nil
		}); err != nil {
			b.Fatalf("walk failed: %v", err)
		}
	}
}
