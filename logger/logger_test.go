package logger

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	btreedb "github.com/weixu8/btree-db"
)

func TestZap(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	l := NewZap(zap.New(core))

	l.Info("store opened", "root", uint32(4096), "depth", 2)
	l.Warn("slow", "ms", 12)
	l.Error("superblock rejected", "error", "invalid checksum")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "store opened", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"root": uint32(4096), "depth": int64(2)}, entries[0].ContextMap())
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestLogrus(t *testing.T) {
	t.Parallel()

	base, hook := logrustest.NewNullLogger()
	l := NewLogrus(base)

	l.Info("root split", "root", uint32(8192), "depth", 2, "dangling")
	l.Error("root rejected", 42, "ignored", "root", 7)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "root split", entries[0].Message)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, logrus.Fields{"root": uint32(8192), "depth": 2}, entries[0].Data)

	assert.Equal(t, logrus.ErrorLevel, entries[1].Level)
	assert.Equal(t, logrus.Fields{"root": 7}, entries[1].Data)
}

func TestStoreWithZap(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	store, err := btreedb.Open(filepath.Join(t.TempDir(), "zap"), btreedb.WithLogger(NewZap(zap.New(core))))
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("key"), []byte("value")))
	require.NoError(t, store.Close())

	assert.Equal(t, 1, logs.FilterMessage("store created").Len())
	assert.Equal(t, 1, logs.FilterMessage("store closed").Len())
}
