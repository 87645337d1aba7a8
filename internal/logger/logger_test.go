// ====================================
// File: internal/logger/logger_test.go
// ====================================
package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesRotatedJSONFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "router.log")

	l, err := New(cfg)
	require.NoError(t, err)

	l.WithComponent("router").Info("engine ready", zap.String("venue", "pool"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)

	line := string(data)
	require.Contains(t, line, `"msg":"engine ready"`)
	require.Contains(t, line, `"component":"router"`)
	require.Contains(t, line, `"venue":"pool"`)
	require.Contains(t, line, `"level":"INFO"`)
}

func TestNewTUIKeepsFileAndRing(t *testing.T) {
	ring := NewRing(8)
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "router.log")
	cfg.Ring = ring

	l, err := NewTUI(cfg)
	require.NoError(t, err)

	l.Info("dashboard started")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"dashboard started"`)

	entries := ring.Recent(0)
	require.Len(t, entries, 1)
	require.Equal(t, "dashboard started", entries[0].Message)
}

func TestRingCapturesEntries(t *testing.T) {
	ring := NewRing(8)
	zl := zap.New(ring.Core(zapcore.DebugLevel))

	zl.Info("route selected", zap.String("direction", "deposit"))

	entries := ring.Recent(0)
	require.Len(t, entries, 1)
	require.Equal(t, "route selected", entries[0].Message)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.False(t, entries[0].Time.IsZero())
	require.Contains(t, entries[0].Fields, "direction")
	require.Contains(t, entries[0].Fields, "deposit")
}

func TestRingWrapsOldestFirst(t *testing.T) {
	ring := NewRing(3)
	zl := zap.New(ring.Core(zapcore.DebugLevel))

	for i := 0; i < 5; i++ {
		zl.Info(fmt.Sprintf("entry-%d", i))
	}

	require.Equal(t, 3, ring.Len())
	require.Equal(t, uint64(5), ring.Seen())

	entries := ring.Recent(0)
	require.Len(t, entries, 3)
	require.Equal(t, "entry-2", entries[0].Message)
	require.Equal(t, "entry-3", entries[1].Message)
	require.Equal(t, "entry-4", entries[2].Message)

	newest := ring.Recent(2)
	require.Len(t, newest, 2)
	require.Equal(t, "entry-3", newest[0].Message)
	require.Equal(t, "entry-4", newest[1].Message)
}

func TestRingHonorsLevel(t *testing.T) {
	ring := NewRing(4)
	zl := zap.New(ring.Core(zapcore.InfoLevel))

	zl.Debug("too quiet")
	require.Equal(t, 0, ring.Len())

	zl.Info("loud enough")
	require.Equal(t, 1, ring.Len())
}

func TestRingCarriesWithFields(t *testing.T) {
	ring := NewRing(4)
	zl := zap.New(ring.Core(zapcore.DebugLevel)).With(zap.String("component", "monitor"))

	zl.Info("tick")

	entries := ring.Recent(0)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Fields, "component")
	require.Contains(t, entries[0].Fields, "monitor")
}

func TestLoggerFeedsRing(t *testing.T) {
	ring := NewRing(16)
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "router.log")
	cfg.Development = true
	cfg.Ring = ring

	l, err := New(cfg)
	require.NoError(t, err)

	l.WithOperation("deposit_route").Info("Route selected")

	entries := ring.Recent(0)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Fields, "operation")
	require.Contains(t, entries[0].Fields, "deposit_route")
	require.Contains(t, entries[0].Fields, "correlation_id")

	end := l.TrackPerformance("warmup")
	end()

	messages := make([]string, 0, ring.Len())
	for _, e := range ring.Recent(0) {
		messages = append(messages, e.Message)
	}
	require.Contains(t, messages, "Starting operation")
	require.Contains(t, messages, "Operation completed")
}

func TestLogErrorAppendsError(t *testing.T) {
	ring := NewRing(4)
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "router.log")
	cfg.Ring = ring

	l, err := New(cfg)
	require.NoError(t, err)

	l.LogError("quote failed", errors.New("venue offline"))

	entries := ring.Recent(0)
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	require.Contains(t, entries[0].Fields, "venue offline")
}

func TestRingConcurrentAccess(t *testing.T) {
	ring := NewRing(64)
	zl := zap.New(ring.Core(zapcore.DebugLevel))

	var wg sync.WaitGroup
	numGoroutines := 10
	logsPerGoroutine := 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < logsPerGoroutine; j++ {
				zl.Info(fmt.Sprintf("goroutine %d iteration %d", id, j))
			}
		}(i)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for i := 0; i < 50; i++ {
			_ = ring.Recent(10)
			_ = ring.Len()
		}
	}()

	wg.Wait()
	<-readerDone

	require.Equal(t, uint64(numGoroutines*logsPerGoroutine), ring.Seen())
	require.Equal(t, 64, ring.Len())
}
