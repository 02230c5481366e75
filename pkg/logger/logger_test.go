package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type entry struct {
	level   string
	message string
	keyvals []any
}

type recorder struct {
	mu      sync.Mutex
	entries []entry
}

func (r *recorder) add(level, message string, keyvals []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{level: level, message: message, keyvals: keyvals})
}

func (r *recorder) Log(m string, kv ...any)   { r.add("log", m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.add("debug", m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.add("info", m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.add("warn", m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.add("error", m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.add("fatal", m, kv) }

func TestUninitialisedLoggerIsSilent(t *testing.T) {
	Reset()
	require.NotPanics(t, func() {
		Info("nothing")
		Fatal("still nothing")
	})
}

func TestDispatchToAllBackends(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(Reset)

	Log("plain", "k", 1)
	Debug("debug")
	Info("info", "doc", "doc1")
	Warn("warn")
	Error("error", "err", "boom")

	for _, r := range []*recorder{a, b} {
		require.Len(t, r.entries, 5)
		require.Equal(t, entry{level: "log", message: "plain", keyvals: []any{"k", 1}}, r.entries[0])
		require.Equal(t, "info", r.entries[2].level)
		require.Equal(t, []any{"doc", "doc1"}, r.entries[2].keyvals)
		require.Equal(t, "error", r.entries[4].level)
	}
}
