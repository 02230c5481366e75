package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Format: "json", Prefix: "kgraph", Output: &buf})

	l.Info("Integrated document", "document_id", "doc1", "entities", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "Integrated document", line["msg"])
	require.Equal(t, "doc1", line["document_id"])
	require.Equal(t, "3", fmt.Sprint(line["entities"]))
}

func TestDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Format: "logfmt", Output: &buf})
	l.Debug("hidden")
	require.Empty(t, buf.String())

	l = NewConsoleLogger(ConsoleLoggerParams{Format: "logfmt", Debug: true, Output: &buf})
	l.Debug("shown", "depth", 2)
	require.Contains(t, buf.String(), "msg=shown")
	require.Contains(t, buf.String(), "depth=2")
}
