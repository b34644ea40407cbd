package tracing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_File(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "spans.json")
	require.NoError(t, Init(Config{Service: "artifex", Version: "0.0.1", Output: fname}))

	_, span := StartSpan(context.Background(), "verifier.Verify", KindInternal)
	span.WithTask("t1", "r1").WithAttributes(map[string]string{"status": "failed"})
	EndSpan(span, fmt.Errorf("checksum-mismatch"))
	require.NoError(t, Shutdown(context.Background()))

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	for _, expect := range []string{"verifier.Verify", "checksum-mismatch", "task.id", "resource.key"} {
		assert.Contains(t, string(data), expect)
	}
	assert.NoError(t, Shutdown(context.Background()))
}

func TestNilSpan(t *testing.T) {
	var span *Span
	assert.Nil(t, span.WithAttributes(map[string]string{"k": "v"}))
	assert.Nil(t, span.WithTask("t1", "r1"))
	span.SetStatus(nil)
	EndSpan(nil, nil)
}
