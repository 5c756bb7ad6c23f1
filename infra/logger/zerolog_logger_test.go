package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	l := newZerologLogger("test", &buf)
	require.NotNil(t, l)

	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")

	out := buf.String()
	assert.Contains(t, out, `"component":"test"`)
	assert.Contains(t, out, "info test")
}

func TestZerologLoggerConsoleInDev(t *testing.T) {
	t.Setenv("WASTEMASTER_ENV", "dev")
	var buf bytes.Buffer
	l := newZerologLogger("test", &buf)
	l.Infof("hello")
	if strings.Contains(buf.String(), `"message"`) {
		t.Fatalf("expected console output, got JSON: %s", buf.String())
	}
}
