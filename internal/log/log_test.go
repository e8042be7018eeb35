package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelWarn, ParseLevel(" warning "))
	require.Equal(t, LevelError, ParseLevel("ERROR"))
	require.Equal(t, LevelInfo, ParseLevel("loud"))
	require.Equal(t, LevelInfo, ParseLevel(""))
}

func TestLevelFiltersAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden", "k", 1)
	require.Empty(t, buf.String())

	Info("backlight set", "value", 200, "dangling")
	require.Contains(t, buf.String(), "backlight set")
	require.Contains(t, buf.String(), "value=200")
	require.NotContains(t, buf.String(), "dangling")

	buf.Reset()
	Error("begin failed", errors.New("spi down"), "status", "ERROR_SPI")
	require.Contains(t, buf.String(), "spi down")
	require.Contains(t, buf.String(), "status=ERROR_SPI")

	buf.Reset()
	SetLevel(LevelError)
	Warn("quiet")
	require.Empty(t, buf.String())
}
