package backlight

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

func TestPWMDutyIsProportional(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO18"}
	d := NewPWM(pin, 0)

	require.NoError(t, d.Set(255))
	require.Equal(t, gpio.DutyMax, pin.D)
	require.Equal(t, DefaultFrequency, pin.F)

	require.NoError(t, d.Set(0))
	require.Equal(t, gpio.Duty(0), pin.D)

	require.NoError(t, d.Set(51))
	require.Equal(t, gpio.DutyMax/5, pin.D)

	d = NewPWM(pin, 2*physic.KiloHertz)
	require.NoError(t, d.Set(128))
	require.Equal(t, 2*physic.KiloHertz, pin.F)
	require.InDelta(t, float64(gpio.DutyHalf), float64(pin.D), float64(gpio.DutyMax)/255)
}

func TestSysfsScalesToMaxBrightness(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "max_brightness"), []byte("100\n"), 0o644))

	d, err := openSysfs(dir)
	require.NoError(t, err)

	read := func() string {
		b, err := os.ReadFile(filepath.Join(dir, "brightness"))
		require.NoError(t, err)
		return string(b)
	}

	require.NoError(t, d.Set(255))
	require.Equal(t, "100", read())
	require.NoError(t, d.Set(0))
	require.Equal(t, "0", read())
	require.NoError(t, d.Set(128))
	require.Equal(t, "50", read())
}

func TestSysfsRejectsBadMax(t *testing.T) {
	dir := t.TempDir()
	_, err := openSysfs(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "max_brightness"), []byte("zero"), 0o644))
	_, err = openSysfs(dir)
	require.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_, ok := r.Last()
	require.False(t, ok)

	require.NoError(t, r.Set(10))
	require.NoError(t, r.Set(200))
	require.Equal(t, []uint8{10, 200}, r.Levels())

	r.Err = errors.New("stuck")
	require.Error(t, r.Set(5))
	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, uint8(5), last)
}
