// Package backlight drives the panel's LED backlight. The level is always a
// 0..255 value; each Driver scales it to whatever the hardware takes.
package backlight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DefaultFrequency is the PWM carrier used for the backlight.
const DefaultFrequency = physic.KiloHertz

// Driver abstracts how the backlight level reaches the hardware, so the
// lifecycle manager works the same on a real board, a sysfs backlight class
// device and in tests.
type Driver interface {
	Set(level uint8) error
}

// pwmDriver drives a GPIO with hardware or software PWM through periph.io.
type pwmDriver struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

// sysfsDriver writes to /sys/class/backlight/<name>/brightness, scaled to the
// device's max_brightness.
type sysfsDriver struct {
	dir string
	max int
}

// NewPWM returns a Driver that sets a duty cycle proportional to the level.
func NewPWM(pin gpio.PinOut, freq physic.Frequency) Driver {
	if freq <= 0 {
		freq = DefaultFrequency
	}
	return &pwmDriver{pin: pin, freq: freq}
}

// NewSysfs opens a backlight class device. name may be a bare device name
// ("rpi_backlight") or an absolute directory.
func NewSysfs(name string) (Driver, error) {
	if runtime.GOOS != "linux" {
		return nil, errors.New("backlight: sysfs backlight unavailable on this platform")
	}
	dir := name
	if !filepath.IsAbs(dir) {
		dir = filepath.Join("/sys/class/backlight", name)
	}
	return openSysfs(dir)
}

func openSysfs(dir string) (*sysfsDriver, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("backlight: read max_brightness: %w", err)
	}
	maxLevel, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || maxLevel <= 0 {
		return nil, fmt.Errorf("backlight: invalid max_brightness %q", strings.TrimSpace(string(raw)))
	}
	return &sysfsDriver{dir: dir, max: maxLevel}, nil
}

func (p *pwmDriver) Set(level uint8) error {
	// DutyMax*255 overflows Duty's int32.
	duty := gpio.Duty(int64(gpio.DutyMax) * int64(level) / 255)
	if err := p.pin.PWM(duty, p.freq); err != nil {
		return fmt.Errorf("backlight: pwm %s: %w", p.pin, err)
	}
	return nil
}

func (s *sysfsDriver) Set(level uint8) error {
	v := (int(level)*s.max + 127) / 255
	path := filepath.Join(s.dir, "brightness")
	if err := os.WriteFile(path, []byte(strconv.Itoa(v)), 0o644); err != nil {
		return fmt.Errorf("backlight: write %s: %w", path, err)
	}
	return nil
}

// Recorder is a Driver that remembers every level it was given, for tests.
type Recorder struct {
	mu     sync.Mutex
	levels []uint8
	// Err, when set, is returned by Set after recording the level.
	Err error
}

func (r *Recorder) Set(level uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
	return r.Err
}

// Levels returns a copy of every level set so far.
func (r *Recorder) Levels() []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint8(nil), r.levels...)
}

// Last returns the most recent level, or false if Set was never called.
func (r *Recorder) Last() (uint8, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.levels) == 0 {
		return 0, false
	}
	return r.levels[len(r.levels)-1], true
}
