package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// DisplayConfig describes the panel wiring and power-on settings.
type DisplayConfig struct {
	// Headless replaces the SPI panel with an in-memory framebuffer.
	Headless bool `yaml:"headless" json:"headless"`

	// SPIPort is the periph port name (e.g. "SPI0.0" or "/dev/spidev0.0").
	SPIPort string `yaml:"spi_port" json:"spi_port"`
	// SPIHz is the SPI clock in Hz.
	SPIHz int64 `yaml:"spi_hz" json:"spi_hz"`

	// Pin names as understood by gpioreg. CS may be empty when the SPI
	// driver toggles chip select itself.
	DC        string `yaml:"dc" json:"dc"`
	CS        string `yaml:"cs" json:"cs"`
	Reset     string `yaml:"reset" json:"reset"`
	Backlight string `yaml:"backlight" json:"backlight"`

	// BacklightMode is "pwm" (GPIO PWM on the Backlight pin), "sysfs"
	// (/sys/class/backlight/<BacklightDevice>) or "none".
	BacklightMode   string `yaml:"backlight_mode" json:"backlight_mode"`
	BacklightDevice string `yaml:"backlight_device" json:"backlight_device"`
	// PWMHz is the backlight PWM frequency in Hz.
	PWMHz int64 `yaml:"pwm_hz" json:"pwm_hz"`

	// Brightness is applied after a successful begin (1..255).
	Brightness int `yaml:"brightness" json:"brightness"`
	// Rotation is 0..3, quarter turns clockwise.
	Rotation int `yaml:"rotation" json:"rotation"`
	Width    int `yaml:"width" json:"width"`
	Height   int `yaml:"height" json:"height"`

	// SimulatedID is the RDDID value the headless panel reports.
	SimulatedID uint32 `yaml:"simulated_id" json:"simulated_id"`
}

// FaceConfig sets the face shown at start-up and the mood rotation.
type FaceConfig struct {
	Expression string   `yaml:"expression" json:"expression"`
	Eyes       string   `yaml:"eyes" json:"eyes"`
	Moods      []string `yaml:"moods" json:"moods"`
}

// ScheduleConfig holds cron specs. An empty spec disables the job.
type ScheduleConfig struct {
	Blink string `yaml:"blink" json:"blink"`
	Mood  string `yaml:"mood" json:"mood"`
	Sleep string `yaml:"sleep" json:"sleep"`
	Wake  string `yaml:"wake" json:"wake"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the control API. Empty disables
	// the server.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Display  DisplayConfig  `yaml:"display" json:"display"`
	Face     FaceConfig     `yaml:"face" json:"face"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration for a Raspberry
// Pi wired to an ILI9341 breakout.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		LogLevel: "info",
		Display: DisplayConfig{
			SPIPort:       "SPI0.0",
			SPIHz:         27_000_000,
			DC:            "GPIO25",
			Reset:         "GPIO27",
			Backlight:     "GPIO18",
			BacklightMode: "pwm",
			PWMHz:         1000,
			Brightness:    200,
			Width:         240,
			Height:        320,
			SimulatedID:   0x009341,
		},
		Face: FaceConfig{
			Expression: "happy",
			Eyes:       "open",
			Moods:      []string{"happy", "excited", "surprised", "confused", "sleepy"},
		},
		Schedule: ScheduleConfig{
			Blink: "@every 6s",
			Mood:  "*/10 * * * *",
			Sleep: "0 23 * * *",
			Wake:  "0 7 * * *",
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Schedule specs are left
// alone: empty means disabled.
func (c *Config) Normalize() {
	def := DefaultConfig()
	d := &c.Display

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if d.SPIPort == "" {
		d.SPIPort = def.Display.SPIPort
	}
	if d.SPIHz <= 0 {
		d.SPIHz = def.Display.SPIHz
	}
	if d.DC == "" {
		d.DC = def.Display.DC
	}
	if d.Reset == "" {
		d.Reset = def.Display.Reset
	}

	d.BacklightMode = strings.ToLower(strings.TrimSpace(d.BacklightMode))
	switch d.BacklightMode {
	case "pwm", "sysfs", "none":
		// ok
	default:
		d.BacklightMode = def.Display.BacklightMode
	}
	if d.BacklightMode == "pwm" && d.Backlight == "" {
		d.Backlight = def.Display.Backlight
	}
	if d.PWMHz <= 0 {
		d.PWMHz = def.Display.PWMHz
	}

	if d.Brightness <= 0 {
		d.Brightness = def.Display.Brightness
	}
	d.Brightness = min(d.Brightness, 255)
	if d.Rotation < 0 || d.Rotation > 3 {
		d.Rotation = 0
	}
	if d.Width <= 0 {
		d.Width = def.Display.Width
	}
	if d.Height <= 0 {
		d.Height = def.Display.Height
	}
	if d.SimulatedID == 0 {
		d.SimulatedID = def.Display.SimulatedID
	}

	if c.Face.Expression == "" {
		c.Face.Expression = def.Face.Expression
	}
	if c.Face.Eyes == "" {
		c.Face.Eyes = def.Face.Eyes
	}
	if c.Face.Moods == nil {
		c.Face.Moods = def.Face.Moods
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".bmo-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
