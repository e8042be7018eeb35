package bmo

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"bmo/internal/backlight"
	"bmo/internal/config"
	"bmo/internal/display"
	"bmo/internal/face"
	"bmo/internal/log"
	"bmo/internal/tft"
)

// Build wires a Device from configuration. Headless builds use an in-memory
// panel with simulated pins; otherwise the panel, reset line and backlight
// are resolved through periph.io. The display is not started.
func Build(cfg *config.Config) (*Device, error) {
	dc := cfg.Display

	expr, err := face.ParseExpression(cfg.Face.Expression)
	if err != nil {
		return nil, err
	}
	eyes, err := face.ParseEyeState(cfg.Face.Eyes)
	if err != nil {
		return nil, err
	}
	moods := make([]face.Expression, 0, len(cfg.Face.Moods))
	for _, s := range cfg.Face.Moods {
		m, err := face.ParseExpression(s)
		if err != nil {
			return nil, fmt.Errorf("bmo: moods: %w", err)
		}
		moods = append(moods, m)
	}

	var opts display.Options
	if dc.Headless {
		opts = headlessOptions(dc)
	} else if opts, err = hardwareOptions(dc); err != nil {
		return nil, err
	}
	opts.Rotation = drivers.Rotation(dc.Rotation)
	opts.Width, opts.Height = dc.Width, dc.Height
	if dc.Rotation%2 == 1 {
		opts.Width, opts.Height = dc.Height, dc.Width
	}
	opts.SPIHz = physic.Frequency(dc.SPIHz) * physic.Hertz

	log.Info("bmo: device configured",
		"headless", dc.Headless,
		"spi_port", dc.SPIPort,
		"backlight_mode", dc.BacklightMode,
		"rotation", dc.Rotation,
		"expression", expr.String(),
	)

	return New(Options{
		Manager:    display.New(opts),
		Renderer:   face.New(face.Timing{}),
		Brightness: uint8(dc.Brightness),
		Expression: expr,
		Eyes:       eyes,
		Moods:      moods,
	}), nil
}

// headlessOptions opens a fresh framebuffer on every Begin, since End closes
// the previous one.
func headlessOptions(dc config.DisplayConfig) display.Options {
	fbOpts := tft.FramebufferOptions{
		Width:     dc.Width,
		Height:    dc.Height,
		ID:        dc.SimulatedID,
		StatusReg: tft.DefaultFramebufferOptions.StatusReg,
	}
	var bl backlight.Driver
	if dc.BacklightMode != "none" {
		bl = backlight.NewPWM(&gpiotest.Pin{N: "BL", Num: -1}, physic.Frequency(dc.PWMHz)*physic.Hertz)
	}
	return display.Options{
		Open: func() (tft.Panel, error) {
			return tft.NewFramebuffer(fbOpts), nil
		},
		Pins:      display.Pins{Reset: &gpiotest.Pin{N: "RST", Num: -1}},
		Backlight: bl,
	}
}

func hardwareOptions(dc config.DisplayConfig) (display.Options, error) {
	if _, err := host.Init(); err != nil {
		return display.Options{}, fmt.Errorf("bmo: periph host init failed: %w", err)
	}

	rst, err := tft.OutPin(dc.Reset, gpio.High)
	if err != nil {
		return display.Options{}, err
	}

	var bl backlight.Driver
	switch dc.BacklightMode {
	case "pwm":
		pin, err := tft.OutPin(dc.Backlight, gpio.Low)
		if err != nil {
			return display.Options{}, err
		}
		bl = backlight.NewPWM(pin, physic.Frequency(dc.PWMHz)*physic.Hertz)
	case "sysfs":
		if bl, err = backlight.NewSysfs(dc.BacklightDevice); err != nil {
			return display.Options{}, err
		}
	}

	spiOpts := tft.SPIOptions{
		Port:   dc.SPIPort,
		Hz:     physic.Frequency(dc.SPIHz) * physic.Hertz,
		DC:     dc.DC,
		CS:     dc.CS,
		Width:  dc.Width,
		Height: dc.Height,
	}
	return display.Options{
		Open: func() (tft.Panel, error) {
			p, err := tft.OpenSPI(spiOpts)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		Pins:      display.Pins{Reset: rst},
		Backlight: bl,
	}, nil
}
