package tft

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPIOptions selects the bus and pins for OpenSPI.
type SPIOptions struct {
	// Port is a spireg name such as "SPI0.0"; empty picks the first port.
	Port string
	Hz   physic.Frequency
	// DC is required; CS may be empty when the SPI port drives chip select.
	DC string
	CS string

	Width  int
	Height int
}

// OpenSPI initializes the periph.io host, connects to the SPI port and
// resolves the data/command and chip-select pins. The panel is not
// initialized; call Init after the hardware reset.
func OpenSPI(opts SPIOptions) (*SPIPanel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("tft: periph host init failed: %w", err)
	}

	port, err := spireg.Open(opts.Port)
	if err != nil {
		return nil, fmt.Errorf("tft: failed to open SPI port %q: %w", opts.Port, err)
	}

	hz := opts.Hz
	if hz <= 0 {
		hz = 27 * physic.MegaHertz
	}
	conn, err := port.Connect(hz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("tft: failed to connect SPI: %w", err)
	}

	dc, err := OutPin(opts.DC, gpio.High)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	var cs gpio.PinOut
	if opts.CS != "" {
		if cs, err = OutPin(opts.CS, gpio.High); err != nil {
			_ = port.Close()
			return nil, err
		}
	}

	p := NewSPI(conn, dc, cs, opts.Width, opts.Height)
	p.closer = port
	return p, nil
}

// OutPin looks up a GPIO by name and drives it to the initial level.
func OutPin(name string, initial gpio.Level) (gpio.PinIO, error) {
	if name == "" {
		return nil, fmt.Errorf("tft: gpio name is empty")
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("tft: gpio %s not found", name)
	}
	if err := p.Out(initial); err != nil {
		return nil, fmt.Errorf("tft: gpio %s Out failed: %w", name, err)
	}
	return p, nil
}
