package display

import (
	"fmt"

	"bmo/internal/log"
	"bmo/internal/tft"
)

// ClassifyID maps a 24-bit RDDID value to a controller. ok is false when
// the ID is not recognized, in which case ILI9341 is assumed.
func ClassifyID(id uint32) (c Controller, ok bool) {
	switch {
	case id&0xFFFF == 0x9341:
		return ControllerILI9341, true
	case id&0xFFFF == 0x7789, id&0xFF == 0x85:
		return ControllerST7789, true
	}
	return ControllerILI9341, false
}

// readID reads the three RDDID parameter bytes, most significant first.
func readID(p tft.Panel) (uint32, error) {
	var id uint32
	for i := uint8(1); i <= 3; i++ {
		b, err := p.ReadCommand8(tft.CmdRDDID, i)
		if err != nil {
			return 0, err
		}
		id = id<<8 | uint32(b)
	}
	return id, nil
}

// detectController never fails: unreadable or unknown IDs fall back to
// ILI9341.
func (m *Manager) detectController() Controller {
	id, err := readID(m.panel)
	if err != nil {
		log.Warn("display: controller ID read failed, defaulting to ILI9341", "error", err)
		return ControllerILI9341
	}
	c, ok := ClassifyID(id)
	if !ok {
		log.Warn("display: controller detection uncertain, defaulting to ILI9341", "id", fmt.Sprintf("0x%06X", id))
		return c
	}
	log.Info("display: detected controller", "controller", c.String(), "id", fmt.Sprintf("0x%06X", id))
	return c
}

// configure applies the rotation and the controller-specific registers.
func (m *Manager) configure() error {
	p := m.panel
	if err := p.SetRotation(m.opts.Rotation); err != nil {
		return fmt.Errorf("set rotation: %w", err)
	}
	if p.Width() != m.opts.Width || p.Height() != m.opts.Height {
		log.Warn("display: unexpected dimensions",
			"got", fmt.Sprintf("%dx%d", p.Width(), p.Height()),
			"want", fmt.Sprintf("%dx%d", m.opts.Width, m.opts.Height))
	}

	seq := ili9341Init
	if m.controller == ControllerST7789 {
		seq = st7789Init
	}
	log.Debug("display: configuring controller", "controller", m.controller.String())
	for _, c := range seq {
		if err := p.WriteCommand(c.cmd, c.data...); err != nil {
			return fmt.Errorf("command %#02x: %w", c.cmd, err)
		}
	}
	return nil
}

type regWrite struct {
	cmd  byte
	data []byte
}

var ili9341Init = []regWrite{
	{0xEF, []byte{0x03, 0x80, 0x02}},
	{0xCF, []byte{0x00, 0xC1, 0x30}}, // power control B
	{tft.CmdINVOFF, nil},
	{tft.CmdMADCTL, []byte{0x48}}, // portrait, RGB
}

var st7789Init = []regWrite{
	{tft.CmdMADCTL, []byte{0x00}},
	{tft.CmdCOLMOD, []byte{0x05}},
}
