package display

import (
	"fmt"
	"time"
)

// Status is the outcome of the last lifecycle step.
type Status int

const (
	StatusOK Status = iota
	StatusErrorInit
	StatusErrorSPI
	StatusErrorController
	StatusErrorMemory
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusErrorInit:
		return "ERROR_INIT"
	case StatusErrorSPI:
		return "ERROR_SPI"
	case StatusErrorController:
		return "ERROR_CONTROLLER"
	case StatusErrorMemory:
		return "ERROR_MEMORY"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Controller is the display driver chip found on the panel.
type Controller int

const (
	ControllerUnknown Controller = iota
	ControllerILI9341
	ControllerST7789
)

func (c Controller) String() string {
	switch c {
	case ControllerILI9341:
		return "ILI9341"
	case ControllerST7789:
		return "ST7789"
	}
	return "Unknown"
}

func (c Controller) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAsleep
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateAsleep:
		return "asleep"
	}
	return "uninitialized"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Error is returned by failing lifecycle steps. Use errors.As to get at the
// Status.
type Error struct {
	Status Status
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("display: %s: %v", e.Msg, e.Err)
	}
	return "display: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Timing holds the hardware settle times. Sleep performs the waits; tests
// replace it to run without real delays.
type Timing struct {
	ResetPulse   time.Duration
	ResetSettle  time.Duration
	SleepSettle  time.Duration
	SelfTestStep time.Duration
	Sleep        func(time.Duration)
}

// DefaultTiming returns the datasheet delays used on real panels.
func DefaultTiming() Timing {
	return Timing{
		ResetPulse:   10 * time.Millisecond,
		ResetSettle:  120 * time.Millisecond,
		SleepSettle:  120 * time.Millisecond,
		SelfTestStep: 100 * time.Millisecond,
		Sleep:        time.Sleep,
	}
}

// Info is the display information block logged after a successful Begin.
type Info struct {
	Status     Status     `json:"status"`
	State      State      `json:"state"`
	Controller Controller `json:"controller"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Rotation   int        `json:"rotation"`
	Backlight  uint8      `json:"backlight"`
	SPIHz      int64      `json:"spi_hz"`
}
