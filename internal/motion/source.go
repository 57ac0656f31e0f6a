package motion

import "errors"

// ErrNoDevice is returned when the sensor does not acknowledge on the bus.
var ErrNoDevice = errors.New("motion: sensor did not acknowledge")

// Source reads raw samples from a motion sensor.
type Source interface {
	// ReadRaw returns one uncorrected, unfiltered sample.
	ReadRaw() (Sample, error)

	// Close releases the bus.
	Close() error
}

// BusConfig selects the I2C bus and device address of the sensor.
type BusConfig struct {
	Bus     string // periph bus name, e.g. "1" for /dev/i2c-1
	Address uint16

	// SDAPin and SCLPin are fixed by the bus on Linux boards; they are only
	// reported in logs so the wiring can be checked against the board.
	SDAPin int
	SCLPin int
}

// Default bus settings for an MPU6050 on a Raspberry Pi header.
const (
	DefaultBus     = "1"
	DefaultAddress = 0x68
	DefaultSDAPin  = 2
	DefaultSCLPin  = 3
)
