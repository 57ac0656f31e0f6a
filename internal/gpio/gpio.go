// Package gpio drives digital output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation records levels so tests can run without hardware.
package gpio

// Output drives a single digital output line.
type Output interface {
	// Set drives the line HIGH (true) or LOW (false).
	Set(high bool) error

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultHapticPin = 18
)
