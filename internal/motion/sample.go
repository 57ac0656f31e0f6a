// Package motion acquires motion sensor samples, removes the calibration
// offset and smooths the result with an exponential low-pass filter.
//
// A Pipeline owns its offset and filter state. Nothing in this package keeps
// package-level mutable state, so several pipelines can run side by side.
package motion

import "math"

// Channel indexes into a Sample.
const (
	AccelX = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ

	// MaxChannels is the width of a Sample.
	MaxChannels
)

// Gravity is subtracted from the vertical channel's mean during calibration.
// The offset then removes sensor bias only, so a level sensor at rest still
// reads +Gravity on AccelZ after correction.
const Gravity = 9.81

// Sample holds one reading: acceleration in m/s^2 followed by angular rate
// in rad/s. In accelerometer-only mode the gyro channels stay zero.
type Sample [MaxChannels]float64

// Add returns the component-wise sum s + o.
func (s Sample) Add(o Sample) Sample {
	for i := range s {
		s[i] += o[i]
	}
	return s
}

// Sub returns the component-wise difference s - o.
func (s Sample) Sub(o Sample) Sample {
	for i := range s {
		s[i] -= o[i]
	}
	return s
}

// Scale returns s with every channel multiplied by k.
func (s Sample) Scale(k float64) Sample {
	for i := range s {
		s[i] *= k
	}
	return s
}

// Magnitude returns the length of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s[AccelX]*s[AccelX] + s[AccelY]*s[AccelY] + s[AccelZ]*s[AccelZ])
}

// Dynamic returns how far the acceleration magnitude is from 1 g. It is
// near zero for a sensor at rest in any orientation.
func (s Sample) Dynamic() float64 {
	return math.Abs(s.Magnitude() - Gravity)
}

// truncate zeroes every channel at or beyond n.
func (s Sample) truncate(n int) Sample {
	for i := n; i < MaxChannels; i++ {
		s[i] = 0
	}
	return s
}
