package motion

import (
	"errors"
	"fmt"
)

// DefaultAlpha is the smoothing factor. Lower values smooth more.
const DefaultAlpha = 0.2

// Config controls the shape and smoothing of a Pipeline.
type Config struct {
	// Channels is 3 (accelerometer only) or 6 (accelerometer and gyro).
	Channels int
	// Alpha weights the newest sample, 0 < Alpha <= 1.
	Alpha float64
}

// DefaultConfig returns a six-channel pipeline with alpha 0.2.
func DefaultConfig() Config {
	return Config{Channels: MaxChannels, Alpha: DefaultAlpha}
}

// ErrNoSamples is returned when an offset would be computed from zero samples.
var ErrNoSamples = errors.New("motion: no samples collected")

// Pipeline turns raw sensor readings into offset-corrected, smoothed samples.
// Not safe for concurrent use; the host loop is its only caller.
type Pipeline struct {
	src        Source
	channels   int
	alpha      float64
	offset     Sample
	filtered   Sample
	calibrated bool
}

// NewPipeline creates a Pipeline reading from src.
func NewPipeline(src Source, cfg Config) (*Pipeline, error) {
	if cfg.Channels != 3 && cfg.Channels != MaxChannels {
		return nil, fmt.Errorf("motion: channels must be 3 or %d, got %d", MaxChannels, cfg.Channels)
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("motion: alpha must be in (0,1], got %v", cfg.Alpha)
	}
	return &Pipeline{src: src, channels: cfg.Channels, alpha: cfg.Alpha}, nil
}

// Read takes one raw sample, subtracts the calibration offset and folds it
// into the filter. It returns the new filtered value.
func (p *Pipeline) Read() (Sample, error) {
	raw, err := p.readRaw()
	if err != nil {
		return p.filtered, err
	}
	p.filtered = Smooth(p.filtered, raw.Sub(p.offset), p.alpha)
	return p.filtered, nil
}

// Offset returns the current calibration offset.
func (p *Pipeline) Offset() Sample { return p.offset }

// Filtered returns the most recent filtered value without reading.
func (p *Pipeline) Filtered() Sample { return p.filtered }

// Calibrated reports whether a calibration has completed.
func (p *Pipeline) Calibrated() bool { return p.calibrated }

// Channels returns the configured channel count.
func (p *Pipeline) Channels() int { return p.channels }

func (p *Pipeline) readRaw() (Sample, error) {
	raw, err := p.src.ReadRaw()
	if err != nil {
		return Sample{}, fmt.Errorf("read sensor: %w", err)
	}
	return raw.truncate(p.channels), nil
}

// setOffset installs a freshly computed offset. The filter state is kept.
func (p *Pipeline) setOffset(off Sample) {
	p.offset = off.truncate(p.channels)
	p.calibrated = true
}

// Smooth applies one step of exponential smoothing:
// alpha*raw + (1-alpha)*prev, per channel.
func Smooth(prev, raw Sample, alpha float64) Sample {
	return raw.Scale(alpha).Add(prev.Scale(1 - alpha))
}

// MeanOffset divides the accumulated sum by n and removes gravity from the
// vertical channel.
func MeanOffset(sum Sample, n int) (Sample, error) {
	if n < 1 {
		return Sample{}, ErrNoSamples
	}
	off := sum.Scale(1 / float64(n))
	off[AccelZ] -= Gravity
	return off, nil
}
