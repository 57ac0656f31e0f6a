package motion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// SampleInterval is the calibration sampling cadence.
const SampleInterval = 10 * time.Millisecond

// DefaultCalibrationWindow matches the firmware default of three seconds.
const DefaultCalibrationWindow = 3 * time.Second

var (
	// ErrWindowTooShort is returned for windows shorter than one SampleInterval.
	ErrWindowTooShort = errors.New("motion: calibration window shorter than one sample interval")

	// ErrCalibrationCanceled is returned by Step after Cancel.
	ErrCalibrationCanceled = errors.New("motion: calibration canceled")
)

// Calibration accumulates samples over a window without blocking. The host
// calls Step on every loop iteration until it reports done.
type Calibration struct {
	p        *Pipeline
	start    time.Time
	next     time.Time
	window   time.Duration
	sum      Sample
	n        int
	done     bool
	canceled bool
}

// BeginCalibration starts a calibration window at now. The pipeline keeps
// its previous offset until the window completes.
func (p *Pipeline) BeginCalibration(window time.Duration, now time.Time) (*Calibration, error) {
	if window < SampleInterval {
		return nil, fmt.Errorf("%w: %v", ErrWindowTooShort, window)
	}
	return &Calibration{p: p, start: now, next: now, window: window}, nil
}

// Step takes a sample if one is due and finishes the calibration once the
// window has elapsed. A read error is returned without ending the window.
func (c *Calibration) Step(now time.Time) (bool, error) {
	if c.canceled {
		return true, ErrCalibrationCanceled
	}
	if c.done {
		return true, nil
	}

	if now.Sub(c.start) >= c.window {
		// A host that stalled through the whole window still gets one sample.
		if c.n == 0 {
			if err := c.sample(); err != nil {
				return false, err
			}
		}
		return true, c.finish()
	}

	if now.Before(c.next) {
		return false, nil
	}
	if err := c.sample(); err != nil {
		return false, err
	}
	c.next = now.Add(SampleInterval)
	return false, nil
}

// Samples returns the number of samples collected so far.
func (c *Calibration) Samples() int { return c.n }

// Cancel abandons the window. The previous offset stays in effect.
func (c *Calibration) Cancel() {
	if !c.done {
		c.canceled = true
	}
}

func (c *Calibration) sample() error {
	raw, err := c.p.readRaw()
	if err != nil {
		return fmt.Errorf("calibration sample %d: %w", c.n, err)
	}
	c.sum = c.sum.Add(raw)
	c.n++
	return nil
}

func (c *Calibration) finish() error {
	off, err := MeanOffset(c.sum, c.n)
	if err != nil {
		return err
	}
	c.p.setOffset(off)
	c.done = true
	return nil
}

// Calibrate runs a full calibration window, sampling every SampleInterval.
// It blocks until the window completes or ctx is done.
func (p *Pipeline) Calibrate(ctx context.Context, window time.Duration) error {
	c, err := p.BeginCalibration(window, time.Now())
	if err != nil {
		return err
	}

	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	for {
		done, err := c.Step(time.Now())
		if err != nil {
			c.Cancel()
			return err
		}
		if done {
			log.Printf("motion: calibrated over %d samples, offset=%.3f", c.n, p.offset)
			return nil
		}
		select {
		case <-ctx.Done():
			c.Cancel()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
