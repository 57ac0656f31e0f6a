package gpio

// FakeOutput is a test double that records every level written.
type FakeOutput struct {
	// Levels contains every value passed to Set, in order.
	Levels []bool

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set (the level is not recorded).
	SetError error
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(high bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Levels = append(f.Levels, high)
	return nil
}

// Level returns the last written level, LOW if nothing was written.
func (f *FakeOutput) Level() bool {
	if len(f.Levels) == 0 {
		return false
	}
	return f.Levels[len(f.Levels)-1]
}

// Writes returns the number of successful Set calls.
func (f *FakeOutput) Writes() int {
	return len(f.Levels)
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded levels.
func (f *FakeOutput) Reset() {
	f.Levels = nil
	f.Closed = false
	f.SetError = nil
}
