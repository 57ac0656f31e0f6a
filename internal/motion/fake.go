package motion

import "errors"

// FakeSource is a test double that returns scripted samples.
type FakeSource struct {
	// Samples contains the scripted readings. Each call to ReadRaw consumes
	// the next one; once exhausted the last sample is repeated.
	Samples []Sample

	index int

	// Reads counts ReadRaw calls, including failed ones.
	Reads int

	// Closed tracks if Close was called.
	Closed bool

	// ReadError, if set, will be returned by ReadRaw.
	ReadError error
}

// NewFakeSource creates a FakeSource with the given samples.
func NewFakeSource(samples ...Sample) *FakeSource {
	return &FakeSource{Samples: samples}
}

// ReadRaw returns the next scripted sample.
func (f *FakeSource) ReadRaw() (Sample, error) {
	f.Reads++
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
