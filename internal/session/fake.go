package session

import "sync"

// FakeStarter records the server addresses sessions were started for.
type FakeStarter struct {
	mu        sync.Mutex
	Addresses []string
}

// Start records serverAddress.
func (f *FakeStarter) Start(serverAddress string) {
	f.mu.Lock()
	f.Addresses = append(f.Addresses, serverAddress)
	f.mu.Unlock()
}

// Started returns a copy of the recorded addresses.
func (f *FakeStarter) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Addresses...)
}
