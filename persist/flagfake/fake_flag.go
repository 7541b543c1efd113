package flagfake

import (
	"sync"

	"github.com/jrsteele09/go-auth-session/persist"
)

var _ persist.Flag = (*Flag)(nil)

// Flag is an in-memory persist.Flag. GetErr/SetErr simulate storage faults.
type Flag struct {
	lock   sync.RWMutex
	value  bool
	sets   int
	GetErr error
	SetErr error
}

func New(initial bool) *Flag {
	return &Flag{value: initial}
}

func (f *Flag) Get() (bool, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	if f.GetErr != nil {
		return false, f.GetErr
	}
	return f.value, nil
}

func (f *Flag) Set(trustDevice bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	f.value = trustDevice
	f.sets++
	return nil
}

// Sets returns how many times the flag was written
func (f *Flag) Sets() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.sets
}
