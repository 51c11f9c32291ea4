package factory

import (
	"errors"
	"sync"
)

// Closers collects the release functions of the resources the factories open
type Closers struct {
	mu  sync.Mutex
	fns []func() error
}

// NewClosers creates an empty closer list
func NewClosers() *Closers {
	return &Closers{}
}

// Add registers a release function
func (c *Closers) Add(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, fn)
}

// Close runs the release functions in reverse order of registration
func (c *Closers) Close() error {
	c.mu.Lock()
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
