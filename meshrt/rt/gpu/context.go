package gpu

import (
	"fmt"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
)

// Context carries the device capabilities every stage needs. It replaces
// process-wide device and queue globals; pass it explicitly.
type Context struct {
	backend Backend
	surface Surface
	log     core.Logger
}

func NewContext(backend Backend, surface Surface, log core.Logger) (*Context, error) {
	if backend == nil {
		return nil, fmt.Errorf("no backend: %w", core.ErrDeviceUnavailable)
	}
	if surface == nil {
		return nil, fmt.Errorf("no surface: %w", core.ErrDeviceUnavailable)
	}
	return &Context{backend: backend, surface: surface, log: core.LoggerOrNop(log)}, nil
}

func (c *Context) Backend() Backend    { return c.backend }
func (c *Context) Surface() Surface    { return c.surface }
func (c *Context) Logger() core.Logger { return c.log }

// Release releases the backend. Objects created through the context must be released first.
func (c *Context) Release() {
	if c.backend != nil {
		c.backend.Release()
		c.backend = nil
	}
}
