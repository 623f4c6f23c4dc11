package gpu

import (
	"fmt"
	"strings"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/gekko3d/meshdraw/meshrt/rt/shaders"
)

// ShaderProgram is a compiled source module holding every stage's entry points.
type ShaderProgram struct {
	label  string
	module *shaders.Module
	handle ShaderModule
}

// CompileProgram reflects source and creates the device module. Any failure
// is a *core.CompileError; it is not retried.
func (c *Context) CompileProgram(label, source string) (*ShaderProgram, error) {
	mod, diags := shaders.Reflect(source)
	if len(diags) > 0 {
		for _, d := range diags {
			c.log.Errorf("shader %s: %s", label, d)
		}
		return nil, &core.CompileError{Label: label, Diagnostics: diags}
	}
	handle, err := c.backend.CreateShaderModule(label, source)
	if err != nil {
		c.log.Errorf("shader %s: %v", label, err)
		return nil, &core.CompileError{Label: label, Diagnostics: []core.Diagnostic{{Message: err.Error()}}}
	}
	c.log.Debugf("shader %s: entry points %v", label, mod.Names())
	return &ShaderProgram{label: label, module: mod, handle: handle}, nil
}

func (p *ShaderProgram) Label() string           { return p.label }
func (p *ShaderProgram) Module() *shaders.Module { return p.module }

// ResolveEntry looks up an entry point by exact name and stage.
func (p *ShaderProgram) ResolveEntry(name string, stage shaders.Stage) (shaders.EntryPoint, error) {
	ep, ok := p.module.Entry(name)
	if !ok {
		return shaders.EntryPoint{}, fmt.Errorf("%s entry %q in %s (have %s): %w",
			stage, name, p.label, strings.Join(p.module.Names(), ", "), core.ErrEntryPointNotFound)
	}
	if ep.Stage != stage {
		return shaders.EntryPoint{}, fmt.Errorf("entry %q in %s is a %s entry, want %s: %w",
			name, p.label, ep.Stage, stage, core.ErrEntryPointNotFound)
	}
	return ep, nil
}

func (p *ShaderProgram) Release() {
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
}
