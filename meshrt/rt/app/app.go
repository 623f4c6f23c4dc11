package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/gekko3d/meshdraw/meshrt/rt/geometry"
	"github.com/gekko3d/meshdraw/meshrt/rt/gpu"
	"github.com/gekko3d/meshdraw/meshrt/rt/shaders"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// App renders one frame of one mesh. Init brings up every stage in order and
// RenderOnce submits the frame; either aborts on the first error.
type App struct {
	Window *glfw.Window
	Config *Config
	Log    core.Logger

	Context  *gpu.Context
	Surface  *gpu.WGPUSurface
	Loader   *geometry.Loader
	Mesh     *core.MeshBuffer
	Program  *gpu.ShaderProgram
	Pipeline *gpu.PipelineState
	Encoder  *gpu.FrameEncoder
	Profiler *Profiler
}

func NewApp(window *glfw.Window, cfg *Config, log core.Logger) *App {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = core.LoggerOrNop(log)
	return &App{
		Window:   window,
		Config:   cfg,
		Log:      log,
		Loader:   geometry.NewLoader(log),
		Profiler: NewProfiler(),
	}
}

// Init creates the WebGPU device for the app's window and prepares the frame.
func (a *App) Init() error {
	if a.Window == nil {
		return fmt.Errorf("no window: %w", core.ErrDeviceUnavailable)
	}
	var backend *gpu.WGPUBackend
	err := a.Profiler.Stage("device", func() error {
		var err error
		backend, a.Surface, err = gpu.NewWGPU(a.Window, a.Config.ClearColor(), a.Log)
		return err
	})
	if err != nil {
		return err
	}
	return a.InitWith(backend, a.Surface)
}

// InitWith prepares the frame against an existing backend and surface.
func (a *App) InitWith(backend gpu.Backend, surface gpu.Surface) error {
	// flags may set the capture path after the config was loaded
	if err := a.Config.checkCapture(); err != nil {
		return err
	}
	ctx, err := gpu.NewContext(backend, surface, a.Log)
	if err != nil {
		return err
	}
	a.Context = ctx
	a.Log.Debugf("backend %s, surface format %s", backend.Name(), surface.PreferredFormat())

	if err := a.Profiler.Stage("geometry", a.loadMesh); err != nil {
		return err
	}
	if err := a.Profiler.Stage("compile", a.compileProgram); err != nil {
		return err
	}
	return a.Profiler.Stage("pipeline", a.buildPipeline)
}

func (a *App) loadMesh() error {
	layout, err := a.Config.Layout()
	if err != nil {
		return err
	}
	mc := a.Config.Mesh
	switch {
	case mc.Path != "":
		a.Mesh, err = a.Loader.Load(mc.Path, layout)
	case mc.Shape == ShapePlane:
		a.Mesh, err = geometry.GeneratePlane(geometry.PlaneParams{
			Extent:        mgl32.Vec2{mc.Extent[0], mc.Extent[1]},
			SegmentsU:     mc.Segments[0],
			SegmentsV:     mc.Segments[1],
			InwardNormals: mc.InwardNormals,
			Layout:        layout,
		})
	default:
		a.Mesh, err = geometry.GenerateSphere(geometry.SphereParams{
			Extent:        a.Config.extent3(),
			SegmentsU:     mc.Segments[0],
			SegmentsV:     mc.Segments[1],
			InwardNormals: mc.InwardNormals,
			Layout:        layout,
		})
	}
	if err != nil {
		return err
	}

	indices := 0
	for _, sm := range a.Mesh.Submeshes() {
		indices += sm.Count()
	}
	a.Profiler.SetCount("vertices", a.Mesh.VertexCount())
	a.Profiler.SetCount("indices", indices)
	a.Profiler.SetCount("submeshes", len(a.Mesh.Submeshes()))
	a.Log.Infof("mesh %q: %d vertices, %d indices, layout %s", a.Mesh.Name(), a.Mesh.VertexCount(), indices, a.Mesh.Layout())
	return nil
}

func (a *App) compileProgram() error {
	label, source := "mesh", shaders.MeshWGSL
	if path := a.Config.Render.Shader; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("shader %s: %w", path, core.ErrAssetNotFound)
			}
			return fmt.Errorf("shader %s: %w", path, err)
		}
		label, source = path, string(data)
	}
	prog, err := a.Context.CompileProgram(label, source)
	if err != nil {
		return err
	}
	a.Program = prog
	a.Log.Debugf("shader %s: entry points %v", label, prog.Module().Names())
	return nil
}

func (a *App) buildPipeline() error {
	ps, err := a.Context.BuildPipeline(gpu.PipelineDesc{
		Label:         "mesh",
		Program:       a.Program,
		VertexEntry:   a.Config.Render.VertexEntry,
		FragmentEntry: a.Config.Render.FragmentEntry,
		Layout:        a.Mesh.Layout(),
		ColorFormat:   a.Config.ColorFormat(),
		CullMode:      a.Config.CullMode(),
	})
	if err != nil {
		return err
	}
	a.Pipeline = ps
	return nil
}

// RenderOnce submits the single frame and writes the capture if one is configured.
func (a *App) RenderOnce() error {
	if a.Pipeline == nil {
		return fmt.Errorf("render before init: %w", core.ErrInvalidParameter)
	}
	a.Encoder = a.Context.NewFrameEncoder()
	a.Encoder.Capture = a.Config.Capture != ""

	err := a.Profiler.Stage("frame", func() error {
		return a.Encoder.SubmitFrame(a.Pipeline, a.Mesh, a.Config.Fill(), a.Context.Surface())
	})
	if err != nil {
		a.Log.Errorf("frame aborted in state %s: %v", a.Encoder.State(), err)
		return err
	}

	if a.Encoder.Capture {
		err := a.Profiler.Stage("capture", func() error {
			return WriteCapture(a.Config.Capture, a.Encoder.Captured())
		})
		if err != nil {
			return err
		}
		a.Log.Infof("frame written to %s", a.Config.Capture)
	}

	if a.Log.DebugEnabled() {
		a.Log.Debugf("\n%s", a.Profiler.GetStatsString())
	}
	return nil
}

// Resize follows framebuffer changes of the window while it is held open.
func (a *App) Resize(width, height int) {
	if a.Surface != nil {
		a.Surface.Resize(width, height)
	}
}

func (a *App) Release() {
	if a.Pipeline != nil {
		a.Pipeline.Release()
		a.Pipeline = nil
	}
	if a.Program != nil {
		a.Program.Release()
		a.Program = nil
	}
	if a.Surface != nil {
		a.Surface.Release()
		a.Surface = nil
	}
	if a.Context != nil {
		a.Context.Release()
		a.Context = nil
	}
}
