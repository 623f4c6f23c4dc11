package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/gekko3d/meshdraw/meshrt/rt/app"
	"github.com/gekko3d/meshdraw/meshrt/rt/core"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML or TOML run config")
	debug := flag.Bool("debug", false, "Enable debug logging and stage timings")
	wireframe := flag.Bool("wireframe", false, "Draw triangle edges instead of filled triangles")
	objPath := flag.String("obj", "", "Render an .obj file instead of the procedural mesh")
	capture := flag.String("capture", "", "Write the presented frame to a .png, .bmp or .tif file")
	hold := flag.Bool("hold", false, "Keep the window open after the frame until it is closed")
	flag.Parse()

	log := core.NewDefaultLogger("meshdraw", *debug)
	if err := run(log, *configPath, *debug, *wireframe, *objPath, *capture, *hold); err != nil {
		log.Errorf("%s: %v", core.KindOf(err), err)
		os.Exit(1)
	}
}

func run(log core.Logger, configPath string, debug, wireframe bool, objPath, capture string, hold bool) error {
	cfg := app.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = app.LoadConfig(configPath); err != nil {
			return err
		}
	}
	if debug {
		cfg.Debug = true
	}
	if wireframe {
		cfg.Render.Wireframe = true
	}
	if objPath != "" {
		cfg.Mesh.Path = objPath
	}
	if capture != "" {
		cfg.Capture = capture
	}
	log.SetDebug(cfg.Debug)

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg, log)
	defer application.Release()
	if err := application.Init(); err != nil {
		return err
	}
	if err := application.RenderOnce(); err != nil {
		return err
	}

	if !hold {
		return nil
	}
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})
	for !window.ShouldClose() {
		glfw.WaitEvents()
	}
	return nil
}
