package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/gekko3d/meshdraw/meshrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	ShapeSphere = "sphere"
	ShapePlane  = "plane"
)

// Config is the run description of one invocation. Zero values are replaced
// by defaults when the config is loaded.
type Config struct {
	Window WindowConfig `yaml:"window" toml:"window"`
	Mesh   MeshConfig   `yaml:"mesh" toml:"mesh"`
	Render RenderConfig `yaml:"render" toml:"render"`
	// Capture is an image path (.png, .bmp, .tif) the presented frame is written to.
	Capture string `yaml:"capture" toml:"capture"`
	Debug   bool   `yaml:"debug" toml:"debug"`
}

type WindowConfig struct {
	Width  int       `yaml:"width" toml:"width"`
	Height int       `yaml:"height" toml:"height"`
	Title  string    `yaml:"title" toml:"title"`
	Clear  []float64 `yaml:"clear" toml:"clear"`
}

type MeshConfig struct {
	// Path selects an asset file; Shape is ignored when it is set.
	Path          string            `yaml:"path" toml:"path"`
	Shape         string            `yaml:"shape" toml:"shape"`
	Extent        []float32         `yaml:"extent" toml:"extent"`
	Segments      []int             `yaml:"segments" toml:"segments"`
	InwardNormals bool              `yaml:"inward_normals" toml:"inward_normals"`
	Layout        []AttributeConfig `yaml:"layout" toml:"layout"`
}

type AttributeConfig struct {
	Semantic string `yaml:"semantic" toml:"semantic"`
	Format   string `yaml:"format" toml:"format"`
}

type RenderConfig struct {
	Wireframe bool   `yaml:"wireframe" toml:"wireframe"`
	Cull      string `yaml:"cull" toml:"cull"`
	// ColorFormat is empty for the surface's preferred format.
	ColorFormat string `yaml:"color_format" toml:"color_format"`
	// Shader is a WGSL file replacing the embedded mesh shader.
	Shader        string `yaml:"shader" toml:"shader"`
	VertexEntry   string `yaml:"vertex_entry" toml:"vertex_entry"`
	FragmentEntry string `yaml:"fragment_entry" toml:"fragment_entry"`
}

func DefaultConfig() *Config {
	c := &Config{}
	if err := c.normalize(); err != nil {
		panic(err)
	}
	return c
}

// LoadConfig reads a YAML or, for a .toml extension, TOML config file.
// Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config %s: %w", path, core.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	parse := ParseConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parse = ParseTOMLConfig
	}
	c, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func ParseConfig(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%v: %w", err, core.ErrInvalidParameter)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func ParseTOMLConfig(data []byte) (*Config, error) {
	c := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrInvalidParameter)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), core.ErrInvalidParameter)
}

func (c *Config) normalize() error {
	if c.Window.Width == 0 {
		c.Window.Width = 600
	}
	if c.Window.Height == 0 {
		c.Window.Height = 600
	}
	if c.Window.Width < 0 || c.Window.Height < 0 {
		return invalid("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Window.Title == "" {
		c.Window.Title = "meshdraw"
	}
	switch len(c.Window.Clear) {
	case 0:
		c.Window.Clear = []float64{1, 1, 0.8, 1}
	case 3:
		c.Window.Clear = append(c.Window.Clear, 1)
	case 4:
	default:
		return invalid("clear color needs 3 or 4 components, got %d", len(c.Window.Clear))
	}

	if c.Mesh.Shape == "" {
		c.Mesh.Shape = ShapeSphere
	}
	if c.Mesh.Shape != ShapeSphere && c.Mesh.Shape != ShapePlane {
		return invalid("mesh shape %q", c.Mesh.Shape)
	}
	switch len(c.Mesh.Extent) {
	case 0:
		c.Mesh.Extent = []float32{0.75, 0.75, 0.75}
	case 1:
		e := c.Mesh.Extent[0]
		c.Mesh.Extent = []float32{e, e, e}
	case 2:
		c.Mesh.Extent = append(c.Mesh.Extent, 0)
	case 3:
	default:
		return invalid("mesh extent needs 1 to 3 components, got %d", len(c.Mesh.Extent))
	}
	switch len(c.Mesh.Segments) {
	case 0:
		c.Mesh.Segments = []int{100, 100}
	case 1:
		c.Mesh.Segments = []int{c.Mesh.Segments[0], c.Mesh.Segments[0]}
	case 2:
	default:
		return invalid("mesh segments needs 1 or 2 components, got %d", len(c.Mesh.Segments))
	}
	if len(c.Mesh.Layout) == 0 {
		c.Mesh.Layout = []AttributeConfig{{Semantic: "position", Format: "float3"}}
	}
	if _, err := c.Layout(); err != nil {
		return err
	}

	if _, err := gpu.ParseCullMode(c.Render.Cull); err != nil {
		return err
	}
	if c.Render.ColorFormat != "" {
		if _, err := core.ParsePixelFormat(c.Render.ColorFormat); err != nil {
			return err
		}
	}
	return c.checkCapture()
}

func (c *Config) checkCapture() error {
	if c.Capture == "" || SupportsCaptureExtension(filepath.Ext(c.Capture)) {
		return nil
	}
	return invalid("capture %s: extension %q not one of .png .bmp .tif .tiff", c.Capture, filepath.Ext(c.Capture))
}

// Layout is the packed vertex layout the mesh is produced in and the pipeline is built for.
func (c *Config) Layout() (core.VertexLayout, error) {
	specs := make([]core.AttributeSpec, 0, len(c.Mesh.Layout))
	for _, a := range c.Mesh.Layout {
		s := core.ParseSemantic(a.Semantic)
		if s == core.SemanticUnknown {
			return core.VertexLayout{}, invalid("layout semantic %q", a.Semantic)
		}
		f, err := core.ParseVertexFormat(a.Format)
		if err != nil {
			return core.VertexLayout{}, err
		}
		specs = append(specs, core.AttributeSpec{Semantic: s, Format: f})
	}
	l := core.Packed(specs...)
	if err := l.Validate(); err != nil {
		return core.VertexLayout{}, err
	}
	return l, nil
}

func (c *Config) ClearColor() core.Color {
	cl := c.Window.Clear
	return core.Color{R: cl[0], G: cl[1], B: cl[2], A: cl[3]}
}

func (c *Config) Fill() core.FillMode {
	if c.Render.Wireframe {
		return core.FillWireframe
	}
	return core.FillSolid
}

func (c *Config) CullMode() gpu.CullMode {
	m, _ := gpu.ParseCullMode(c.Render.Cull)
	return m
}

func (c *Config) ColorFormat() core.PixelFormat {
	if c.Render.ColorFormat == "" {
		return core.PixelFormatUndefined
	}
	f, _ := core.ParsePixelFormat(c.Render.ColorFormat)
	return f
}

func (c *Config) extent3() mgl32.Vec3 {
	return mgl32.Vec3{c.Mesh.Extent[0], c.Mesh.Extent[1], c.Mesh.Extent[2]}
}
