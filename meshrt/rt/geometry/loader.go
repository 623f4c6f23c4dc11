package geometry

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
)

// DecodedObject is one object of an asset in its on-disk attribute layout.
type DecodedObject struct {
	Name        string
	Layout      core.VertexLayout
	Vertices    []byte
	VertexCount int
	Submeshes   []core.Submesh
}

// AssetDecoder turns a mesh file into objects. SupportsExtension is queried
// with the lower-cased extension including the dot.
type AssetDecoder interface {
	SupportsExtension(ext string) bool
	Decode(r io.Reader) ([]DecodedObject, error)
}

// Loader reads mesh files from disk and re-projects them onto a requested layout.
type Loader struct {
	Decoders []AssetDecoder
	Logger   core.Logger
}

func NewLoader(logger core.Logger) *Loader {
	return &Loader{
		Decoders: []AssetDecoder{OBJDecoder{}},
		Logger:   core.LoggerOrNop(logger),
	}
}

func (l *Loader) decoderFor(path string) (AssetDecoder, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, d := range l.Decoders {
		if d.SupportsExtension(ext) {
			return d, true
		}
	}
	return nil, false
}

// SupportsExtension reports whether any registered decoder handles ext.
func (l *Loader) SupportsExtension(ext string) bool {
	_, ok := l.decoderFor("x" + ext)
	return ok
}

// Load decodes path and returns its first drawable object laid out per layout.
func (l *Loader) Load(path string, layout core.VertexLayout) (*core.MeshBuffer, error) {
	log := core.LoggerOrNop(l.Logger)

	dec, ok := l.decoderFor(path)
	if !ok {
		return nil, fmt.Errorf("load %s: extension %q: %w", path, filepath.Ext(path), core.ErrUnsupportedFormat)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, core.ErrAssetNotFound)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer f.Close()

	objects, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var obj *DecodedObject
	for i := range objects {
		if len(objects[i].Submeshes) > 0 && objects[i].VertexCount > 0 {
			obj = &objects[i]
			break
		}
	}
	if obj == nil {
		return nil, fmt.Errorf("load %s: %w", path, core.ErrEmptyAsset)
	}
	if len(objects) > 1 {
		log.Debugf("%s: using object %q, %d objects in file", path, obj.Name, len(objects))
	}

	data, synthesized, err := Reproject(obj.Layout, obj.Vertices, obj.VertexCount, layout)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for _, s := range synthesized {
		log.Warnf("%s: object %q has no %s attribute, filled with defaults", path, obj.Name, s)
	}

	name := obj.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return core.NewMeshBuffer(name, layout, data, obj.VertexCount, obj.Submeshes)
}
