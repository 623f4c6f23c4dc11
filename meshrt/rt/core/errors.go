package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind groups failures by who has to act on them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConfiguration is a caller bug: invalid shape or layout parameters.
	KindConfiguration
	// KindResource means the device, queue or drawable was unavailable.
	KindResource
	// KindCompile means the shader source has to be fixed.
	KindCompile
	// KindValidation is a layout or format mismatch between mesh, shader and surface.
	KindValidation
	// KindAsset covers missing, unsupported or empty asset files.
	KindAsset
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindResource:
		return "ResourceError"
	case KindCompile:
		return "CompileError"
	case KindValidation:
		return "ValidationError"
	case KindAsset:
		return "AssetError"
	default:
		return "UnknownError"
	}
}

// Error is a sentinel failure with a kind. Wrap it with fmt.Errorf and %w
// to add context; errors.Is still matches.
type Error struct {
	Kind ErrorKind
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

func newError(kind ErrorKind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

var (
	ErrInvalidParameter = newError(KindConfiguration, "invalid parameter")
	ErrInvalidLayout    = newError(KindConfiguration, "invalid vertex layout")

	ErrDeviceUnavailable   = newError(KindResource, "device unavailable")
	ErrQueueExhausted      = newError(KindResource, "command queue exhausted")
	ErrNoDrawableAvailable = newError(KindResource, "no drawable available")
	ErrAllocationFailed    = newError(KindResource, "gpu allocation failed")

	ErrCompile = newError(KindCompile, "shader compile error")

	ErrEntryPointNotFound     = newError(KindValidation, "entry point not found")
	ErrLayoutMismatch         = newError(KindValidation, "vertex layout mismatch")
	ErrUnsupportedColorFormat = newError(KindValidation, "unsupported color format")
	ErrEmptyDrawable          = newError(KindValidation, "mesh has no submeshes")

	ErrUnsupportedFormat = newError(KindAsset, "unsupported asset format")
	ErrAssetNotFound     = newError(KindAsset, "asset not found")
	ErrEmptyAsset        = newError(KindAsset, "asset contains no drawable objects")
	ErrMalformedAsset    = newError(KindAsset, "malformed asset")
)

// KindOf returns the kind of the first *Error or *CompileError in err's chain.
func KindOf(err error) ErrorKind {
	var ce *CompileError
	if errors.As(err, &ce) {
		return KindCompile
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Diagnostic is one compiler message. Line and Column are 1-based; zero means unknown.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

type CompileError struct {
	Label       string
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	msgs := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		msgs = append(msgs, d.String())
	}
	return fmt.Sprintf("compile %s: %s", e.Label, strings.Join(msgs, "; "))
}

func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}
