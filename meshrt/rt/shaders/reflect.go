package shaders

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
)

type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "compute"
	}
}

// VertexInput is one @location input of a vertex entry point.
type VertexInput struct {
	Location uint32
	Name     string
	Type     string
	// Scalar is the component type: f32, i32, u32 or f16.
	Scalar     string
	Components int
	Semantic   core.Semantic
}

// Format is the float vertex format matching the input, or FormatInvalid for non-f32 inputs.
func (in VertexInput) Format() core.VertexFormat {
	if in.Scalar != "f32" {
		return core.FormatInvalid
	}
	return core.FloatFormat(in.Components)
}

type EntryPoint struct {
	Name  string
	Stage Stage
	Line  int
	// Inputs is sorted by location. Only vertex entry points have inputs.
	Inputs []VertexInput
}

// Module is the reflected interface of one WGSL source.
type Module struct {
	Source      string
	EntryPoints []EntryPoint
}

func (m *Module) Entry(name string) (EntryPoint, bool) {
	for _, e := range m.EntryPoints {
		if e.Name == name {
			return e, true
		}
	}
	return EntryPoint{}, false
}

// Names lists the entry point names in declaration order.
func (m *Module) Names() []string {
	out := make([]string, 0, len(m.EntryPoints))
	for _, e := range m.EntryPoints {
		out = append(out, e.Name)
	}
	return out
}

type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

type parsedStruct struct {
	name   string
	fields []parsedField
}

var (
	reStruct   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	reEntry    = regexp.MustCompile(`@(vertex|fragment|compute)\s*(?:@\w+\s*(?:\([^)]*\))?\s*)*fn\s+(\w+)\s*\(`)
	reLocation = regexp.MustCompile(`@location\s*\(\s*(\d+)\s*\)`)
	reBuiltin  = regexp.MustCompile(`@builtin\s*\(\s*\w+\s*\)`)
	reAttr     = regexp.MustCompile(`@\w+\s*(?:\([^)]*\))?`)
	reDecl     = regexp.MustCompile(`^(\w+)\s*:\s*(.+)$`)
	reVecType  = regexp.MustCompile(`^vec([234])\s*<\s*(f32|i32|u32|f16)\s*>$`)
	reVecShort = regexp.MustCompile(`^vec([234])([fiuh])$`)
)

// Reflect parses the entry points and vertex inputs of a WGSL source. It is a
// front end only; it does not type-check function bodies.
func Reflect(source string) (*Module, []core.Diagnostic) {
	r := reflector{src: source, code: stripComments(source)}
	r.checkBrackets()
	if len(r.diags) > 0 {
		return nil, r.diags
	}
	r.parseStructs()
	r.parseEntries()
	if len(r.diags) > 0 {
		return nil, r.diags
	}
	return &Module{Source: source, EntryPoints: r.entries}, nil
}

type reflector struct {
	src     string
	code    string
	structs map[string]parsedStruct
	entries []EntryPoint
	diags   []core.Diagnostic
}

func (r *reflector) errorf(offset int, format string, args ...any) {
	line, col := lineCol(r.code, offset)
	r.diags = append(r.diags, core.Diagnostic{Line: line, Column: col, Message: fmt.Sprintf(format, args...)})
}

func lineCol(s string, offset int) (int, int) {
	if offset > len(s) {
		offset = len(s)
	}
	line := 1 + strings.Count(s[:offset], "\n")
	col := offset - strings.LastIndex(s[:offset], "\n")
	return line, col
}

// stripComments blanks out comments, keeping newlines so offsets still map to lines.
func stripComments(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] != '/' || i+1 >= len(b) {
			continue
		}
		switch b[i+1] {
		case '/':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
		case '*':
			depth := 0
			for ; i < len(b); i++ {
				if i+1 < len(b) && b[i] == '/' && b[i+1] == '*' {
					depth++
					b[i], b[i+1] = ' ', ' '
					i++
					continue
				}
				if i+1 < len(b) && b[i] == '*' && b[i+1] == '/' {
					depth--
					b[i], b[i+1] = ' ', ' '
					i++
					if depth == 0 {
						break
					}
					continue
				}
				if b[i] != '\n' {
					b[i] = ' '
				}
			}
		}
	}
	return string(b)
}

func (r *reflector) checkBrackets() {
	pairs := map[byte]byte{')': '(', '}': '{', ']': '['}
	var stack []int
	for i := 0; i < len(r.code); i++ {
		c := r.code[i]
		switch c {
		case '(', '{', '[':
			stack = append(stack, i)
		case ')', '}', ']':
			if len(stack) == 0 || r.code[stack[len(stack)-1]] != pairs[c] {
				r.errorf(i, "unexpected '%c'", c)
				return
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		open := stack[len(stack)-1]
		r.errorf(open, "unclosed '%c'", r.code[open])
	}
}

func (r *reflector) parseStructs() {
	r.structs = map[string]parsedStruct{}
	for _, m := range reStruct.FindAllStringSubmatchIndex(r.code, -1) {
		name := r.code[m[2]:m[3]]
		body := r.code[m[4]:m[5]]
		ps := parsedStruct{name: name}
		for _, raw := range strings.Split(body, ",") {
			f, ok := parseDecl(raw)
			if !ok {
				continue
			}
			ps.fields = append(ps.fields, f)
		}
		r.structs[name] = ps
	}
}

// parseDecl reads "@attrs name: type" into a field. location is -1 when absent.
func parseDecl(raw string) (parsedField, bool) {
	f := parsedField{location: -1}
	if m := reLocation.FindStringSubmatch(raw); m != nil {
		loc, _ := strconv.Atoi(m[1])
		f.location = loc
	}
	f.isBuiltin = reBuiltin.MatchString(raw)
	rest := strings.TrimSpace(reAttr.ReplaceAllString(raw, ""))
	m := reDecl.FindStringSubmatch(rest)
	if m == nil {
		return f, false
	}
	f.name = m[1]
	f.typeName = strings.TrimSpace(m[2])
	return f, true
}

// splitParams splits on top-level commas of a parameter list.
func splitParams(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '<', '[':
			depth++
		case ')', '>', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		out = append(out, s[start:])
	}
	return out
}

func (r *reflector) parseEntries() {
	seen := map[string]bool{}
	for _, m := range reEntry.FindAllStringSubmatchIndex(r.code, -1) {
		stageName := r.code[m[2]:m[3]]
		name := r.code[m[4]:m[5]]
		if seen[name] {
			r.errorf(m[4], "redeclaration of entry point '%s'", name)
			continue
		}
		seen[name] = true

		ep := EntryPoint{Name: name}
		ep.Line, _ = lineCol(r.code, m[4])
		switch stageName {
		case "vertex":
			ep.Stage = StageVertex
		case "fragment":
			ep.Stage = StageFragment
		default:
			ep.Stage = StageCompute
		}

		open := m[1] - 1
		closeIdx := matchParen(r.code, open)
		if closeIdx < 0 {
			r.errorf(open, "unclosed parameter list of '%s'", name)
			continue
		}
		if ep.Stage == StageVertex {
			ep.Inputs = r.vertexInputs(name, open+1, r.code[open+1:closeIdx])
		}
		r.entries = append(r.entries, ep)
	}
}

func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (r *reflector) vertexInputs(entry string, base int, params string) []VertexInput {
	var inputs []VertexInput
	used := map[int]string{}
	add := func(at int, loc int, name, typeName string) {
		if prev, ok := used[loc]; ok {
			r.errorf(at, "'%s' reuses @location(%d) of '%s'", name, loc, prev)
			return
		}
		used[loc] = name
		scalar, n, ok := scalarType(typeName)
		if !ok {
			r.errorf(at, "vertex input '%s' has unsupported type '%s'", name, typeName)
			return
		}
		inputs = append(inputs, VertexInput{
			Location:   uint32(loc),
			Name:       name,
			Type:       typeName,
			Scalar:     scalar,
			Components: n,
			Semantic:   core.ParseSemantic(name),
		})
	}

	offset := base
	for _, raw := range splitParams(params) {
		at := offset + len(raw) - len(strings.TrimLeft(raw, " \t\r\n"))
		offset += len(raw) + 1
		p, ok := parseDecl(raw)
		if !ok {
			r.errorf(at, "malformed parameter in '%s'", entry)
			continue
		}
		switch {
		case p.location >= 0:
			add(at, p.location, p.name, p.typeName)
		case p.isBuiltin:
		default:
			st, ok := r.structs[p.typeName]
			if !ok {
				r.errorf(at, "parameter '%s' of '%s' needs @location or @builtin", p.name, entry)
				continue
			}
			for _, f := range st.fields {
				if f.location >= 0 {
					add(at, f.location, f.name, f.typeName)
				}
			}
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Location < inputs[j].Location })
	return inputs
}

// scalarType splits a WGSL scalar or vector type into component type and count.
func scalarType(t string) (string, int, bool) {
	t = strings.TrimSpace(t)
	switch t {
	case "f32", "i32", "u32", "f16":
		return t, 1, true
	}
	if m := reVecType.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		return m[2], n, true
	}
	if m := reVecShort.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		scalar := map[string]string{"f": "f32", "i": "i32", "u": "u32", "h": "f16"}[m[2]]
		return scalar, n, true
	}
	return "", 0, false
}
