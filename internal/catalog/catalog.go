// Package catalog maps device type codes to model capabilities.
//
// Models are declared in CUE. The schema in models.cue constrains every
// field and supplies defaults, so a decoded Model is always complete.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed models.cue
var builtinModels []byte

// IR capture variants.
const (
	IRPlain = "ir"
	IRRed   = "ir-red"
)

// RF capture variants.
const (
	RFNone   = "none"
	RFSweep  = "rf-sweep"
	RFLegacy = "rf-legacy"
)

// Model describes one device family.
type Model struct {
	ID      string `json:"-"`
	Name    string `json:"name"`
	Types   []int  `json:"types"`
	IR      string `json:"ir"`
	RF      string `json:"rf"`
	Slots   int    `json:"slots"`
	Sensors bool   `json:"sensors"`
}

// HasRF reports whether the model can learn RF commands.
func (m Model) HasRF() bool {
	return m.RF != "" && m.RF != RFNone
}

// Catalog is an immutable set of models.
type Catalog struct {
	models    map[string]Model
	byType    map[int]string
	defaultID string
}

// Error reports a catalog that failed to compile or validate.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Builtin returns the catalog embedded in the binary.
func Builtin() (*Catalog, error) {
	return Compile("models.cue", builtinModels)
}

// LoadFile compiles a catalog from a CUE file. The file is unified with
// the built-in schema, so it may add models or refine existing ones.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	ctx := cuecontext.New()
	base := ctx.CompileBytes(builtinModels, cue.Filename("models.cue"))
	extra := ctx.CompileBytes(data, cue.Filename(path))
	return fromValue(base.Unify(extra))
}

// Compile compiles a self-contained catalog source.
func Compile(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	return fromValue(ctx.CompileBytes(src, cue.Filename(filename)))
}

func fromValue(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{models: map[string]Model{}, byType: map[int]string{}}

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		id, err := dv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.defaultID = id
	}

	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return nil, &Error{Field: "models", Message: "models is required", Pos: v.Pos()}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		var m Model
		if err := iter.Value().Decode(&m); err != nil {
			return nil, formatCUEError(err)
		}
		m.ID = iter.Label()

		for _, t := range m.Types {
			if other, dup := c.byType[t]; dup {
				return nil, &Error{
					Field:   "models." + m.ID + ".types",
					Message: fmt.Sprintf("device type 0x%04x already belongs to %s", t, other),
					Pos:     iter.Value().Pos(),
				}
			}
			c.byType[t] = m.ID
		}
		c.models[m.ID] = m
	}

	if c.defaultID != "" {
		if _, ok := c.models[c.defaultID]; !ok {
			return nil, &Error{Field: "default", Message: fmt.Sprintf("unknown model %q", c.defaultID)}
		}
	}
	return c, nil
}

// Get returns the model with the given ID.
func (c *Catalog) Get(id string) (Model, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Lookup returns the model that lists devType.
func (c *Catalog) Lookup(devType int) (Model, bool) {
	id, ok := c.byType[devType]
	if !ok {
		return Model{}, false
	}
	return c.models[id], true
}

// Models returns every model sorted by ID.
func (c *Catalog) Models() []Model {
	out := make([]Model, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve picks the model of a device reporting devType.
//
// With modelID set, devType must belong to that model. Otherwise the model
// is found by devType. When compat is set, a mismatching or unknown type
// is accepted: it resolves to modelID if given, else the default model.
func (c *Catalog) Resolve(devType int, modelID string, compat bool) (Model, error) {
	found, known := c.Lookup(devType)

	if modelID != "" {
		want, ok := c.models[modelID]
		if !ok {
			return Model{}, fmt.Errorf("unknown model %q", modelID)
		}
		if (known && found.ID == want.ID) || compat {
			return want, nil
		}
		return Model{}, fmt.Errorf("device type 0x%04x is not compatible with model %s", devType, modelID)
	}

	if known {
		return found, nil
	}
	if compat && c.defaultID != "" {
		return c.models[c.defaultID], nil
	}
	return Model{}, fmt.Errorf("unsupported device type 0x%04x", devType)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
