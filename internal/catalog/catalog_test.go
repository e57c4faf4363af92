package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	m, ok := c.Get("rm4_pro")
	require.True(t, ok)
	assert.Equal(t, "RM4 pro", m.Name)
	assert.Equal(t, IRRed, m.IR)
	assert.Equal(t, RFSweep, m.RF)
	assert.True(t, m.Sensors)
	assert.Equal(t, 50, m.Slots, "default slot capacity")
	assert.True(t, m.HasRF())

	ids := make([]string, 0)
	for _, m := range c.Models() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"rm4_mini", "rm4_pro", "rm_mini3", "rm_mini3_red", "rm_plus", "rm_pro"}, ids)
}

func TestBuiltin_Defaults(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	m, ok := c.Get("rm_mini3")
	require.True(t, ok)
	assert.Equal(t, IRPlain, m.IR)
	assert.Equal(t, RFNone, m.RF)
	assert.False(t, m.HasRF())
	assert.False(t, m.Sensors)
}

func TestLookup_ProtocolVariants(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	cases := []struct {
		devType int
		model   string
		ir, rf  string
	}{
		{0x2737, "rm_mini3", IRPlain, RFNone},
		{0x5f36, "rm_mini3_red", IRRed, RFNone},
		{0x279d, "rm_plus", IRPlain, RFLegacy},
		{0x27a9, "rm_plus", IRPlain, RFLegacy},
		{0x272a, "rm_pro", IRPlain, RFSweep},
		{0x649b, "rm4_pro", IRRed, RFSweep},
	}
	for _, tc := range cases {
		m, ok := c.Lookup(tc.devType)
		require.True(t, ok, "0x%04x", tc.devType)
		assert.Equal(t, tc.model, m.ID)
		assert.Equal(t, tc.ir, m.IR)
		assert.Equal(t, tc.rf, m.RF)
	}

	_, ok := c.Lookup(0xffff)
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	c, err := Builtin()
	require.NoError(t, err)

	m, err := c.Resolve(0x5f36, "", false)
	require.NoError(t, err)
	assert.Equal(t, "rm_mini3_red", m.ID)

	_, err = c.Resolve(0x1234, "", false)
	assert.EqualError(t, err, "unsupported device type 0x1234")

	m, err = c.Resolve(0x1234, "", true)
	require.NoError(t, err)
	assert.Equal(t, "rm_mini3", m.ID, "compat falls back to the default model")

	_, err = c.Resolve(0x2737, "rm4_pro", false)
	assert.EqualError(t, err, "device type 0x2737 is not compatible with model rm4_pro")

	m, err = c.Resolve(0x2737, "rm4_pro", true)
	require.NoError(t, err)
	assert.Equal(t, "rm4_pro", m.ID)

	_, err = c.Resolve(0x2737, "nope", true)
	assert.Error(t, err)
}

func TestCompile_SchemaViolation(t *testing.T) {
	cases := map[string]string{
		"bad ir variant": `
#Model: { name: string, types: [...int], ir: *"ir" | "ir-red", rf: *"none" | "rf-sweep", slots: *50 | int & >=1, sensors: *false | bool }
models: [string]: #Model
models: x: { name: "X", types: [1], ir: "blue" }
`,
		"zero slots": `
#Model: { name: string, types: [...int], ir: *"ir" | "ir-red", rf: *"none" | "rf-sweep", slots: *50 | int & >=1, sensors: *false | bool }
models: [string]: #Model
models: x: { name: "X", types: [1], slots: 0 }
`,
		"missing models": `default: "x"`,
		"duplicate type": `
models: a: { name: "A", types: [1], ir: "ir", rf: "none", slots: 1, sensors: false }
models: b: { name: "B", types: [1], ir: "ir", rf: "none", slots: 1, sensors: false }
`,
		"unknown default": `
default: "zz"
models: a: { name: "A", types: [1], ir: "ir", rf: "none", slots: 1, sensors: false }
`,
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Compile("test.cue", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_ExtendsBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
package catalog

models: rm_mini3: slots: 20
models: lab_blaster: {
	name: "Lab blaster"
	types: [0x7000]
	ir: "ir-red"
}
`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	m, ok := c.Get("rm_mini3")
	require.True(t, ok)
	assert.Equal(t, 20, m.Slots)

	m, ok = c.Lookup(0x7000)
	require.True(t, ok)
	assert.Equal(t, "lab_blaster", m.ID)
	assert.Equal(t, IRRed, m.IR)
	assert.Equal(t, 50, m.Slots)
}

func TestLoadFile_ConflictWithBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte(`models: rm_mini3: name: "Renamed"`), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err, "concrete built-in values cannot be overridden")
}
