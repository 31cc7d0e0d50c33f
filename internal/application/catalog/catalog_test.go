package catalog

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

func testFunction(name string) function.Function {
	return function.Function{
		ID:          types.NameID(name),
		Name:        name,
		Description: name + " two integers",
		CreateTime:  types.Now(),
		Runtime: function.Runtime{
			Kind:       function.RuntimeWasm,
			Entrypoint: name,
			Params:     []function.ValueType{function.ValueI32, function.ValueI32},
			Results:    []function.ValueType{function.ValueI32},
		},
		InputType:   function.ListOf(function.Number),
		BlobAddress: name + ".wasm",
	}
}

func TestRegisterAndResolve(t *testing.T) {
	c := New(zerolog.Nop())
	add := testFunction("add")
	require.NoError(t, c.Register(add))
	require.NoError(t, c.BindPath("math", "add", add.ID))

	got, err := c.Resolve("math", "add")
	require.NoError(t, err)
	assert.Equal(t, add, got)

	byID, err := c.FunctionByID(add.ID)
	require.NoError(t, err)
	assert.Equal(t, add, byID)

	byName, err := c.FunctionByName("add")
	require.NoError(t, err)
	assert.Equal(t, add, byName)
}

func TestResolveUnboundPath(t *testing.T) {
	c := New(zerolog.Nop())
	_, err := c.Resolve("math", "pow")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.FunctionByID(types.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBindPathRequiresRegisteredFunction(t *testing.T) {
	c := New(zerolog.Nop())
	err := c.BindPath("math", "add", types.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, c.ListPaths())
}

func TestBindPathOverwrites(t *testing.T) {
	c := New(zerolog.Nop())
	add, sub := testFunction("add"), testFunction("sub")
	require.NoError(t, c.Register(add))
	require.NoError(t, c.Register(sub))
	require.NoError(t, c.BindPath("math", "op", add.ID))
	require.NoError(t, c.BindPath("math", "op", sub.ID))

	got, err := c.Resolve("math", "op")
	require.NoError(t, err)
	assert.Equal(t, "sub", got.Name)
	assert.Len(t, c.ListPaths(), 1)
}

func TestReRegisterIsIdempotent(t *testing.T) {
	c := New(zerolog.Nop())
	add := testFunction("add")
	require.NoError(t, c.Register(add))
	require.NoError(t, c.BindPath("math", "add", add.ID))
	before, err := c.Resolve("math", "add")
	require.NoError(t, err)

	require.NoError(t, c.Register(add))
	after, err := c.Resolve("math", "add")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReRegisterWithoutCreateTimeIsIdempotent(t *testing.T) {
	c := New(zerolog.Nop())
	add := testFunction("add")
	add.CreateTime = types.TimeStamp{}
	require.NoError(t, c.Register(add))
	require.NoError(t, c.BindPath("math", "add", add.ID))
	before, err := c.Resolve("math", "add")
	require.NoError(t, err)
	assert.False(t, before.CreateTime.IsZero())

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Register(add))
	after, err := c.Resolve("math", "add")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReSeedIsIdempotent(t *testing.T) {
	m, err := ParseManifest([]byte(manifestYAML))
	require.NoError(t, err)
	c := New(zerolog.Nop())
	require.NoError(t, c.Seed(m))
	before := c.ListPaths()

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Seed(m))
	assert.Equal(t, before, c.ListPaths())
}

func TestRedeployOverwritesByID(t *testing.T) {
	c := New(zerolog.Nop())
	add := testFunction("add")
	require.NoError(t, c.Register(add))
	require.NoError(t, c.BindPath("math", "add", add.ID))

	add.Description = "v2"
	require.NoError(t, c.Register(add))
	got, _ := c.Resolve("math", "add")
	assert.Equal(t, "v2", got.Description)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	c := New(zerolog.Nop())
	add := testFunction("add")
	require.NoError(t, c.Register(add))

	clash := add
	clash.ID = types.NewID()
	assert.Error(t, c.Register(clash))
}

func TestPathEntriesRoundTrip(t *testing.T) {
	c := New(zerolog.Nop())
	for _, name := range []string{"sub", "add", "div"} {
		fn := testFunction(name)
		require.NoError(t, c.Register(fn))
		require.NoError(t, c.BindPath("math", name, fn.ID))
	}
	require.NoError(t, c.BindPath("arith", "plus", types.NameID("add")))

	entries := c.ListPaths()
	data, err := EncodePaths(entries)
	require.NoError(t, err)
	decoded, err := DecodePaths(data)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
	assert.Equal(t, "arith", decoded[0].Root)
}

func TestDecodePathsRejectsDuplicates(t *testing.T) {
	fn := testFunction("add")
	data, err := EncodePaths([]function.PathEntry{
		{Root: "math", SubPath: "add", Function: fn},
		{Root: "math", SubPath: "add", Function: fn},
	})
	require.NoError(t, err)
	_, err = DecodePaths(data)
	assert.Error(t, err)
}

const manifestYAML = `
functions:
  - name: add
    description: adds two integers
    runtime:
      params: [i32, i32]
      results: [i32]
    input:
      list: number
    routes:
      - root: math
        subPath: add
  - name: hello
    runtime:
      entrypoint: _start
    blob: hello/hello.wasm
    routes:
      - root: hello
`

func TestSeedFromManifest(t *testing.T) {
	m, err := ParseManifest([]byte(manifestYAML))
	require.NoError(t, err)
	require.Len(t, m.Functions, 2)

	c := New(zerolog.Nop())
	require.NoError(t, c.Seed(m))

	add, err := c.Resolve("math", "add")
	require.NoError(t, err)
	assert.Equal(t, types.NameID("add"), add.ID)
	assert.Equal(t, "add", add.Runtime.Entrypoint)
	assert.Equal(t, function.RuntimeWasm, add.Runtime.Kind)
	assert.Equal(t, function.ListOf(function.Number), add.InputType)
	assert.Equal(t, "add.wasm", add.BlobAddress)

	hello, err := c.Resolve("hello", "")
	require.NoError(t, err)
	assert.Equal(t, "_start", hello.Runtime.Entrypoint)
	assert.Equal(t, function.None, hello.InputType)
	assert.Equal(t, "hello/hello.wasm", hello.BlobAddress)
}

func TestSeedRejectsInvalidFunction(t *testing.T) {
	m, err := ParseManifest([]byte("functions:\n  - name: bad\n    runtime:\n      params: [v128]\n"))
	require.NoError(t, err)
	assert.Error(t, New(zerolog.Nop()).Seed(m))
}
