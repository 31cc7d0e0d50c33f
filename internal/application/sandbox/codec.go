package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/tetratelabs/wazero/api"

	"github.com/execution-hub/fnhub/internal/domain/function"
)

// codec converts one value type between JSON numbers and the raw uint64
// representation used at the wazero call boundary.
type codec struct {
	wasm   api.ValueType
	decode func(json.Number) (uint64, error)
	encode func(uint64) (any, error)
}

var codecs = map[function.ValueType]codec{
	function.ValueI32: {
		wasm: api.ValueTypeI32,
		decode: func(n json.Number) (uint64, error) {
			v, err := strconv.ParseInt(n.String(), 10, 32)
			if err != nil {
				return 0, err
			}
			return api.EncodeI32(int32(v)), nil
		},
		encode: func(v uint64) (any, error) { return api.DecodeI32(v), nil },
	},
	function.ValueI64: {
		wasm: api.ValueTypeI64,
		decode: func(n json.Number) (uint64, error) {
			v, err := strconv.ParseInt(n.String(), 10, 64)
			if err != nil {
				return 0, err
			}
			return uint64(v), nil
		},
		encode: func(v uint64) (any, error) { return int64(v), nil },
	},
	function.ValueF32: {
		wasm: api.ValueTypeF32,
		decode: func(n json.Number) (uint64, error) {
			v, err := strconv.ParseFloat(n.String(), 32)
			if err != nil {
				return 0, err
			}
			return api.EncodeF32(float32(v)), nil
		},
		encode: func(v uint64) (any, error) { return finite(float64(api.DecodeF32(v))) },
	},
	function.ValueF64: {
		wasm: api.ValueTypeF64,
		decode: func(n json.Number) (uint64, error) {
			v, err := strconv.ParseFloat(n.String(), 64)
			if err != nil {
				return 0, err
			}
			return api.EncodeF64(v), nil
		},
		encode: func(v uint64) (any, error) { return finite(api.DecodeF64(v)) },
	},
}

func finite(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("result %v has no JSON representation", f)
	}
	return f, nil
}

// decodeParams turns a JSON array into call arguments. Empty or null input
// is accepted for nullary functions.
func decodeParams(types []function.ValueType, params json.RawMessage) ([]uint64, error) {
	var values []any
	if trimmed := bytes.TrimSpace(params); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("%w: params must be a JSON array", ErrBadParams)
		}
	}
	if len(values) != len(types) {
		return nil, fmt.Errorf("%w: expected %d params, got %d", ErrBadParams, len(types), len(values))
	}
	args := make([]uint64, len(values))
	for i, v := range values {
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: param %d is not a number", ErrBadParams, i)
		}
		c, ok := codecs[types[i]]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported value type %q", ErrBadParams, types[i])
		}
		arg, err := c.decode(n)
		if err != nil {
			return nil, fmt.Errorf("%w: param %d: %v", ErrBadParams, i, err)
		}
		args[i] = arg
	}
	return args, nil
}

// encodeResults renders call results: null for none, a scalar for one,
// an array otherwise.
func encodeResults(types []function.ValueType, results []uint64) (json.RawMessage, error) {
	if len(results) != len(types) {
		return nil, fmt.Errorf("expected %d results, got %d", len(types), len(results))
	}
	values := make([]any, len(results))
	for i, r := range results {
		v, err := codecs[types[i]].encode(r)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	switch len(values) {
	case 0:
		return nil, nil
	case 1:
		return json.Marshal(values[0])
	}
	return json.Marshal(values)
}

// matches reports whether an exported function has the declared signature.
func matches(def api.FunctionDefinition, rt function.Runtime) bool {
	return sameTypes(def.ParamTypes(), rt.Params) && sameTypes(def.ResultTypes(), rt.Results)
}

func typeNames(vts []api.ValueType) []string {
	names := make([]string, len(vts))
	for i, vt := range vts {
		names[i] = api.ValueTypeName(vt)
	}
	return names
}

func sameTypes(got []api.ValueType, want []function.ValueType) bool {
	if len(got) != len(want) {
		return false
	}
	for i, vt := range want {
		c, ok := codecs[vt]
		if !ok || c.wasm != got[i] {
			return false
		}
	}
	return true
}
