package function

import (
	"fmt"
	"strings"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

// RuntimeKind identifies the execution runtime. Only WASM is supported.
type RuntimeKind string

const RuntimeWasm RuntimeKind = "wasm"

// ValueType is a WebAssembly value type at the call boundary.
type ValueType string

const (
	ValueI32 ValueType = "i32"
	ValueI64 ValueType = "i64"
	ValueF32 ValueType = "f32"
	ValueF64 ValueType = "f64"
)

// Runtime carries the typed call boundary of a function.
type Runtime struct {
	Kind       RuntimeKind `json:"kind" yaml:"kind"`
	Entrypoint string      `json:"entrypoint" yaml:"entrypoint"`
	Params     []ValueType `json:"params,omitempty" yaml:"params"`
	Results    []ValueType `json:"results,omitempty" yaml:"results"`
}

// Validate checks the runtime declaration.
func (r Runtime) Validate() error {
	if r.Kind != RuntimeWasm {
		return fmt.Errorf("unsupported runtime %q", r.Kind)
	}
	if strings.TrimSpace(r.Entrypoint) == "" {
		return fmt.Errorf("entrypoint is required")
	}
	for _, vt := range append(append([]ValueType{}, r.Params...), r.Results...) {
		switch vt {
		case ValueI32, ValueI64, ValueF32, ValueF64:
		default:
			return fmt.Errorf("unsupported value type %q", vt)
		}
	}
	return nil
}

// Function is a registered, routable unit of code.
type Function struct {
	ID          types.ID        `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreateTime  types.TimeStamp `json:"createTime"`
	Runtime     Runtime         `json:"runtime"`
	InputType   InputKind       `json:"inputType"`
	BlobAddress string          `json:"blobAddress"`
	Digest      string          `json:"digest,omitempty"`
}

// Validate checks required fields.
func (f Function) Validate() error {
	if f.ID.IsNil() {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(f.Name, "/ ") {
		return fmt.Errorf("name %q must not contain slashes or spaces", f.Name)
	}
	if strings.TrimSpace(f.BlobAddress) == "" {
		return fmt.Errorf("blobAddress is required")
	}
	return f.Runtime.Validate()
}

// PathEntry binds a two-level logical path to a function.
type PathEntry struct {
	Root     string   `json:"root"`
	SubPath  string   `json:"subPath"`
	Function Function `json:"function"`
}
