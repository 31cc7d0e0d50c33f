package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"gopkg.in/yaml.v3"

	"github.com/execution-hub/fnhub/internal/application/catalog"
	"github.com/execution-hub/fnhub/internal/domain/function"
)

type options struct {
	dir     string
	root    string
	input   string
	exports string
	noPin   bool
}

// manifest-gen compiles every .wasm module under -dir and prints a
// functions.yaml entry for each exported function with a supported
// signature.
func main() {
	var opt options
	flag.StringVar(&opt.dir, "dir", "deploy/functions", "directory holding .wasm modules")
	flag.StringVar(&opt.root, "root", "", "route root; defaults to the module file name")
	flag.StringVar(&opt.input, "input", "", "input kind: none|object|string|number|list:<kind>; default list:number for functions with params")
	flag.StringVar(&opt.exports, "exports", "", "comma-separated exports to include; default all")
	flag.BoolVar(&opt.noPin, "no-digest", false, "omit the content digest")
	flag.Parse()

	input, err := parseInput(opt.input)
	if err != nil {
		log.Fatal(err)
	}
	modules, err := filepath.Glob(filepath.Join(opt.dir, "*.wasm"))
	if err != nil {
		log.Fatal(err)
	}
	if len(modules) == 0 {
		log.Fatalf("no .wasm modules in %s", opt.dir)
	}
	sort.Strings(modules)

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	include := splitCSV(opt.exports)
	var m catalog.Manifest
	for _, path := range modules {
		fns, err := describe(ctx, rt, path, opt, input, include)
		if err != nil {
			log.Fatal(err)
		}
		m.Functions = append(m.Functions, fns...)
	}

	out, err := yaml.Marshal(m)
	if err != nil {
		log.Fatal(err)
	}
	_, _ = os.Stdout.Write(out)
}

func describe(ctx context.Context, rt wazero.Runtime, path string, opt options, input *function.InputKind, include []string) ([]catalog.ManifestFunction, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	compiled, err := rt.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	defer compiled.Close(ctx)

	blob := filepath.Base(path)
	root := opt.root
	if root == "" {
		root = strings.TrimSuffix(blob, ".wasm")
	}
	digest := function.Digest(code)
	if opt.noPin {
		digest = ""
	}

	exports := compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		if len(include) > 0 && !contains(include, name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]catalog.ManifestFunction, 0, len(names))
	for _, name := range names {
		def := exports[name]
		params, err := valueTypes(def.ParamTypes())
		if err != nil {
			log.Printf("skipping %s/%s: %v", blob, name, err)
			continue
		}
		results, err := valueTypes(def.ResultTypes())
		if err != nil {
			log.Printf("skipping %s/%s: %v", blob, name, err)
			continue
		}
		kind := function.None
		if len(params) > 0 {
			kind = function.ListOf(function.Number)
		}
		if input != nil {
			kind = *input
		}
		out = append(out, catalog.ManifestFunction{
			Name: name,
			Runtime: function.Runtime{
				Kind:       function.RuntimeWasm,
				Entrypoint: name,
				Params:     params,
				Results:    results,
			},
			Input:  kind,
			Blob:   blob,
			Digest: digest,
			Routes: []catalog.ManifestRoute{{Root: root, SubPath: name}},
		})
	}
	return out, nil
}

func valueTypes(types []api.ValueType) ([]function.ValueType, error) {
	out := make([]function.ValueType, 0, len(types))
	for _, t := range types {
		switch t {
		case api.ValueTypeI32:
			out = append(out, function.ValueI32)
		case api.ValueTypeI64:
			out = append(out, function.ValueI64)
		case api.ValueTypeF32:
			out = append(out, function.ValueF32)
		case api.ValueTypeF64:
			out = append(out, function.ValueF64)
		default:
			return nil, fmt.Errorf("unsupported value type %s", api.ValueTypeName(t))
		}
	}
	return out, nil
}

func parseInput(raw string) (*function.InputKind, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var kind function.InputKind
	if elem, ok := strings.CutPrefix(trimmed, "list:"); ok {
		var inner function.InputKind
		if err := yaml.Unmarshal([]byte(elem), &inner); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
		kind = function.ListOf(inner)
		return &kind, nil
	}
	if err := yaml.Unmarshal([]byte(trimmed), &kind); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if kind.Kind == "" {
		return nil, errors.New("input kind is required")
	}
	return &kind, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, item := range parts {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
