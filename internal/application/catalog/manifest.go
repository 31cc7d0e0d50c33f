package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

// Manifest is the static function set shared by the control plane and workers.
type Manifest struct {
	Functions []ManifestFunction `yaml:"functions"`
}

type ManifestFunction struct {
	ID          string             `yaml:"id,omitempty"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Runtime     function.Runtime   `yaml:"runtime"`
	Input       function.InputKind `yaml:"input"`
	Blob        string             `yaml:"blob"`
	Digest      string             `yaml:"digest,omitempty"`
	Routes      []ManifestRoute    `yaml:"routes"`
}

type ManifestRoute struct {
	Root    string `yaml:"root"`
	SubPath string `yaml:"subPath,omitempty"`
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Function converts a manifest entry. The id defaults to one derived
// from the name so that every process computes the same value.
func (mf ManifestFunction) Function() (function.Function, error) {
	id := types.NameID(mf.Name)
	if mf.ID != "" {
		parsed, err := types.ParseID(mf.ID)
		if err != nil {
			return function.Function{}, err
		}
		id = parsed
	}
	rt := mf.Runtime
	if rt.Kind == "" {
		rt.Kind = function.RuntimeWasm
	}
	if rt.Entrypoint == "" {
		rt.Entrypoint = mf.Name
	}
	input := mf.Input
	if input.Kind == "" {
		input = function.None
	}
	blob := mf.Blob
	if blob == "" {
		blob = mf.Name + ".wasm"
	}
	fn := function.Function{
		ID:          id,
		Name:        mf.Name,
		Description: mf.Description,
		Runtime:     rt,
		InputType:   input,
		BlobAddress: blob,
		Digest:      mf.Digest,
	}
	if err := fn.Validate(); err != nil {
		return function.Function{}, fmt.Errorf("function %q: %w", mf.Name, err)
	}
	return fn, nil
}

// Seed registers every manifest function and binds its routes.
func (c *Catalog) Seed(m *Manifest) error {
	for _, mf := range m.Functions {
		fn, err := mf.Function()
		if err != nil {
			return err
		}
		if err := c.Register(fn); err != nil {
			return err
		}
		for _, route := range mf.Routes {
			if err := c.BindPath(route.Root, route.SubPath, fn.ID); err != nil {
				return err
			}
		}
	}
	c.logger.Info().Int("functions", len(m.Functions)).Msg("catalog seeded")
	return nil
}
