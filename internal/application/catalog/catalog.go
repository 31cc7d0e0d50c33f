package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

var ErrNotFound = errors.New("function not found")

type pathKey struct {
	root    string
	subPath string
}

// Catalog owns registered functions and the routing table.
type Catalog struct {
	mu        sync.RWMutex
	functions map[types.ID]function.Function
	paths     map[pathKey]types.ID
	logger    zerolog.Logger
}

func New(logger zerolog.Logger) *Catalog {
	return &Catalog{
		functions: map[types.ID]function.Function{},
		paths:     map[pathKey]types.ID{},
		logger:    logger.With().Str("service", "catalog").Logger(),
	}
}

// Register inserts or overwrites a function by id. A zero CreateTime keeps
// the stored one, so re-registering identical content changes nothing.
func (c *Catalog) Register(fn function.Function) error {
	if err := fn.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn.CreateTime.IsZero() {
		if existing, ok := c.functions[fn.ID]; ok {
			fn.CreateTime = existing.CreateTime
		} else {
			fn.CreateTime = types.Now()
		}
	}
	for id, existing := range c.functions {
		if id != fn.ID && existing.Name == fn.Name {
			return fmt.Errorf("function name %q already registered as %s", fn.Name, id)
		}
	}
	c.functions[fn.ID] = fn
	c.logger.Debug().Str("function_id", fn.ID.String()).Str("name", fn.Name).Msg("function registered")
	return nil
}

// BindPath inserts or overwrites the entry for (root, subPath).
func (c *Catalog) BindPath(root, subPath string, functionID types.ID) error {
	if root == "" {
		return fmt.Errorf("root is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.functions[functionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, functionID)
	}
	c.paths[pathKey{root: root, subPath: subPath}] = functionID
	return nil
}

// Resolve looks up the function bound to (root, subPath).
func (c *Catalog) Resolve(root, subPath string) (function.Function, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.paths[pathKey{root: root, subPath: subPath}]
	if !ok {
		return function.Function{}, fmt.Errorf("%w: no binding for /%s/%s", ErrNotFound, root, subPath)
	}
	fn, ok := c.functions[id]
	if !ok {
		return function.Function{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fn, nil
}

func (c *Catalog) FunctionByID(id types.ID) (function.Function, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.functions[id]
	if !ok {
		return function.Function{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fn, nil
}

func (c *Catalog) FunctionByName(name string) (function.Function, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, fn := range c.functions {
		if fn.Name == name {
			return fn, nil
		}
	}
	return function.Function{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ListFunctions returns functions sorted by name.
func (c *Catalog) ListFunctions() []function.Function {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]function.Function, 0, len(c.functions))
	for _, fn := range c.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListPaths returns the routing table sorted by (root, subPath).
func (c *Catalog) ListPaths() []function.PathEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]function.PathEntry, 0, len(c.paths))
	for key, id := range c.paths {
		fn, ok := c.functions[id]
		if !ok {
			continue
		}
		out = append(out, function.PathEntry{Root: key.root, SubPath: key.subPath, Function: fn})
	}
	sortEntries(out)
	return out
}

func sortEntries(entries []function.PathEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Root != entries[j].Root {
			return entries[i].Root < entries[j].Root
		}
		return entries[i].SubPath < entries[j].SubPath
	})
}

// EncodePaths serializes a set of path entries.
func EncodePaths(entries []function.PathEntry) ([]byte, error) {
	sorted := append([]function.PathEntry(nil), entries...)
	sortEntries(sorted)
	return json.Marshal(sorted)
}

// DecodePaths parses a set of path entries, rejecting duplicate keys.
func DecodePaths(data []byte) ([]function.PathEntry, error) {
	var entries []function.PathEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	seen := map[pathKey]bool{}
	for _, e := range entries {
		k := pathKey{root: e.Root, subPath: e.SubPath}
		if seen[k] {
			return nil, fmt.Errorf("duplicate path /%s/%s", e.Root, e.SubPath)
		}
		seen[k] = true
	}
	sortEntries(entries)
	return entries, nil
}
