package function

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind tags an InputKind variant.
type Kind string

const (
	KindNone   Kind = "none"
	KindList   Kind = "list"
	KindObject Kind = "object"
	KindString Kind = "string"
	KindNumber Kind = "number"
)

// InputKind describes the accepted shape of an invocation payload.
// Elem is set only for lists.
type InputKind struct {
	Kind Kind
	Elem *InputKind
}

var (
	None   = InputKind{Kind: KindNone}
	Object = InputKind{Kind: KindObject}
	String = InputKind{Kind: KindString}
	Number = InputKind{Kind: KindNumber}
)

func ListOf(elem InputKind) InputKind {
	return InputKind{Kind: KindList, Elem: &elem}
}

var ErrShapeMismatch = errors.New("payload does not match input kind")

func (k InputKind) String() string {
	if k.Kind == KindList && k.Elem != nil {
		return "list(" + k.Elem.String() + ")"
	}
	return string(k.Kind)
}

// Validate checks the shape of a raw JSON payload. It is not schema validation:
// objects are accepted regardless of their fields.
func (k InputKind) Validate(payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if k.Kind == KindNone {
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil
		}
		return fmt.Errorf("%w: expected no input", ErrShapeMismatch)
	}
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: expected %s, got empty body", ErrShapeMismatch, k)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return k.check(v)
}

func (k InputKind) check(v any) error {
	switch k.Kind {
	case KindNone:
		if v != nil {
			return fmt.Errorf("%w: expected no input", ErrShapeMismatch)
		}
	case KindNumber:
		if _, ok := v.(json.Number); !ok {
			return fmt.Errorf("%w: expected number", ErrShapeMismatch)
		}
	case KindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: expected string", ErrShapeMismatch)
		}
	case KindObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("%w: expected object", ErrShapeMismatch)
		}
	case KindList:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%w: expected list", ErrShapeMismatch)
		}
		if k.Elem == nil {
			return nil
		}
		for i, item := range items {
			if err := k.Elem.check(item); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown input kind %q", k.Kind)
	}
	return nil
}

type listJSON struct {
	List InputKind `json:"list" yaml:"list"`
}

func (k InputKind) MarshalJSON() ([]byte, error) {
	if k.Kind == KindList {
		elem := None
		if k.Elem != nil {
			elem = *k.Elem
		}
		return json.Marshal(listJSON{List: elem})
	}
	return json.Marshal(string(k.Kind))
}

func (k *InputKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return k.setScalar(name)
	}
	var list listJSON
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("invalid input kind: %s", data)
	}
	*k = ListOf(list.List)
	return nil
}

func (k InputKind) MarshalYAML() (any, error) {
	if k.Kind == KindList {
		elem := None
		if k.Elem != nil {
			elem = *k.Elem
		}
		return listJSON{List: elem}, nil
	}
	return string(k.Kind), nil
}

func (k *InputKind) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return k.setScalar(node.Value)
	}
	var list listJSON
	if err := node.Decode(&list); err != nil {
		return fmt.Errorf("invalid input kind at line %d: %w", node.Line, err)
	}
	*k = ListOf(list.List)
	return nil
}

func (k *InputKind) setScalar(name string) error {
	switch Kind(name) {
	case KindNone, KindObject, KindString, KindNumber:
		*k = InputKind{Kind: Kind(name)}
		return nil
	}
	return fmt.Errorf("unknown input kind %q", name)
}
