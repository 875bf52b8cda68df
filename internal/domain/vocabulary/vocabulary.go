// Package vocabulary holds the closed categorical vocabularies the classifier
// was fitted against. A Registry is built once at startup and is read-only
// afterwards, so it is safe for concurrent use without locking.
package vocabulary

import (
	"errors"
	"fmt"
)

// Attribute names a categorical customer attribute.
type Attribute string

// Categorical attributes of a scoring request.
const (
	Gender    Attribute = "gender"
	Education Attribute = "education_level"
	Marital   Attribute = "marital_status"
	Income    Attribute = "income_category"
	Card      Attribute = "card_category"
)

// Sentinel errors for vocabulary lookups and construction.
var (
	ErrUnknownCategory   = errors.New("unknown category")
	ErrInvalidVocabulary = errors.New("invalid vocabulary")
)

// UnknownCategoryError reports a value outside an attribute's fixed set.
type UnknownCategoryError struct {
	Attribute Attribute
	Value     string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("%s: %q is not a valid %s", ErrUnknownCategory, e.Value, e.Attribute)
}

// Is lets callers match with errors.Is(err, ErrUnknownCategory).
func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory
}

// Entry binds a label to its integer code.
type Entry struct {
	Label string
	Code  int
}

// Definition declares one attribute's vocabulary. Entries are listed in
// presentation order; codes are carried explicitly and do not depend on it.
type Definition struct {
	Attribute Attribute
	Entries   []Entry
}

type vocab struct {
	labels []string
	codes  map[string]int
}

// Registry is an immutable set of vocabularies.
type Registry struct {
	order  []Attribute
	vocabs map[Attribute]vocab
}

// New validates the definitions and builds a Registry. Codes of every
// attribute must be unique and contiguous from zero.
func New(defs ...Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no definitions", ErrInvalidVocabulary)
	}
	r := &Registry{
		order:  make([]Attribute, 0, len(defs)),
		vocabs: make(map[Attribute]vocab, len(defs)),
	}
	for _, def := range defs {
		if def.Attribute == "" {
			return nil, fmt.Errorf("%w: empty attribute name", ErrInvalidVocabulary)
		}
		if _, dup := r.vocabs[def.Attribute]; dup {
			return nil, fmt.Errorf("%w: %s declared twice", ErrInvalidVocabulary, def.Attribute)
		}
		v, err := buildVocab(def)
		if err != nil {
			return nil, err
		}
		r.order = append(r.order, def.Attribute)
		r.vocabs[def.Attribute] = v
	}
	return r, nil
}

func buildVocab(def Definition) (vocab, error) {
	n := len(def.Entries)
	if n == 0 {
		return vocab{}, fmt.Errorf("%w: %s has no entries", ErrInvalidVocabulary, def.Attribute)
	}
	v := vocab{
		labels: make([]string, 0, n),
		codes:  make(map[string]int, n),
	}
	used := make([]bool, n)
	for _, e := range def.Entries {
		if _, dup := v.codes[e.Label]; dup {
			return vocab{}, fmt.Errorf("%w: %s label %q repeated", ErrInvalidVocabulary, def.Attribute, e.Label)
		}
		if e.Code < 0 || e.Code >= n {
			return vocab{}, fmt.Errorf("%w: %s code %d outside [0,%d)", ErrInvalidVocabulary, def.Attribute, e.Code, n)
		}
		if used[e.Code] {
			return vocab{}, fmt.Errorf("%w: %s code %d assigned twice", ErrInvalidVocabulary, def.Attribute, e.Code)
		}
		used[e.Code] = true
		v.labels = append(v.labels, e.Label)
		v.codes[e.Label] = e.Code
	}
	return v, nil
}

// CodeOf returns the integer code for value within attr.
func (r *Registry) CodeOf(attr Attribute, value string) (int, error) {
	v, ok := r.vocabs[attr]
	if !ok {
		return 0, &UnknownCategoryError{Attribute: attr, Value: value}
	}
	code, ok := v.codes[value]
	if !ok {
		return 0, &UnknownCategoryError{Attribute: attr, Value: value}
	}
	return code, nil
}

// Contains reports whether value is a member of attr's vocabulary.
func (r *Registry) Contains(attr Attribute, value string) bool {
	_, err := r.CodeOf(attr, value)
	return err == nil
}

// ValuesOf lists attr's labels in declaration order. The slice is a copy.
func (r *Registry) ValuesOf(attr Attribute) []string {
	v, ok := r.vocabs[attr]
	if !ok {
		return nil
	}
	out := make([]string, len(v.labels))
	copy(out, v.labels)
	return out
}

// Attributes lists the registered attributes in declaration order.
func (r *Registry) Attributes() []Attribute {
	out := make([]Attribute, len(r.order))
	copy(out, r.order)
	return out
}
