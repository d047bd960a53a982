// Package agentdsl parses agent configuration — programmatic or YAML —
// into htn.Method catalogs. Guard predicates are a closed sum of kinds
// (never stringly-typed evaluation), per DESIGN NOTES §9.
package agentdsl

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/htnql-engine/htnql/planning"
)

// Kind is the closed set of guard predicate kinds the DSL supports.
type Kind string

const (
	Equals    Kind = "equals"
	NotEquals Kind = "not_equals"
	SizeLte   Kind = "size_lte"
	SizeGte   Kind = "size_gte"
	Contains  Kind = "contains"
	IsSet     Kind = "is_set"
	IsUnset   Kind = "is_unset"
	In        Kind = "in"
)

var validKinds = map[Kind]bool{
	Equals: true, NotEquals: true, SizeLte: true, SizeGte: true,
	Contains: true, IsSet: true, IsUnset: true, In: true,
}

// Predicate evaluates one guard clause against a state field, chosen by
// Kind. It implements htn.Predicate.
type Predicate struct {
	Field string
	Kind  Kind
	Value any
}

// Eval implements htn.Predicate.
func (p Predicate) Eval(st *planning.State) bool {
	val, present := st.Field(p.Field)
	switch p.Kind {
	case IsSet:
		return present && !isZero(val)
	case IsUnset:
		return !present || isZero(val)
	case Equals:
		return present && stringOf(val) == stringOf(p.Value)
	case NotEquals:
		return !present || stringOf(val) != stringOf(p.Value)
	case SizeLte:
		return present && sizeOf(val) <= intOf(p.Value)
	case SizeGte:
		return present && sizeOf(val) >= intOf(p.Value)
	case Contains:
		return present && containsElem(val, p.Value)
	case In:
		list, ok := p.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if present && stringOf(val) == stringOf(v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isZero(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.String:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}

func sizeOf(v any) int {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return 0
	}
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func containsElem(collection, target any) bool {
	rv := reflect.ValueOf(collection)
	if rv.Kind() == reflect.String {
		return strings.Contains(rv.String(), stringOf(target))
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if stringOf(rv.Index(i).Interface()) == stringOf(target) {
			return true
		}
	}
	return false
}
