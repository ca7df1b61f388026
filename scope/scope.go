package scope

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind is the shape of a context value.
type Kind int

// Context value shapes.
const (
	Null Kind = iota
	Scalar
	Mapping
	Sequence
	Object
	Callable
)

// RenderFunc renders text against the scope stack captured when it
// was created. A non-nil data is layered in front of that stack.
type RenderFunc func(text string, data any) (string, error)

// Lambda post-processes the unrendered text of a section. Its
// result is inserted without escaping.
type Lambda func(text string, render RenderFunc) (string, error)

// Accessor lets a type expose named members to templates without
// reflection.
type Accessor interface {
	Get(key string) (any, bool)
}

// KindOf classifies v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return Null
	case string, bool, int, int64, uint64, float64:
		return Scalar
	case map[string]any:
		return Mapping
	case []any:
		return Sequence
	case Accessor:
		return Object
	}

	if _, ok := AsLambda(v); ok {
		return Callable
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Null
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		return Mapping
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Scalar
		}

		return Sequence
	case reflect.Struct:
		return Object
	case reflect.Func:
		return Callable
	default:
		return Scalar
	}
}

// IsSequence reports whether a section over v iterates.
func IsSequence(v any) bool {
	return KindOf(v) == Sequence
}

// Elements returns the members of a sequence value, or nil when v
// is not a sequence.
func Elements(v any) []any {
	if tv, ok := v.([]any); ok {
		return tv
	}

	if !IsSequence(v) {
		return nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}

	elems := make([]any, 0, rv.Len())
	for i := range rv.Len() {
		if x := rv.Index(i); x.CanInterface() {
			elems = append(elems, x.Interface())
		}
	}

	return elems
}

// Lookup resolves key against scopes, innermost first. The key "."
// is the innermost scope itself. Otherwise the first scope in which
// the whole dotted path resolves wins. Missing keys resolve to "";
// so do empty values, except numeric zero and false which are
// returned as they are.
func Lookup(key string, scopes []any) any {
	if len(scopes) == 0 {
		return ""
	}

	if key == "." {
		return scopes[0]
	}

	path := strings.Split(key, ".")

	for _, sc := range scopes {
		v, ok := walk(sc, path)
		if !ok {
			continue
		}

		if isFalse(v) || isZeroNumber(v) {
			return v
		}

		if !Truthy(v) {
			return ""
		}

		return v
	}

	return ""
}

func walk(cur any, path []string) (any, bool) {
	for _, seg := range path {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}

		cur = next
	}

	return cur, true
}

func child(v any, seg string) (any, bool) {
	switch tv := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		x, ok := tv[seg]
		return x, ok
	case []any:
		i, ok := index(seg, len(tv))
		if !ok {
			return nil, false
		}

		return tv[i], true
	case Accessor:
		return tv.Get(seg)
	case string:
		return nil, false
	}

	return reflectChild(reflect.ValueOf(v), seg)
}

func reflectChild(rv reflect.Value, seg string) (any, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		kt := rv.Type().Key()
		sk := reflect.ValueOf(seg)

		switch {
		case kt.Kind() == reflect.String:
			sk = sk.Convert(kt)
		case sk.Type().AssignableTo(kt):
		default:
			return nil, false
		}

		x := rv.MapIndex(sk)
		if !x.IsValid() {
			return nil, false
		}

		return x.Interface(), true

	case reflect.Slice, reflect.Array:
		i, ok := index(seg, rv.Len())
		if !ok {
			return nil, false
		}

		x := rv.Index(i)
		if !x.CanInterface() {
			return nil, false
		}

		return x.Interface(), true

	case reflect.Struct:
		return field(rv, seg)

	default:
		return nil, false
	}
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}

	return i, true
}

// field looks up an exported struct field by name, then by the
// name in its json tag.
func field(rv reflect.Value, name string) (any, bool) {
	rt := rv.Type()

	if sf, ok := rt.FieldByName(name); ok && sf.IsExported() {
		x, err := rv.FieldByIndexErr(sf.Index)
		if err != nil || !x.CanInterface() {
			return nil, false
		}

		return x.Interface(), true
	}

	for i := range rt.NumField() {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		tagName, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tagName != "" && tagName == name {
			return rv.Field(i).Interface(), true
		}
	}

	return nil, false
}

// Truthy reports whether v lets a section body render. Null, false,
// numeric zero and empty strings, sequences and mappings are falsy.
func Truthy(v any) bool {
	switch tv := v.(type) {
	case nil:
		return false
	case bool:
		return tv
	case string:
		return tv != ""
	case float64:
		return tv != 0
	case int:
		return tv != 0
	case []any:
		return len(tv) > 0
	case map[string]any:
		return len(tv) > 0
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Complex64, reflect.Complex128:
		return rv.Complex() != 0
	default:
		return true
	}
}

// isFalse matches false of bool and of any named bool type.
func isFalse(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Bool && !rv.Bool()
}

func isZeroNumber(v any) bool {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	default:
		return false
	}
}

// Text converts a resolved value to output text. Composite values
// are rendered as JSON and callables as empty text.
func Text(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case []byte:
		return string(tv)
	case bool:
		return strconv.FormatBool(tv)
	case float64:
		return formatFloat(tv, 64)
	case float32:
		return formatFloat(float64(tv), 32)
	case int:
		return strconv.Itoa(tv)
	case fmt.Stringer:
		return tv.String()
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.String:
		return rv.String()
	case reflect.Func:
		return ""
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return ""
		}

		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	default:
	}

	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}

	return strconv.FormatFloat(f, 'g', -1, bits)
}

// AsLambda returns v as a Lambda when it is one of the accepted
// callable forms.
func AsLambda(v any) (Lambda, bool) {
	switch fn := v.(type) {
	case Lambda:
		return fn, fn != nil
	case func(string, RenderFunc) (string, error):
		return fn, fn != nil
	case func(string, RenderFunc) string:
		if fn == nil {
			return nil, false
		}

		return func(text string, render RenderFunc) (string, error) {
			return fn(text, render), nil
		}, true
	case func(string) string:
		if fn == nil {
			return nil, false
		}

		return func(text string, _ RenderFunc) (string, error) {
			return fn(text), nil
		}, true
	default:
		return nil, false
	}
}
