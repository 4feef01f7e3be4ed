package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// reflectSerializer implements KeySerializer using reflection. Strings are
// quoted, other scalars carry their type, maps are written with sorted keys
// and structs field by field. Equal arguments produce equal keys and
// arguments the adapters would query differently do not.
type reflectSerializer struct{}

// nilToken is never produced by a string since those are always quoted.
const nilToken = "nil"

var stringType = reflect.TypeOf("")

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return reflectSerializer{}
}

func (s reflectSerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.value(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s reflectSerializer) value(v any) string {
	if v == nil {
		return nilToken
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()
	switch rv.Kind() {
	case reflect.Func:
		// only stable within one process
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Pointer:
		if rv.IsNil() {
			return nilToken
		}
		return s.value(rv.Elem().Interface())
	}

	switch t := v.(type) {
	case encoding.TextMarshaler:
		if text, err := t.MarshalText(); err == nil {
			return rt.String() + ":" + strconv.Quote(string(text))
		}
	case fmt.Stringer:
		return rt.String() + ":" + strconv.Quote(t.String())
	}

	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return fmt.Sprintf("slice[%d]:{%s}", rv.Len(), s.elems(rv))
	case reflect.Array:
		return fmt.Sprintf("array[%d]:{%s}", rv.Len(), s.elems(rv))
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.mapValue(rv)
	case reflect.Struct:
		return s.structValue(rv)
	case reflect.String:
		if rt == stringType {
			return strconv.Quote(rv.String())
		}
		return rt.String() + ":" + strconv.Quote(rv.String())
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%s:%v", rt, v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + rt.String()
	}
	return rt.String() + ":json:" + strconv.Quote(string(data))
}

func (s reflectSerializer) elems(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.value(rv.Index(i).Interface())
	}
	return strings.Join(parts, ",")
}

func (s reflectSerializer) mapValue(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.value(iter.Key().Interface())+"="+s.value(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (s reflectSerializer) structValue(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.value(rv.Field(i).Interface()))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

// boundKey keeps prefix and replaces the rest of key with its digest when
// key is longer than limit.
func boundKey(prefix, key string, limit int) string {
	if limit <= 0 || len(key) <= limit {
		return key
	}
	rest := strings.TrimPrefix(key, prefix)
	return prefix + KeySeparator + "xxh:" + strconv.FormatUint(xxhash.Sum64String(rest), 16)
}
