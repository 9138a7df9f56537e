// Package jsonsafe marshals values for consumers that parse JSON numbers
// as IEEE-754 doubles. Unbounded integers and 64-bit values beyond 2^53
// are emitted as decimal strings so no precision is lost on the wire.
package jsonsafe

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// maxSafeInteger is the largest integer a double represents exactly.
const maxSafeInteger = int64(1)<<53 - 1

var (
	bigIntType    = reflect.TypeOf(big.Int{})
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// Marshal encodes v as JSON with lossless integer representation.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(Sanitize(v))
}

// Sanitize returns a copy of v in which every big.Int and every 64-bit
// integer beyond the double-safe range has been replaced by its decimal
// string, recursing through maps, slices and structs.
func Sanitize(v any) any {
	if v == nil {
		return nil
	}
	return sanitizeValue(reflect.ValueOf(v))
}

func sanitizeValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem())
	}

	if rv.Type() == bigIntType {
		n := rv.Interface().(big.Int)
		return n.String()
	}

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n > maxSafeInteger || n < -maxSafeInteger {
			return strconv.FormatInt(n, 10)
		}
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := rv.Uint()
		if n > uint64(maxSafeInteger) {
			return strconv.FormatUint(n, 10)
		}
		return n
	case reflect.Struct:
		// Types with their own JSON shape keep it, big.Int excepted above.
		if rv.Type().Implements(marshalerType) || reflect.PointerTo(rv.Type()).Implements(marshalerType) {
			return rv.Interface()
		}
		return sanitizeStruct(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitizeValue(iter.Value())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// []byte keeps encoding/json's base64 form.
			return rv.Interface()
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitizeValue(rv.Index(i))
		}
		return out
	default:
		return rv.Interface()
	}
}

func sanitizeStruct(rv reflect.Value) map[string]any {
	out := make(map[string]any)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		omitEmpty := false
		if tag, ok := field.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" && len(parts) == 1 {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}

		value := rv.Field(i)
		if field.Anonymous && field.Tag.Get("json") == "" && value.Kind() == reflect.Struct {
			for k, v := range sanitizeStruct(value) {
				out[k] = v
			}
			continue
		}
		if omitEmpty && value.IsZero() {
			continue
		}
		out[name] = sanitizeValue(value)
	}
	return out
}
