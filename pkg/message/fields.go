package message

import (
	"math"
	"reflect"
)

// Single key/value pair
type Field struct {
	Key   string
	Value any
}

// Ordered key/value list
type Fields []Field

func (fields Fields) index(key string) (position int) {
	for position = range fields {
		if fields[position].Key == key {
			return
		}
	}
	position = -1
	return
}

// Value for key and whether it exists
func (fields Fields) Get(key string) (value any, ok bool) {
	position := fields.index(key)
	if position < 0 {
		return
	}
	value, ok = fields[position].Value, true
	return
}

func (fields Fields) Has(key string) (ok bool) {
	ok = fields.index(key) >= 0
	return
}

// Replaces in place or appends
func (fields Fields) set(key string, value any) (updated Fields) {
	updated = fields
	if position := updated.index(key); position >= 0 {
		updated[position].Value = value
		return
	}
	updated = append(updated, Field{Key: key, Value: value})
	return
}

func (fields Fields) Keys() (keys []string) {
	keys = make([]string, len(fields))
	for i, field := range fields {
		keys[i] = field.Key
	}
	return
}

// Unordered copy
func (fields Fields) Map() (mapped map[string]any) {
	mapped = make(map[string]any, len(fields))
	for _, field := range fields {
		mapped[field.Key] = field.Value
	}
	return
}

// Brings values into the shapes the decoder produces.
// Typed slices and arrays become []any, maps become map[string]any (map[any]any for non-string keys).
func normalize(value any) (normal any) {
	switch typed := value.(type) {
	case nil:
		return
	case int64, float64, string, bool:
		normal = value
		return
	case []byte:
		normal = string(typed)
		return
	}

	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		normal = reflected.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		normal = normalizeUnsigned(reflected.Uint())
	case reflect.Float32, reflect.Float64:
		normal = reflected.Float()
	case reflect.String:
		normal = reflected.String()
	case reflect.Bool:
		normal = reflected.Bool()
	case reflect.Pointer, reflect.Interface:
		if reflected.IsNil() {
			return
		}
		normal = normalize(reflected.Elem().Interface())
	case reflect.Slice:
		if reflected.IsNil() {
			return
		}
		if reflected.Type().Elem().Kind() == reflect.Uint8 {
			normal = string(reflected.Bytes())
			return
		}
		normal = normalizeList(reflected)
	case reflect.Array:
		normal = normalizeList(reflected)
	case reflect.Map:
		if reflected.IsNil() {
			return
		}
		normal = normalizeMap(reflected)
	default:
		normal = value
	}
	return
}

func normalizeList(reflected reflect.Value) (list []any) {
	list = make([]any, reflected.Len())
	for i := range list {
		list[i] = normalize(reflected.Index(i).Interface())
	}
	return
}

// String keys (after normalizing) give map[string]any, anything else map[any]any
func normalizeMap(reflected reflect.Value) (normal any) {
	keys := make([]any, 0, reflected.Len())
	values := make([]any, 0, reflected.Len())
	allStrings := true

	iter := reflected.MapRange()
	for iter.Next() {
		key := normalize(iter.Key().Interface())
		if key != nil && !reflect.TypeOf(key).Comparable() {
			key = iter.Key().Interface()
		}
		if _, isString := key.(string); !isString {
			allStrings = false
		}
		keys = append(keys, key)
		values = append(values, normalize(iter.Value().Interface()))
	}

	if allStrings {
		mapped := make(map[string]any, len(keys))
		for i, key := range keys {
			mapped[key.(string)] = values[i]
		}
		normal = mapped
		return
	}

	mapped := make(map[any]any, len(keys))
	for i, key := range keys {
		mapped[key] = values[i]
	}
	normal = mapped
	return
}

func normalizeUnsigned(value uint64) (normal any) {
	if value <= math.MaxInt64 {
		normal = int64(value)
		return
	}
	normal = value
	return
}

// Numeric value as float64
func asFloat(value any) (number float64, ok bool) {
	ok = true
	switch typed := value.(type) {
	case float64:
		number = typed
	case int64:
		number = float64(typed)
	case uint64:
		number = float64(typed)
	default:
		ok = false
	}
	return
}
