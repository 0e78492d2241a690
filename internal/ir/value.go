package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the values allowed in canonical JSON.
// Only String, Int, Bool, Array and Object implement it. There is no float
// and no null: hashes must not depend on number formatting.
type Value interface {
	irValue()
}

// String is a string value.
type String string

func (String) irValue() {}

// Int is an integer value.
type Int int64

func (Int) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object maps string keys to values. Use SortedKeys for deterministic
// iteration.
type Object map[string]Value

func (Object) irValue() {}

// Strings converts a string slice to an Array of String.
func Strings(ss []string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// StringMap converts a map of strings to an Object.
func StringMap(m map[string]string) Object {
	obj := make(Object, len(m))
	for k, v := range m {
		obj[k] = String(v)
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which differs for astral runes.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
