package store

import (
	"reflect"

	"github.com/grovetools/storyview/pkg/models"
)

type undefined struct{}

// Undefined is an update value that removes a key instead of setting it.
var Undefined interface{} = undefined{}

// Diff returns the keys whose values differ between from and to. Keys present
// in from but missing in to map to Undefined. A nil result means no change.
func Diff(from, to map[string]interface{}) map[string]interface{} {
	var delta map[string]interface{}
	add := func(k string, v interface{}) {
		if delta == nil {
			delta = make(map[string]interface{})
		}
		delta[k] = v
	}
	for k, v := range to {
		old, ok := from[k]
		if !ok || !reflect.DeepEqual(old, v) {
			add(k, v)
		}
	}
	for k := range from {
		if _, ok := to[k]; !ok {
			add(k, Undefined)
		}
	}
	return delta
}

// apply returns a copy of base with update merged in.
func apply(base, update map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		if v == Undefined {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// defaultsFromTypes collects the declared default values of argTypes.
func defaultsFromTypes(argTypes models.ArgTypes) map[string]interface{} {
	out := make(map[string]interface{})
	for name, at := range argTypes {
		if at.DefaultValue != nil {
			out[name] = at.DefaultValue
		}
	}
	return out
}
