// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/mitranim/refut"
	"github.com/pkg/errors"
)

var cacheMutex sync.RWMutex
var cache = make(map[reflect.Type]*Info)

// GetTypeInfo returns the Info of the struct type of value, generating and
// caching as required. Pointers to structs are dereferenced.
func GetTypeInfo(value any) (*Info, error) {
	if value == nil {
		return nil, errors.New("cannot reflect nil value")
	}
	return TypeInfoOf(reflect.TypeOf(value))
}

// TypeInfoOf returns the Info of the struct type t, generating and caching
// as required.
func TypeInfoOf(t reflect.Type) (*Info, error) {
	t = refut.RtypeDeref(t)

	cacheMutex.RLock()
	info, found := cache[t]
	cacheMutex.RUnlock()
	if found {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return nil, err
	}

	cacheMutex.Lock()
	cache[t] = info
	cacheMutex.Unlock()

	return info, nil
}

// generate produces the reflection information for the struct type t.
func generate(t reflect.Type) (*Info, error) {
	// Reflection information is only generated for structs.
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("can only reflect struct type, got %s", t)
	}

	info := Info{
		TagToField: make(map[string]Field),
		Type:       t,
	}

	err := refut.TraverseStructRtype(t, func(sfield reflect.StructField, path []int) error {
		// Fields without a "db" tag are not parameters.
		tag := sfield.Tag.Get("db")
		if tag == "" || tag == "-" || !sfield.IsExported() {
			return nil
		}
		name, omitEmpty, err := parseTag(tag)
		if err != nil {
			return errors.Wrapf(err, "field %s of %s", sfield.Name, t)
		}
		if dup, ok := info.TagToField[name]; ok {
			return errors.Errorf("fields %s and %s of %s have the same tag %q", dup.Name, sfield.Name, t, name)
		}
		field := Field{
			Type:      sfield.Type,
			Name:      sfield.Name,
			Tag:       name,
			Index:     append([]int(nil), path...),
			OmitEmpty: omitEmpty,
		}
		info.Fields = append(info.Fields, field)
		info.TagToField[name] = field
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &info, nil
}

// This expression should be aligned with the characters the parser accepts
// in parameter names.
var validColNameRx = regexp.MustCompile(`^([a-zA-Z_])+([a-zA-Z_0-9])*$`)

// parseTag parses the input tag string and returns its
// name and whether it contains the "omitempty" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var omitEmpty bool
	// Refuse to parse if there are more than 2 items.
	if len(options) > 2 {
		return "", false, errors.New("too many options in 'db' tag")
	}
	if len(options) == 2 {
		if strings.ToLower(options[1]) != "omitempty" {
			return "", false, errors.Errorf("unexpected tag value %q", options[1])
		}
		omitEmpty = true
	}

	name := options[0]
	if len(name) == 0 {
		return "", false, errors.New("empty db tag")
	}

	if !validColNameRx.MatchString(name) {
		return "", false, errors.Errorf("invalid parameter name %q in 'db' tag", name)
	}

	return name, omitEmpty, nil
}

// Value is the value of one tagged field of a struct value.
type Value struct {
	Field Field
	// Value is nil when the field is reached through a nil embedded pointer
	// or is empty and tagged omitempty.
	Value any
}

// Values returns the values of the tagged fields of the struct held in
// value, in declaration order.
func Values(value any) ([]Value, error) {
	info, err := GetTypeInfo(value)
	if err != nil {
		return nil, err
	}
	rval := reflect.ValueOf(value)
	if refut.IsRvalNil(rval) {
		return nil, errors.Errorf("cannot read fields of nil %s", rval.Type())
	}
	rval = reflect.Indirect(rval)

	values := make([]Value, len(info.Fields))
	for i, field := range info.Fields {
		values[i].Field = field
		fval, err := rval.FieldByIndexErr(field.Index)
		if err != nil {
			// A nil embedded pointer holds no values.
			continue
		}
		if field.OmitEmpty && fval.IsZero() {
			continue
		}
		values[i].Value = fval.Interface()
	}
	return values, nil
}
