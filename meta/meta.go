// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package meta provides Metadata, the ordered key-value container used
// to describe pipelines and the requests that flow through them.
//
// Values are stored as typed slices (integers, floats or strings);
// scalars are one-element slices. Getters distinguish a missing key
// (errors.NotExist) from a key holding a value of another type
// (errors.Invalid). Values are never shared with callers: setters copy
// their arguments and getters return copies, so Clone is a cheap
// structural copy that can be overridden independently.
package meta

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// Type is the type of the value stored under a key.
type Type int

const (
	// Ints is a slice of 64-bit integers.
	Ints Type = iota + 1
	// Floats is a slice of 64-bit floats.
	Floats
	// Strings is a slice of strings.
	Strings
)

var typeNames = [...]string{
	Ints:    "ints",
	Floats:  "floats",
	Strings: "strings",
}

func (t Type) String() string {
	if t <= 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

type value struct {
	typ    Type
	ints   []int64
	floats []float64
	strs   []string
}

func (v value) String() string {
	switch v.typ {
	case Ints:
		return fmt.Sprint(v.ints)
	case Floats:
		return fmt.Sprint(v.floats)
	default:
		return fmt.Sprintf("%q", v.strs)
	}
}

// Metadata is an ordered map of typed values. The zero Metadata is
// empty and ready to use. Metadata values should be copied with Clone.
type Metadata struct {
	keys []string
	vals map[string]value
}

// Empty tells whether the metadata holds no keys. Executives signal
// exhaustion by returning empty metadata.
func (m Metadata) Empty() bool {
	return len(m.keys) == 0
}

// Len returns the number of keys in m.
func (m Metadata) Len() int {
	return len(m.keys)
}

// Keys returns the keys of m in insertion order.
func (m Metadata) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Has tells whether m contains key.
func (m Metadata) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

// TypeOf returns the type of the value stored under key, or 0 if
// the key is missing.
func (m Metadata) TypeOf(key string) Type {
	return m.vals[key].typ
}

// Clone returns a copy of m. Values are immutable once stored, so
// only the key index is copied.
func (m Metadata) Clone() Metadata {
	if m.vals == nil {
		return Metadata{}
	}
	c := Metadata{
		keys: append([]string(nil), m.keys...),
		vals: make(map[string]value, len(m.vals)),
	}
	for k, v := range m.vals {
		c.vals[k] = v
	}
	return c
}

// Delete removes key from m.
func (m *Metadata) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Metadata) set(key string, v value) {
	if m.vals == nil {
		m.vals = make(map[string]value)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// SetInt stores the integer v under key.
func (m *Metadata) SetInt(key string, v int64) {
	m.set(key, value{typ: Ints, ints: []int64{v}})
}

// SetInts stores a copy of vs under key.
func (m *Metadata) SetInts(key string, vs ...int64) {
	m.set(key, value{typ: Ints, ints: append([]int64{}, vs...)})
}

// SetFloat stores the float v under key.
func (m *Metadata) SetFloat(key string, v float64) {
	m.set(key, value{typ: Floats, floats: []float64{v}})
}

// SetFloats stores a copy of vs under key.
func (m *Metadata) SetFloats(key string, vs ...float64) {
	m.set(key, value{typ: Floats, floats: append([]float64{}, vs...)})
}

// SetString stores the string v under key.
func (m *Metadata) SetString(key, v string) {
	m.set(key, value{typ: Strings, strs: []string{v}})
}

// SetStrings stores a copy of vs under key.
func (m *Metadata) SetStrings(key string, vs ...string) {
	m.set(key, value{typ: Strings, strs: append([]string{}, vs...)})
}

func (m Metadata) get(key string, typ Type) (value, error) {
	v, ok := m.vals[key]
	if !ok {
		return value{}, errors.E(errors.NotExist, fmt.Sprintf("metadata key %q", key))
	}
	if v.typ != typ {
		return value{}, errors.E(errors.Invalid,
			fmt.Sprintf("metadata key %q: have %s, want %s", key, v.typ, typ))
	}
	return v, nil
}

func scalarErr(key string, n int) error {
	return errors.E(errors.Invalid,
		fmt.Sprintf("metadata key %q: have %d values, want 1", key, n))
}

// Int returns the single integer stored under key.
func (m Metadata) Int(key string) (int64, error) {
	v, err := m.get(key, Ints)
	if err != nil {
		return 0, err
	}
	if len(v.ints) != 1 {
		return 0, scalarErr(key, len(v.ints))
	}
	return v.ints[0], nil
}

// Ints returns the integers stored under key.
func (m Metadata) Ints(key string) ([]int64, error) {
	v, err := m.get(key, Ints)
	if err != nil {
		return nil, err
	}
	return append([]int64{}, v.ints...), nil
}

// Float returns the single float stored under key.
func (m Metadata) Float(key string) (float64, error) {
	v, err := m.get(key, Floats)
	if err != nil {
		return 0, err
	}
	if len(v.floats) != 1 {
		return 0, scalarErr(key, len(v.floats))
	}
	return v.floats[0], nil
}

// Floats returns the floats stored under key.
func (m Metadata) Floats(key string) ([]float64, error) {
	v, err := m.get(key, Floats)
	if err != nil {
		return nil, err
	}
	return append([]float64{}, v.floats...), nil
}

// String returns the single string stored under key.
func (m Metadata) String(key string) (string, error) {
	v, err := m.get(key, Strings)
	if err != nil {
		return "", err
	}
	if len(v.strs) != 1 {
		return "", scalarErr(key, len(v.strs))
	}
	return v.strs[0], nil
}

// Strings returns the strings stored under key.
func (m Metadata) Strings(key string) ([]string, error) {
	v, err := m.get(key, Strings)
	if err != nil {
		return nil, err
	}
	return append([]string{}, v.strs...), nil
}

// Format renders m as "{key=value, ...}" in insertion order.
func (m Metadata) Format() string {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range m.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", k, m.vals[k])
	}
	b.WriteString("}")
	return b.String()
}
