// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"slices"
	"sync"
)

// factory produces a converter for a qualified type, or declines.
type factory[C any] func(qt QualifiedType, config *ConfigRegistry) (C, bool)

// builtin is a fallback converter source. Unless qualified is set it is only
// consulted for types without qualifiers.
type builtin[C any] struct {
	build     factory[C]
	qualified bool
}

// converters is an ordered, type and qualifier directed lookup table shared
// by the per-direction registries.
//
// Resolution order:
//  1. a converter registered for exactly the requested QualifiedType;
//  2. factories, most recently registered first;
//  3. built-in fallbacks.
//
// Resolution never modifies the table.
type converters[C any] struct {
	mu        sync.RWMutex
	exact     map[QualifiedType]C
	factories []factory[C]
	builtins  []builtin[C]
}

func newConverters[C any](builtins []builtin[C]) *converters[C] {
	return &converters[C]{
		exact:    make(map[QualifiedType]C),
		builtins: builtins,
	}
}

// register sets the converter for exactly qt, replacing any previous one.
func (c *converters[C]) register(qt QualifiedType, conv C) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exact[qt] = conv
}

func (c *converters[C]) registerFactory(f factory[C]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories = append(c.factories, f)
}

// find resolves the converter for qt. Factories may look up other
// converters through config, so they are called without holding the lock.
func (c *converters[C]) find(qt QualifiedType, config *ConfigRegistry) (C, bool) {
	if qt.Type() == nil {
		var zero C
		return zero, false
	}
	c.mu.RLock()
	conv, ok := c.exact[qt]
	factories := c.factories
	c.mu.RUnlock()
	if ok {
		return conv, true
	}

	for i := len(factories) - 1; i >= 0; i-- {
		if conv, ok := factories[i](qt, config); ok {
			return conv, true
		}
	}

	qualified := qt.IsQualified()
	for _, b := range c.builtins {
		if qualified && !b.qualified {
			continue
		}
		if conv, ok := b.build(qt, config); ok {
			return conv, true
		}
	}

	var zero C
	return zero, false
}

// copy returns an independent copy of the table.
func (c *converters[C]) copy() *converters[C] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	exact := make(map[QualifiedType]C, len(c.exact))
	for qt, conv := range c.exact {
		exact[qt] = conv
	}
	return &converters[C]{
		exact:     exact,
		factories: slices.Clone(c.factories),
		builtins:  c.builtins,
	}
}
