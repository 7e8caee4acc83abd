// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"reflect"
	"sync"
)

// Config is a configuration object held by a ConfigRegistry. There is one
// Config per category in a registry.
type Config interface {
	// CreateCopy returns a copy of the configuration that shares no mutable
	// state with the original. It is called when a registry is derived.
	CreateCopy() Config
}

// registryAware is implemented by configurations that need to reach the
// registry holding them, e.g. to pass it to converter factories.
type registryAware interface {
	setRegistry(r *ConfigRegistry)
}

// Category identifies a kind of configuration and builds its default
// instance. Categories are keyed by their Go type, so there is at most one
// Category per Config type.
type Category[C Config] struct {
	name       string
	newDefault func() C
}

// NewCategory returns a Category whose default instance is built by
// newDefault on first access.
func NewCategory[C Config](name string, newDefault func() C) *Category[C] {
	return &Category[C]{name: name, newDefault: newDefault}
}

func (c *Category[C]) String() string {
	return c.name
}

var (
	// ColumnMappersConfig holds the column mappers of a registry.
	ColumnMappersConfig = NewCategory("column mappers", newColumnMappers)

	// ArgumentsConfig holds the argument factories of a registry.
	ArgumentsConfig = NewCategory("arguments", newArguments)

	// SQLStatementsConfig holds the parser and statement settings.
	SQLStatementsConfig = NewCategory("sql statements", newSQLStatements)
)

// ConfigRegistry is a type keyed store of configuration objects. A registry
// can be derived with CreateChild; the child starts with copies of the
// parent's configuration and the two diverge independently afterwards.
//
// A registry may be read and derived from concurrently. Registrations on a
// registry must not race with each other.
type ConfigRegistry struct {
	mu      sync.Mutex
	configs map[reflect.Type]Config
}

// NewConfigRegistry returns an empty registry. Every category is filled with
// its default configuration on first access.
func NewConfigRegistry() *ConfigRegistry {
	return &ConfigRegistry{configs: make(map[reflect.Type]Config)}
}

// Get returns the configuration for the category, creating the default
// instance if the registry has none yet.
func Get[C Config](r *ConfigRegistry, category *Category[C]) C {
	key := reflect.TypeFor[C]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg, ok := r.configs[key]; ok {
		return cfg.(C)
	}
	cfg := category.newDefault()
	r.attach(cfg)
	r.configs[key] = cfg
	return cfg
}

// CreateChild returns a registry holding copies of every configuration
// currently in r. The copy is taken atomically with respect to other calls
// on r.
func (r *ConfigRegistry) CreateChild() *ConfigRegistry {
	child := NewConfigRegistry()

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, cfg := range r.configs {
		cp := cfg.CreateCopy()
		child.attach(cp)
		child.configs[key] = cp
	}
	return child
}

// attach tells a configuration which registry holds it.
func (r *ConfigRegistry) attach(cfg Config) {
	if ra, ok := cfg.(registryAware); ok {
		ra.setRegistry(r)
	}
}

// ColumnMappers returns the column mapper configuration.
func (r *ConfigRegistry) ColumnMappers() *ColumnMappers {
	return Get(r, ColumnMappersConfig)
}

// Arguments returns the argument factory configuration.
func (r *ConfigRegistry) Arguments() *Arguments {
	return Get(r, ArgumentsConfig)
}

// SQLStatements returns the statement configuration.
func (r *ConfigRegistry) SQLStatements() *SQLStatements {
	return Get(r, SQLStatementsConfig)
}

// lookup returns the configuration of type C held by r without creating a
// default. Built-in converters use it to reach the registry holding them.
func lookup[C Config](r *ConfigRegistry) (C, bool) {
	if r == nil {
		var zero C
		return zero, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configs[reflect.TypeFor[C]()]
	if !ok {
		var zero C
		return zero, false
	}
	return cfg.(C), true
}
