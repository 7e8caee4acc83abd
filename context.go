// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/canonical/sqlstmt/internal/typeinfo"
)

type contextState int

const (
	stateEmpty contextState = iota
	stateParsed
	stateFinalized
)

func (s contextState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateParsed:
		return "parsed"
	case stateFinalized:
		return "finalized"
	}
	return "unknown"
}

// Cleanable is a resource released when its statement context is closed.
type Cleanable interface {
	Close() error
}

// binding is a value bound to a parameter.
type binding struct {
	value any
	quals []Qualifier
}

// StatementContext holds the state of a single statement while it is
// prepared: the parsed template, the bound values and the statement flags.
// It is owned by one goroutine and is not safe for concurrent use.
//
// A context starts empty, becomes parsed with Prepare and ends finalized
// after a successful Finalize.
type StatementContext struct {
	id     uuid.UUID
	config *ConfigRegistry
	logger *slog.Logger
	state  contextState

	template string
	parsed   *ParsedSQL

	named      map[string]binding
	positional map[int]binding

	returningGeneratedKeys   bool
	generatedKeysColumnNames []string
	concurrentUpdatable      bool

	attributes map[string]any
	cleanables []Cleanable
}

// Prepared is the driver SQL and arguments of a finalized statement.
type Prepared struct {
	SQL    string
	Args   []any
	Params []ParamRef
}

// CreateContext returns a statement context working on a snapshot of
// config. Registrations made on the context's registry do not affect config.
// A nil config gives a context with the default configuration.
func CreateContext(config *ConfigRegistry) *StatementContext {
	var reg *ConfigRegistry
	if config == nil {
		reg = NewConfigRegistry()
	} else {
		reg = config.CreateChild()
	}
	statements := reg.SQLStatements()
	id := uuid.Must(uuid.NewV7())
	return &StatementContext{
		id:         id,
		config:     reg,
		logger:     statements.Logger().With(slog.String("context", id.String())),
		named:      make(map[string]binding),
		positional: make(map[int]binding),
		attributes: statements.snapshotAttributes(),
	}
}

// ID returns the identifier of the context, used to correlate log records.
func (c *StatementContext) ID() uuid.UUID {
	return c.id
}

// Config returns the context's own registry.
func (c *StatementContext) Config() *ConfigRegistry {
	return c.config
}

// ReturningGeneratedKeys reports whether the statement returns the keys
// generated by the database.
func (c *StatementContext) ReturningGeneratedKeys() bool {
	return c.returningGeneratedKeys
}

// SetReturningGeneratedKeys sets whether the statement returns the keys
// generated by the database. It fails with ErrFlagConflict if the statement
// is concurrent updatable. Clearing the flag always succeeds.
func (c *StatementContext) SetReturningGeneratedKeys(b bool) error {
	if !b {
		c.returningGeneratedKeys = false
		return nil
	}
	if c.state == stateFinalized {
		return ErrFinalized
	}
	if c.concurrentUpdatable {
		return ErrFlagConflict
	}
	c.returningGeneratedKeys = true
	return nil
}

// GeneratedKeysColumnNames returns the columns holding generated keys.
func (c *StatementContext) GeneratedKeysColumnNames() []string {
	return slices.Clone(c.generatedKeysColumnNames)
}

// SetGeneratedKeysColumnNames sets the columns holding generated keys and
// makes the statement return them.
func (c *StatementContext) SetGeneratedKeysColumnNames(names ...string) error {
	if err := c.SetReturningGeneratedKeys(true); err != nil {
		return err
	}
	c.generatedKeysColumnNames = slices.Clone(names)
	return nil
}

// ConcurrentUpdatable reports whether the result of the statement may be
// updated in place.
func (c *StatementContext) ConcurrentUpdatable() bool {
	return c.concurrentUpdatable
}

// SetConcurrentUpdatable sets whether the result of the statement may be
// updated in place. It fails with ErrFlagConflict if the statement returns
// generated keys. Clearing the flag always succeeds.
func (c *StatementContext) SetConcurrentUpdatable(b bool) error {
	if !b {
		c.concurrentUpdatable = false
		return nil
	}
	if c.state == stateFinalized {
		return ErrFinalized
	}
	if c.returningGeneratedKeys {
		return ErrFlagConflict
	}
	c.concurrentUpdatable = true
	return nil
}

// FindColumnMapperFor returns the column mapper for qt from the context's
// registry.
func (c *StatementContext) FindColumnMapperFor(qt QualifiedType) (ColumnMapper, bool) {
	return c.config.ColumnMappers().FindFor(qt)
}

// FindColumnMapperForType returns the column mapper for the unqualified
// type t.
func (c *StatementContext) FindColumnMapperForType(t reflect.Type) (ColumnMapper, bool) {
	return c.FindColumnMapperFor(TypeOf(t))
}

// FindArgumentFor returns the argument for qt from the context's registry.
func (c *StatementContext) FindArgumentFor(qt QualifiedType) (Argument, bool) {
	return c.config.Arguments().FindFor(qt)
}

// FindColumnMapper returns a function mapping columns into T with the given
// qualifiers, bound to ctx.
func FindColumnMapper[T any](ctx *StatementContext, quals ...Qualifier) (func(src any) (T, error), bool) {
	qt := QualifiedTypeOf[T]().With(quals...)
	mapper, ok := ctx.FindColumnMapperFor(qt)
	if !ok {
		return nil, false
	}
	return func(src any) (T, error) {
		var zero T
		v, err := mapper.MapColumn(src, ctx)
		if err != nil {
			return zero, err
		}
		if v == nil {
			return zero, nil
		}
		t, ok := v.(T)
		if !ok {
			return zero, errors.Errorf("mapper for %s returned %T", qt, v)
		}
		return t, nil
	}, true
}

// Prepare parses template with the configured parser.
func (c *StatementContext) Prepare(template string) error {
	switch c.state {
	case stateParsed:
		return ErrAlreadyPrepared
	case stateFinalized:
		return ErrFinalized
	}
	parsed, err := c.config.SQLStatements().Parser().Parse(template)
	if err != nil {
		return err
	}
	c.template = template
	c.parsed = parsed
	c.state = stateParsed
	c.logger.Debug("prepared statement", slog.String("sql", parsed.SQL), slog.Int("params", len(parsed.Params)))
	return nil
}

// Template returns the template passed to Prepare.
func (c *StatementContext) Template() string {
	return c.template
}

// Parsed returns the parsed template, or nil before Prepare.
func (c *StatementContext) Parsed() *ParsedSQL {
	return c.parsed
}

// Bind binds value to the named parameter. Binding a name again replaces
// the previous value.
func (c *StatementContext) Bind(name string, value any) error {
	return c.BindQualified(name, value)
}

// BindQualified binds value to the named parameter, selecting its argument
// with the given qualifiers.
func (c *StatementContext) BindQualified(name string, value any, quals ...Qualifier) error {
	if c.state == stateFinalized {
		return ErrFinalized
	}
	if name == "" {
		return errors.New("cannot bind empty parameter name")
	}
	c.named[norm.NFC.String(name)] = binding{value: value, quals: quals}
	return nil
}

// BindPosition binds value to the positional parameter with the given
// zero based ordinal.
func (c *StatementContext) BindPosition(pos int, value any, quals ...Qualifier) error {
	if c.state == stateFinalized {
		return ErrFinalized
	}
	if pos < 0 {
		return errors.Errorf("cannot bind negative position %d", pos)
	}
	c.positional[pos] = binding{value: value, quals: quals}
	return nil
}

// BindMap binds every entry of values to the parameter named by its key.
func (c *StatementContext) BindMap(values map[string]any) error {
	if c.state == stateFinalized {
		return ErrFinalized
	}
	for name, value := range values {
		if err := c.Bind(name, value); err != nil {
			return err
		}
	}
	return nil
}

// BindStruct binds the fields of the struct v tagged with `db:"name"`. With
// a non-empty prefix, fields are bound as "prefix.name". Fields tagged
// omitempty bind NULL when they hold their zero value.
func (c *StatementContext) BindStruct(prefix string, v any) error {
	if c.state == stateFinalized {
		return ErrFinalized
	}
	values, err := typeinfo.Values(v)
	if err != nil {
		return errors.Wrap(err, "cannot bind struct")
	}
	for _, fv := range values {
		name := fv.Field.Tag
		if prefix != "" {
			name = prefix + "." + name
		}
		c.named[norm.NFC.String(name)] = binding{value: fv.Value}
	}
	return nil
}

// Finalize converts the bound values with the registry's arguments and
// returns the driver SQL and arguments. A name used more than once is
// converted once. It fails if a parameter has no value or, unless allowed, a
// bound name is not used by the template. After a successful Finalize the
// context can no longer be changed.
func (c *StatementContext) Finalize() (*Prepared, error) {
	switch c.state {
	case stateEmpty:
		return nil, ErrNotPrepared
	case stateFinalized:
		return nil, ErrFinalized
	}

	if err := c.checkUnused(); err != nil {
		return nil, err
	}

	args := make([]any, len(c.parsed.Params))
	converted := make(map[string]any)
	for i, ref := range c.parsed.Params {
		if ref.IsNamed() {
			if arg, ok := converted[ref.Name]; ok {
				args[i] = arg
				continue
			}
		}
		b, ok := c.lookupBinding(ref)
		if !ok {
			return nil, errors.Wrapf(ErrMissingBinding, "parameter %s", ref)
		}
		arg, err := c.bindArgument(ref, b)
		if err != nil {
			return nil, err
		}
		if ref.IsNamed() {
			converted[ref.Name] = arg
		}
		args[i] = arg
	}

	c.state = stateFinalized
	c.logger.Debug("finalized statement", slog.String("sql", c.parsed.SQL), slog.Int("args", len(args)))
	return &Prepared{
		SQL:    c.parsed.SQL,
		Args:   args,
		Params: slices.Clone(c.parsed.Params),
	}, nil
}

func (c *StatementContext) lookupBinding(ref ParamRef) (binding, bool) {
	if ref.IsNamed() {
		b, ok := c.named[ref.Name]
		return b, ok
	}
	b, ok := c.positional[ref.Position]
	return b, ok
}

// checkUnused reports bound values the template does not reference.
func (c *StatementContext) checkUnused() error {
	if c.config.SQLStatements().AllowUnusedBindings() {
		return nil
	}
	names := c.parsed.Names()
	var unused []string
	for name := range c.named {
		if !slices.Contains(names, name) {
			unused = append(unused, name)
		}
	}
	positional := 0
	if c.parsed.Positional() {
		positional = len(c.parsed.Params)
	}
	for pos := range c.positional {
		if pos >= positional {
			unused = append(unused, ParamRef{Position: pos}.String())
		}
	}
	if len(unused) == 0 {
		return nil
	}
	sort.Strings(unused)
	return errors.Wrapf(ErrUnusedBinding, "parameters %v", unused)
}

func (c *StatementContext) bindArgument(ref ParamRef, b binding) (any, error) {
	if b.value == nil {
		return nil, nil
	}
	qt := TypeOf(reflect.TypeOf(b.value)).With(b.quals...)
	arg, ok := c.FindArgumentFor(qt)
	if !ok {
		c.logger.Warn("no argument for bound value", slog.String("param", ref.String()), slog.String("type", qt.String()))
		return nil, errors.Wrapf(ErrUnsupportedType, "parameter %s: %s", ref, qt)
	}
	v, err := arg.BindArgument(b.value, c)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot bind parameter %s", ref)
	}
	return v, nil
}

// Define sets an attribute of the statement.
func (c *StatementContext) Define(key string, value any) {
	c.attributes[key] = value
}

// Attribute returns an attribute of the statement, defined on the context
// or inherited from its registry.
func (c *StatementContext) Attribute(key string) (any, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// Attributes returns a copy of the statement's attributes.
func (c *StatementContext) Attributes() map[string]any {
	return maps.Clone(c.attributes)
}

// AddCleanable registers a resource released by Close.
func (c *StatementContext) AddCleanable(cl Cleanable) {
	c.cleanables = append(c.cleanables, cl)
}

// Close releases the registered resources, the most recently added first.
// Every resource is closed; the first error is returned.
func (c *StatementContext) Close() error {
	var first error
	for i := len(c.cleanables) - 1; i >= 0; i-- {
		if err := c.cleanables[i].Close(); err != nil {
			if first == nil {
				first = err
				continue
			}
			c.logger.Warn("cannot release statement resource", slog.String("error", err.Error()))
		}
	}
	c.cleanables = nil
	return first
}
