// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Parser names accepted in Options.
const (
	ColonParser = "colon"
	HashParser  = "hash"
)

// Options is the file form of the statement settings of a ConfigRegistry.
type Options struct {
	// Parser selects the placeholder syntax: "colon" (the default) or
	// "hash".
	Parser string `yaml:"parser,omitempty"`

	// ParseCacheSize enables caching of parsed templates when positive.
	ParseCacheSize int `yaml:"parse-cache-size,omitempty"`

	// AllowUnusedBindings permits binding names the template does not use.
	AllowUnusedBindings bool `yaml:"allow-unused-bindings,omitempty"`
}

// LoadOptions decodes YAML options from r. Unknown fields are rejected.
func LoadOptions(r io.Reader) (Options, error) {
	var opts Options
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&opts); err != nil && err != io.EOF {
		return Options{}, errors.Wrap(err, "cannot decode options")
	}
	return opts, nil
}

// LoadOptionsFile decodes YAML options from the file at path.
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrap(err, "cannot read options")
	}
	opts, err := LoadOptions(bytes.NewReader(data))
	if err != nil {
		return Options{}, errors.Wrapf(err, "in %s", path)
	}
	return opts, nil
}

// NewParser returns the parser selected by the options.
func (o Options) NewParser() (SQLParser, error) {
	var parser SQLParser
	switch o.Parser {
	case "", ColonParser:
		parser = NewColonPrefixParser()
	case HashParser:
		parser = NewHashPrefixParser()
	default:
		return nil, errors.Errorf("unknown parser %q: must be %q or %q", o.Parser, ColonParser, HashParser)
	}
	if o.ParseCacheSize < 0 {
		return nil, errors.Errorf("invalid parse cache size %d", o.ParseCacheSize)
	}
	if o.ParseCacheSize == 0 {
		return parser, nil
	}
	cached, err := NewCachingParser(parser, o.ParseCacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// Configure applies opts to the statement settings of r. Nothing is changed
// if opts is invalid.
func (r *ConfigRegistry) Configure(opts Options) error {
	parser, err := opts.NewParser()
	if err != nil {
		return err
	}
	statements := r.SQLStatements()
	statements.SetParser(parser)
	statements.SetAllowUnusedBindings(opts.AllowUnusedBindings)
	return nil
}
