// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/canonical/sqlstmt"
)

// ParseOptions holds the flags of the parse command.
type ParseOptions struct {
	Parser string
	Config string
}

// parseErrorDetails locates a parse error in JSON output.
type parseErrorDetails struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse [template]",
		Short: "Parse a template into driver SQL and parameters",
		Long: `Parse a SQL template and print the driver SQL, where every placeholder is
replaced by "?", and the parameter behind each "?".

The template is read from standard input when it is not given as an argument.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Parser, "parser", "", `placeholder syntax, "colon" or "hash" (default from --config, else "colon")`)
	cmd.Flags().StringVar(&opts.Config, "config", "", "YAML options file")

	return cmd
}

func runParse(rootOpts *RootOptions, opts *ParseOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format: rootOpts.Format,
		Writer: cmd.OutOrStdout(),
	}

	reg, err := newRegistry(rootOpts, opts, cmd.ErrOrStderr())
	if err != nil {
		if outErr := formatter.Error(ErrCodeConfig, err.Error(), nil); outErr != nil {
			return outErr
		}
		return reportedExitError(ExitCommandError, "invalid configuration", err)
	}

	var template string
	if len(args) == 1 {
		template = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			if outErr := formatter.Error(ErrCodeInput, err.Error(), nil); outErr != nil {
				return outErr
			}
			return reportedExitError(ExitCommandError, "cannot read template", err)
		}
		template = string(data)
	}

	ctx := sqlstmt.CreateContext(reg)
	if err := ctx.Prepare(template); err != nil {
		var details any
		var parseErr *sqlstmt.ParseError
		if errors.As(err, &parseErr) {
			details = parseErrorDetails{Line: parseErr.Line, Column: parseErr.Column}
		}
		if outErr := formatter.Error(ErrCodeParse, err.Error(), details); outErr != nil {
			return outErr
		}
		return reportedExitError(ExitFailure, "cannot parse template", err)
	}

	parsed := ctx.Parsed()
	return formatter.Success(parsed, func(w io.Writer) error {
		return writeParsed(w, parsed)
	})
}

// newRegistry builds the registry from the config file and flags. Flags
// take precedence over the file.
func newRegistry(rootOpts *RootOptions, opts *ParseOptions, logTo io.Writer) (*sqlstmt.ConfigRegistry, error) {
	var options sqlstmt.Options
	if opts.Config != "" {
		loaded, err := sqlstmt.LoadOptionsFile(opts.Config)
		if err != nil {
			return nil, err
		}
		options = loaded
	}
	if opts.Parser != "" {
		options.Parser = opts.Parser
	}

	reg := sqlstmt.NewConfigRegistry()
	if err := reg.Configure(options); err != nil {
		return nil, err
	}
	reg.SQLStatements().SetLogger(rootOpts.logger(logTo))
	return reg, nil
}

func writeParsed(w io.Writer, parsed *sqlstmt.ParsedSQL) error {
	if _, err := fmt.Fprintf(w, "sql: %s\n", parsed.SQL); err != nil {
		return err
	}
	if len(parsed.Params) == 0 {
		_, err := fmt.Fprintln(w, "params: none")
		return err
	}
	if _, err := fmt.Fprintln(w, "params:"); err != nil {
		return err
	}
	for _, ref := range parsed.Params {
		if _, err := fmt.Fprintf(w, "  %d: %s\n", ref.Position, ref); err != nil {
			return err
		}
	}
	return nil
}
