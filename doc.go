// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package sqlstmt prepares SQL statements for database/sql drivers.

A statement is written as a template with named or positional placeholders.
The template is parsed into driver SQL, where every placeholder is replaced by
a question mark, plus the list of parameters behind those question marks.
Values bound to the parameters are converted into driver values, and values
read from result columns are converted back into Go values, by converters
looked up in a registry by type and qualifiers.

This package does not execute statements, it only prepares the SQL and the
arguments that are handed to database/sql.

# Templates

Two placeholder syntaxes are available. The colon syntax, the default, is:

	SELECT name, team
	FROM person
	WHERE id = :id OR manager_id = :id

The hash syntax is the same with "#" in place of ":":

	SELECT name, team
	FROM person
	WHERE id = #id

Both produce the driver SQL:

	SELECT name, team
	FROM person
	WHERE id = ? OR manager_id = ?

A named placeholder may appear more than once; every occurrence uses the
value bound to the name. Positional "?" placeholders are bound by their zero
based ordinal. A template cannot use both named and positional placeholders.

Placeholders are not recognised inside string literals, quoted identifiers
or comments. A doubled sigil such as the PostgreSQL cast "x::int" is left
untouched. A sigil preceded by a backslash is emitted as a literal character.

# Converters

Every Go value bound to a parameter is converted by an Argument, and every
column value read from a result is converted by a ColumnMapper. Both are found
by QualifiedType: the Go type of the value and a set of qualifiers, such as
JSON or NVarchar, that select between different conversions of the same type.

Lookup tries, in order, a converter registered for exactly the qualified
type, then the registered factories starting from the most recent, then the
built-in converters. Built-in converters handle unqualified basic types,
time.Time, pointers, sql.Scanner and driver.Valuer implementations, and
values qualified with JSON, EnumByName or EnumByOrdinal.

# Registries

Converters and statement settings live in a ConfigRegistry. A registry can be
derived with CreateChild; the child starts with a copy of its parent's
configuration, and later registrations on either side are not seen by the
other. Every StatementContext works on its own child of the registry it is
created from:

	reg := sqlstmt.NewConfigRegistry()
	sqlstmt.RegisterArgument(reg.Arguments(), func(s string, _ *sqlstmt.StatementContext) (any, error) {
		return strings.ToUpper(s), nil
	}, sqlstmt.NVarchar)

	ctx := sqlstmt.CreateContext(reg)
	if err := ctx.Prepare("SELECT * FROM person WHERE name = :name"); err != nil {
		return err
	}
	ctx.BindQualified("name", "fred", sqlstmt.NVarchar)
	prepared, err := ctx.Finalize()
	if err != nil {
		return err
	}
	rows, err := db.Query(prepared.SQL, prepared.Args...)
*/
package sqlstmt
