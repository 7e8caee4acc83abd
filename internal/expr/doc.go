// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package expr lexes SQL statement templates. It finds the placeholders in a
template, replaces each of them with a positional "?" marker and records which
named or positional parameter every marker stands for. It does not interpret
the rest of the SQL and it does not interact with databases.

Two lexical conventions are supported and differ only in the sigil that starts
a named placeholder: ":name" and "#name". A bare "?" is always a positional
placeholder. A template may use named or positional placeholders but not both.

The lexer skips single and double quoted string literals, "--" line comments
and block comments; anything inside them is copied verbatim. A doubled
sigil (for example the PostgreSQL cast "x::int") is never a placeholder and is
copied verbatim. A backslash before a sigil or a question mark emits that
character literally and drops the backslash.

The output of the lexer is a ParsedExpr, a list of parts. Parsing is pure and
deterministic, the same template always yields the same parts.
*/
package expr
