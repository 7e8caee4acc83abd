// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package typeinfo contains the reflection over struct types used to bind struct
fields as statement parameters. As much as possible, reflection code is
limited to this package.
*/
package typeinfo
