// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package convert turns the values returned by database drivers into Go
// values. Drivers return one of nil, int64, float64, bool, []byte, string or
// time.Time for every column.
package convert

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ErrNull is returned when a NULL column is converted into a type that cannot
// represent it.
var ErrNull = errors.New("cannot convert NULL")

// Signed is the set of signed integer types.
type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is the set of unsigned integer types.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Float is the set of floating point types.
type Float interface {
	~float32 | ~float64
}

// String converts src into a string.
func String(src any) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", errors.Wrap(ErrNull, "into string")
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", errors.Errorf("cannot convert %T into string", src)
}

// Bytes converts src into a byte slice that does not alias driver memory.
func Bytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	}
	s, err := String(src)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Bool converts src into a bool.
func Bool(src any) (bool, error) {
	switch v := src.(type) {
	case nil:
		return false, errors.Wrap(ErrNull, "into bool")
	case bool:
		return v, nil
	case int64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, errors.Errorf("cannot convert %d into bool", v)
	case string:
		return parseBool(v)
	case []byte:
		return parseBool(string(v))
	}
	return false, errors.Errorf("cannot convert %T into bool", src)
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.Errorf("cannot convert %q into bool", s)
	}
	return b, nil
}

// Int converts src into a signed integer of type T, failing on overflow.
func Int[T Signed](src any) (T, error) {
	var i int64
	switch v := src.(type) {
	case nil:
		return 0, errors.Wrapf(ErrNull, "into %T", T(0))
	case int64:
		i = v
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, errors.Errorf("cannot convert %v into %T", v, T(0))
		}
		i = int64(v)
	case bool:
		if v {
			i = 1
		}
	case string:
		return parseInt[T](v)
	case []byte:
		return parseInt[T](string(v))
	default:
		return 0, errors.Errorf("cannot convert %T into %T", src, T(0))
	}
	if int64(T(i)) != i {
		return 0, errors.Errorf("value %d overflows %T", i, T(0))
	}
	return T(i), nil
}

func parseInt[T Signed](s string) (T, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("cannot convert %q into %T", s, T(0))
	}
	if int64(T(i)) != i {
		return 0, errors.Errorf("value %d overflows %T", i, T(0))
	}
	return T(i), nil
}

// Uint converts src into an unsigned integer of type T, failing on overflow
// and negative values.
func Uint[T Unsigned](src any) (T, error) {
	var u uint64
	switch v := src.(type) {
	case nil:
		return 0, errors.Wrapf(ErrNull, "into %T", T(0))
	case int64:
		if v < 0 {
			return 0, errors.Errorf("cannot convert negative value %d into %T", v, T(0))
		}
		u = uint64(v)
	case string, []byte:
		s := fmt.Sprintf("%s", v)
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, errors.Errorf("cannot convert %q into %T", s, T(0))
		}
		u = parsed
	default:
		return 0, errors.Errorf("cannot convert %T into %T", src, T(0))
	}
	if uint64(T(u)) != u {
		return 0, errors.Errorf("value %d overflows %T", u, T(0))
	}
	return T(u), nil
}

// FloatOf converts src into a floating point value of type T.
func FloatOf[T Float](src any) (T, error) {
	switch v := src.(type) {
	case nil:
		return 0, errors.Wrapf(ErrNull, "into %T", T(0))
	case float64:
		return T(v), nil
	case int64:
		return T(v), nil
	case string, []byte:
		s := fmt.Sprintf("%s", v)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.Errorf("cannot convert %q into %T", s, T(0))
		}
		return T(f), nil
	}
	return 0, errors.Errorf("cannot convert %T into %T", src, T(0))
}

// timeLayouts are the text forms accepted for time columns, as written by
// SQLite and most drivers that return times as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time converts src into a time.Time.
func Time(src any) (time.Time, error) {
	switch v := src.(type) {
	case nil:
		return time.Time{}, errors.Wrap(ErrNull, "into time.Time")
	case time.Time:
		return v, nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	case int64:
		return time.Unix(v, 0).UTC(), nil
	}
	return time.Time{}, errors.Errorf("cannot convert %T into time.Time", src)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("cannot convert %q into time.Time", s)
}
