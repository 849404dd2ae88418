// Package fieldhandler sanitizes raw values against a declared data type.
//
// The query builder never embeds a literal it did not pass through a
// Sanitizer. Handler is the default implementation; callers with their own
// validation rules implement Sanitizer instead.
package fieldhandler

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"
)

// Data types understood by the builder and the default handler.
const (
	TypeColumn       = "column"
	TypeSpecial      = "special"
	TypeString       = "string"
	TypeText         = "text"
	TypeInteger      = "integer"
	TypeFloat        = "float"
	TypeBoolean      = "boolean"
	TypeDate         = "date"
	TypeDatetime     = "datetime"
	TypeUUID         = "uuid"
	TypeEmail        = "email"
	TypeURL          = "url"
	TypeAlphanumeric = "alphanumeric"
)

var (
	// ErrUnknownType is returned for a data type the handler does not know.
	ErrUnknownType = errors.New("fieldhandler: unknown data type")
	// ErrInvalidValue is returned when a value does not match its data type.
	ErrInvalidValue = errors.New("fieldhandler: invalid value")
)

// Value is a sanitized value.
type Value struct {
	V    any  // string, int64, float64, bool or time.Time
	Null bool // The raw value was nil, or an empty date.
}

// Null returns a null Value.
func Null() Value { return Value{Null: true} }

// IsNumeric reports whether the value is an integer or a float.
func (v Value) IsNumeric() bool {
	switch v.V.(type) {
	case int64, float64:
		return !v.Null
	}
	return false
}

// String returns the value formatted without quotes. Dates use the given layout.
func (v Value) String(dateLayout string) string {
	switch x := v.V.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.Format(dateLayout)
	default:
		return fmt.Sprint(x)
	}
}

// Sanitizer cleans a raw value for the declared data type.
type Sanitizer interface {
	Sanitize(key string, value any, dataType string) (Value, error)
}

// SanitizerFunc type is an adapter to allow the use of ordinary functions as Sanitizer.
type SanitizerFunc func(key string, value any, dataType string) (Value, error)

// Sanitize returns f(key, value, dataType).
func (f SanitizerFunc) Sanitize(key string, value any, dataType string) (Value, error) {
	return f(key, value, dataType)
}

// Handler is the default Sanitizer.
type Handler struct {
	location *time.Location
}

// Option configures a Handler.
type Option func(*Handler)

// WithLocation sets the location date strings without a zone are parsed in.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		h.location = loc
	}
}

// New returns a Handler.
func New(opts ...Option) *Handler {
	h := &Handler{location: time.UTC}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Sanitize implements Sanitizer.
func (h *Handler) Sanitize(key string, value any, dataType string) (Value, error) {
	dataType = strings.ToLower(strings.TrimSpace(dataType))
	if value == nil {
		if !Known(dataType) {
			return Value{}, fmt.Errorf("%w %q", ErrUnknownType, dataType)
		}
		return Null(), nil
	}
	switch dataType {
	case TypeString:
		s, err := toString(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		return Value{V: cleanString(strings.TrimSpace(s), false)}, nil
	case TypeText:
		s, err := toString(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		return Value{V: cleanString(s, true)}, nil
	case TypeInteger:
		n, err := toInt64(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		return Value{V: n}, nil
	case TypeFloat:
		f, err := toFloat64(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		return Value{V: f}, nil
	case TypeBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		return Value{V: b}, nil
	case TypeDate, TypeDatetime:
		return h.date(key, value, dataType)
	case TypeUUID:
		s, err := toString(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		return Value{V: id.String()}, nil
	case TypeEmail:
		s, err := toString(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		addr, err := mail.ParseAddress(strings.TrimSpace(s))
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		return Value{V: addr.Address}, nil
	case TypeURL:
		s, err := toString(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		u, err := url.ParseRequestURI(strings.TrimSpace(s))
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return Value{}, invalid(key, dataType, errors.New("absolute url required"))
		}
		return Value{V: u.String()}, nil
	case TypeAlphanumeric:
		s, err := toString(value)
		if err != nil {
			return Value{}, invalid(key, dataType, err)
		}
		s = strings.TrimSpace(s)
		for _, r := range s {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
				return Value{}, invalid(key, dataType, fmt.Errorf("character %q not allowed", r))
			}
		}
		return Value{V: s}, nil
	default:
		return Value{}, fmt.Errorf("%w %q", ErrUnknownType, dataType)
	}
}

func (h *Handler) date(key string, value any, dataType string) (Value, error) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return Null(), nil
		}
		return Value{V: v}, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return Null(), nil
		}
	}
	t, err := cast.ToTimeInDefaultLocationE(value, h.location)
	if err != nil {
		return Value{}, invalid(key, dataType, err)
	}
	if dataType == TypeDate {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	return Value{V: t}, nil
}

// Known reports whether the data type is one the handler sanitizes.
func Known(dataType string) bool {
	switch dataType {
	case TypeString, TypeText, TypeInteger, TypeFloat, TypeBoolean, TypeDate, TypeDatetime,
		TypeUUID, TypeEmail, TypeURL, TypeAlphanumeric:
		return true
	}
	return false
}

func invalid(key, dataType string, err error) error {
	return fmt.Errorf("%w for %s %q: %v", ErrInvalidValue, dataType, key, err)
}

// toString accepts scalars only; slices and maps are rejected rather than formatted.
func toString(value any) (string, error) {
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Func, reflect.Chan:
		if _, ok := value.([]byte); !ok {
			return "", fmt.Errorf("unable to use %T as a string", value)
		}
	}
	return cast.ToStringE(value)
}

// toInt64 parses strings in base 10; cast would read a leading zero as octal.
func toInt64(value any) (int64, error) {
	if s, ok := value.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	if f, ok := value.(float64); ok && f != float64(int64(f)) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return cast.ToInt64E(value)
}

func toFloat64(value any) (float64, error) {
	if s, ok := value.(string); ok {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return cast.ToFloat64E(value)
}

// cleanString normalizes to NFC and drops control characters.
func cleanString(s string, keepNewlines bool) string {
	s = norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if r == '\t' || (keepNewlines && (r == '\n' || r == '\r')) {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

var _ Sanitizer = (*Handler)(nil)
