package molajo

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for query construction and rendering.
var (
	// ErrRequiredValue is returned when a mandatory builder argument is empty.
	ErrRequiredValue = errors.New("molajo: required value missing")

	// ErrFilter is returned when the value filter rejects a value or data type.
	ErrFilter = errors.New("molajo: value rejected by filter")

	// ErrMissingColumns is returned when a statement that needs columns has none.
	ErrMissingColumns = errors.New("molajo: no columns selected")

	// ErrMissingFrom is returned when a statement has no table to operate on.
	ErrMissingFrom = errors.New("molajo: no table specified")

	// ErrMissingType is returned when an update column has no declared data type.
	ErrMissingType = errors.New("molajo: column data type missing")

	// ErrUnsupportedCondition is returned for comparison operators outside the allow-list.
	ErrUnsupportedCondition = errors.New("molajo: unsupported condition")
)

// RequiredValueError reports an empty mandatory argument to a builder call.
type RequiredValueError struct {
	Op   string // Builder operation, e.g. "select", "where"
	Name string // Argument name, e.g. "column_name"
}

// Error returns the error string.
func (e *RequiredValueError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("molajo: %s: %s is required", e.Op, e.Name)
	}
	return fmt.Sprintf("molajo: %s is required", e.Name)
}

// Is reports whether the target error matches RequiredValueError.
func (e *RequiredValueError) Is(err error) bool {
	return err == ErrRequiredValue
}

// NewRequiredValueError returns a new RequiredValueError.
func NewRequiredValueError(op, name string) *RequiredValueError {
	return &RequiredValueError{Op: op, Name: name}
}

// IsRequiredValue returns true if the error is a RequiredValueError.
func IsRequiredValue(err error) bool {
	if err == nil {
		return false
	}
	var e *RequiredValueError
	return errors.As(err, &e) || errors.Is(err, ErrRequiredValue)
}

// FilterError wraps a rejection from the value filter.
type FilterError struct {
	Key      string // Key the value was filtered under (usually the column)
	DataType string // Declared data type
	Value    any    // Raw value
	Err      error  // Underlying filter error
}

// Error returns the error string.
func (e *FilterError) Error() string {
	var b strings.Builder
	b.WriteString("molajo: filter ")
	if e.Key != "" {
		fmt.Fprintf(&b, "%q ", e.Key)
	}
	fmt.Fprintf(&b, "as %s", e.DataType)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *FilterError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches FilterError.
func (e *FilterError) Is(err error) bool {
	return err == ErrFilter
}

// NewFilterError returns a new FilterError.
func NewFilterError(key, dataType string, value any, err error) *FilterError {
	return &FilterError{Key: key, DataType: dataType, Value: value, Err: err}
}

// IsFilterError returns true if the error is a FilterError.
func IsFilterError(err error) bool {
	if err == nil {
		return false
	}
	var e *FilterError
	return errors.As(err, &e) || errors.Is(err, ErrFilter)
}

// MissingColumnsError is returned at render time when no columns were selected.
type MissingColumnsError struct {
	QueryType string
}

// Error returns the error string.
func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("molajo: %s statement has no columns", e.QueryType)
}

// Is reports whether the target error matches MissingColumnsError.
func (e *MissingColumnsError) Is(err error) bool {
	return err == ErrMissingColumns
}

// NewMissingColumnsError returns a new MissingColumnsError.
func NewMissingColumnsError(queryType string) *MissingColumnsError {
	return &MissingColumnsError{QueryType: queryType}
}

// IsMissingColumns returns true if the error is a MissingColumnsError.
func IsMissingColumns(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingColumnsError
	return errors.As(err, &e) || errors.Is(err, ErrMissingColumns)
}

// MissingFromError is returned at render time when no table was added.
type MissingFromError struct {
	QueryType string
}

// Error returns the error string.
func (e *MissingFromError) Error() string {
	return fmt.Sprintf("molajo: %s statement has no table", e.QueryType)
}

// Is reports whether the target error matches MissingFromError.
func (e *MissingFromError) Is(err error) bool {
	return err == ErrMissingFrom
}

// NewMissingFromError returns a new MissingFromError.
func NewMissingFromError(queryType string) *MissingFromError {
	return &MissingFromError{QueryType: queryType}
}

// IsMissingFrom returns true if the error is a MissingFromError.
func IsMissingFrom(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingFromError
	return errors.As(err, &e) || errors.Is(err, ErrMissingFrom)
}

// MissingTypeError is returned when an update column carries no data type.
type MissingTypeError struct {
	Column string
}

// Error returns the error string.
func (e *MissingTypeError) Error() string {
	return fmt.Sprintf("molajo: column %q has no data type", e.Column)
}

// Is reports whether the target error matches MissingTypeError.
func (e *MissingTypeError) Is(err error) bool {
	return err == ErrMissingType
}

// NewMissingTypeError returns a new MissingTypeError.
func NewMissingTypeError(column string) *MissingTypeError {
	return &MissingTypeError{Column: column}
}

// IsMissingType returns true if the error is a MissingTypeError.
func IsMissingType(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingTypeError
	return errors.As(err, &e) || errors.Is(err, ErrMissingType)
}

// UnsupportedConditionError is returned for an operator outside the allow-list.
type UnsupportedConditionError struct {
	Condition string
}

// Error returns the error string.
func (e *UnsupportedConditionError) Error() string {
	return fmt.Sprintf("molajo: unsupported condition %q", e.Condition)
}

// Is reports whether the target error matches UnsupportedConditionError.
func (e *UnsupportedConditionError) Is(err error) bool {
	return err == ErrUnsupportedCondition
}

// NewUnsupportedConditionError returns a new UnsupportedConditionError.
func NewUnsupportedConditionError(condition string) *UnsupportedConditionError {
	return &UnsupportedConditionError{Condition: condition}
}

// IsUnsupportedCondition returns true if the error is an UnsupportedConditionError.
func IsUnsupportedCondition(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedConditionError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedCondition)
}
