package status

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotRunning is returned by a Connector when no application instance
	// is available to attach to.
	ErrNotRunning = errors.New("application not running")

	// ErrUnsupported is returned by the default Connector on platforms
	// without an automation backend.
	ErrUnsupported = errors.New("presentation automation not supported on this platform")

	// ErrNoSlide is returned when the current slide cannot be resolved.
	ErrNoSlide = errors.New("current slide could not be resolved")
)

// Object is a handle on one node of the application's object model.
// Names are the automation property names (ActivePresentation, Slides, ...).
// Implementations may fail on any read; callers treat every read as optional.
type Object interface {
	// Object reads an object-valued property. Collections take the item
	// index as argument: Object("Item", 1).
	Object(name string, args ...interface{}) (Object, error)
	// Value reads a scalar property.
	Value(name string) (interface{}, error)
	// Call invokes a method for its side effect.
	Call(name string, args ...interface{}) error
	// Release drops the handle. Safe to call more than once.
	Release()
}

// Session is an attached interop context. Close releases it and must be
// called on every path once Connect succeeded.
type Session interface {
	Application() Object
	Close()
}

// Connector attaches to a running application instance.
type Connector interface {
	Connect() (Session, error)
}

// ConnectorFunc adapts a function to a Connector.
type ConnectorFunc func() (Session, error)

// Connect calls f.
func (f ConnectorFunc) Connect() (Session, error) {
	return f()
}

func readValue(obj Object, name string) (v interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading %s: %v", name, r)
		}
	}()
	return obj.Value(name)
}

func readObject(obj Object, name string, args ...interface{}) (child Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			child, err = nil, fmt.Errorf("reading %s: %v", name, r)
		}
	}()
	child, err = obj.Object(name, args...)
	if err == nil && child == nil {
		err = fmt.Errorf("reading %s: nil object", name)
	}
	return child, err
}

func readInt(obj Object, name string) (int64, bool) {
	v, err := readValue(obj, name)
	if err != nil {
		return 0, false
	}
	n, err := asInt(v)
	return n, err == nil
}

func readFloat(obj Object, name string) (float64, bool) {
	v, err := readValue(obj, name)
	if err != nil {
		return 0, false
	}
	f, err := asFloat(v)
	return f, err == nil
}

func readBool(obj Object, name string) (bool, bool) {
	v, err := readValue(obj, name)
	if err != nil {
		return false, false
	}
	b, err := asBool(v)
	return b, err == nil
}

func readString(obj Object, name string) (string, bool) {
	v, err := readValue(obj, name)
	if err != nil || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v), true
	}
	return s, true
}

// countOf reads Count off a collection property of obj. The caller
// releases the returned collection.
func countOf(obj Object, collection string) (int64, Object, error) {
	coll, err := readObject(obj, collection)
	if err != nil {
		return 0, nil, err
	}
	v, err := readValue(coll, "Count")
	if err == nil {
		var n int64
		if n, err = asInt(v); err == nil {
			return n, coll, nil
		}
	}
	coll.Release()
	return 0, nil, err
}

func readCount(obj Object, collection string) (int64, Object, bool) {
	n, coll, err := countOf(obj, collection)
	return n, coll, err == nil
}

func asInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return -1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}
	i, err := asInt(v)
	return float64(i), err
}

// asBool accepts VARIANT_BOOL/MsoTriState integers (-1 true, 0 false) as well
// as AppleScript's textual booleans.
func asBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", b)
	}
	n, err := asInt(v)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// isFloat reports whether v was delivered as a real number rather than an
// integer, including AppleScript's textual reals.
func isFloat(v interface{}) bool {
	switch n := v.(type) {
	case float32, float64:
		return true
	case string:
		return strings.ContainsAny(n, ".,")
	}
	return false
}
