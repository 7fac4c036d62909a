//go:build darwin
// +build darwin

package status

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const appName = "Microsoft PowerPoint"

// DefaultConnector attaches to PowerPoint for Mac through AppleScript.
func DefaultConnector() Connector {
	return ConnectorFunc(func() (Session, error) {
		return connectScript(runAppleScript)
	})
}

func runAppleScript(script string) (string, error) {
	cmd := exec.Command("osascript", "-e", script)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", errors.New(msg)
		}
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// scriptTerm is the AppleScript spelling of an automation name. Coerce, when
// set, is appended as "as <coerce>" on reads. Specifiers are resolved lazily,
// so terms marked checked are tested with "exists" when the object is taken.
type scriptTerm struct {
	term    string
	coerce  string
	checked bool
}

// scriptTerms maps the automation names used by the query onto PowerPoint's
// AppleScript dictionary.
var scriptTerms = map[string]scriptTerm{
	"Presentations":      {term: "presentations"},
	"ActivePresentation": {term: "active presentation", checked: true},
	"Slides":             {term: "slides"},
	"SlideShowWindows":   {term: "slide show windows"},
	"View":               {term: "slide show view"},
	"Slide":              {term: "slide"},
	"SlideIndex":         {term: "slide index", coerce: "integer"},
	"Windows":            {term: "document windows"},
	"Selection":          {term: "selection"},
	"SlideRange":         {term: "slide range"},
	"Shapes":             {term: "shapes"},
	"Type":               {term: "type", coerce: "integer"},
	"MediaFormat":        {term: "media format"},
	"IsPlaying":          {term: "is playing"},
	"Length":             {term: "length", coerce: "integer"},
	"CurrentPosition":    {term: "current position", coerce: "integer"},
	"Volume":             {term: "volume"},
	"Muted":              {term: "muted"},
	"Name":               {term: "name"},
	"LinkFormat":         {term: "link format"},
	"SourceFullName":     {term: "source full name"},
}

type scriptSession struct {
	app *scriptObject
}

func connectScript(run func(string) (string, error)) (Session, error) {
	out, err := run(fmt.Sprintf(`tell application "System Events" to return (exists process "%s")`, appName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	if out != "true" {
		return nil, ErrNotRunning
	}
	return &scriptSession{app: &scriptObject{run: run}}, nil
}

func (s *scriptSession) Application() Object {
	return s.app
}

// Close is a no-op: every osascript process ends with its read.
func (s *scriptSession) Close() {}

// scriptObject is an AppleScript object specifier such as
// "slide show view of item 1 of slide show windows". The empty path is the
// application itself.
type scriptObject struct {
	path string
	run  func(string) (string, error)
}

func (o *scriptObject) child(expr string) string {
	if o.path == "" {
		return expr
	}
	return expr + " of " + o.path
}

func (o *scriptObject) Object(name string, args ...interface{}) (Object, error) {
	if name == "Item" {
		if len(args) != 1 {
			return nil, fmt.Errorf("reading Item: want one index, got %d", len(args))
		}
		idx, err := asInt(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading Item: %w", err)
		}
		return &scriptObject{path: o.child(fmt.Sprintf("item %d", idx)), run: o.run}, nil
	}
	t, ok := scriptTerms[name]
	if !ok {
		return nil, fmt.Errorf("reading %s: no AppleScript term", name)
	}
	child := &scriptObject{path: o.child(t.term), run: o.run}
	if t.checked {
		if err := child.exists(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
	}
	return child, nil
}

func (o *scriptObject) exists() error {
	out, err := o.run(fmt.Sprintf(`tell application "%s" to return (exists %s)`, appName, o.path))
	if err != nil {
		return err
	}
	if out != "true" {
		return fmt.Errorf("%s does not exist", o.path)
	}
	return nil
}

func (o *scriptObject) Value(name string) (interface{}, error) {
	var expr string
	if name == "Count" {
		expr = fmt.Sprintf("count of (%s)", o.path)
	} else {
		t, ok := scriptTerms[name]
		if !ok {
			return nil, fmt.Errorf("reading %s: no AppleScript term", name)
		}
		expr = o.child(t.term)
		if t.coerce != "" {
			expr = fmt.Sprintf("(%s) as %s", expr, t.coerce)
		}
	}
	out, err := o.run(fmt.Sprintf(`tell application "%s" to return %s`, appName, expr))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if out == "missing value" {
		return nil, fmt.Errorf("reading %s: missing value", name)
	}
	return out, nil
}

func (o *scriptObject) Call(name string, args ...interface{}) error {
	return fmt.Errorf("calling %s: %w", name, ErrUnsupported)
}

func (o *scriptObject) Release() {}
