//go:build darwin
// +build darwin

package status

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRecorder answers osascript invocations from a table keyed by the
// expression after "return ".
type scriptRecorder struct {
	answers map[string]string
	scripts []string
}

func (s *scriptRecorder) run(script string) (string, error) {
	s.scripts = append(s.scripts, script)
	if strings.Contains(script, "System Events") {
		return s.answers["running"], nil
	}
	expr := script[strings.Index(script, "return ")+len("return "):]
	out, ok := s.answers[expr]
	if !ok {
		return "", errors.New("execution error: can't get " + expr)
	}
	return out, nil
}

func TestConnectScriptNotRunning(t *testing.T) {
	rec := &scriptRecorder{answers: map[string]string{"running": "false"}}
	_, err := connectScript(rec.run)
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestScriptObjectPaths(t *testing.T) {
	rec := &scriptRecorder{answers: map[string]string{
		"running":                          "true",
		"count of (slide show windows)":    "1",
		"(slide index of slide of slide show view of item 1 of slide show windows) as integer": "4",
		"volume of media format of item 2 of shapes of slide of slide show view of item 1 of slide show windows": "0.5",
	}}

	s, err := connectScript(rec.run)
	require.NoError(t, err)
	app := s.Application()

	n, err := app.Value("Count")
	assert.Error(t, err, "the application itself has no count")
	assert.Nil(t, n)

	count, windows, ok := readCount(app, "SlideShowWindows")
	require.True(t, ok)
	assert.Equal(t, int64(1), count)

	window, err := windows.Object("Item", 1)
	require.NoError(t, err)
	view, _ := window.Object("View")
	slide, _ := view.Object("Slide")

	idx, ok := readInt(slide, "SlideIndex")
	require.True(t, ok)
	assert.Equal(t, int64(4), idx)

	shapes, _ := slide.Object("Shapes")
	shape, _ := shapes.Object("Item", int64(2))
	mf, _ := shape.Object("MediaFormat")
	raw, err := mf.Value("Volume")
	require.NoError(t, err)
	assert.True(t, isFloat(raw))
	f, err := asFloat(raw)
	require.NoError(t, err)
	assert.Equal(t, 0.5, volumeFraction(f, isFloat(raw)))

	assert.ErrorIs(t, slide.Call("Export", "/tmp/x.png", "PNG"), ErrUnsupported)
}

func TestScriptObjectMissingValue(t *testing.T) {
	rec := &scriptRecorder{answers: map[string]string{
		"running":                    "true",
		"link format of item 1 of x": "missing value",
	}}
	obj := &scriptObject{path: "item 1 of x", run: rec.run}
	_, err := obj.Value("LinkFormat")
	assert.Error(t, err)
}

func TestScriptActivePresentationMustExist(t *testing.T) {
	rec := &scriptRecorder{answers: map[string]string{
		"running":                      "true",
		"count of (presentations)":     "1",
		"(exists active presentation)": "false",
	}}
	c := ConnectorFunc(func() (Session, error) { return connectScript(rec.run) })

	st := NewQuerier(c, WithLogger(log.New(io.Discard))).GetPresentationStatus()
	assert.Equal(t, Unavailable(MsgNoActive), st)

	rec.answers["(exists active presentation)"] = "true"
	s, err := connectScript(rec.run)
	require.NoError(t, err)
	pres, err := s.Application().Object("ActivePresentation")
	require.NoError(t, err)
	assert.Equal(t, "active presentation", pres.(*scriptObject).path)
}
