package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// exportFilters maps file formats to PowerPoint's Slide.Export filter names.
var exportFilters = map[string]string{
	"png":  "PNG",
	"jpg":  "JPG",
	"jpeg": "JPG",
	"gif":  "GIF",
	"bmp":  "BMP",
	"tif":  "TIF",
	"tiff": "TIF",
}

// ExportFilter returns the export filter for format, defaulting to PNG.
func ExportFilter(format string) (string, error) {
	if format == "" {
		return "PNG", nil
	}
	f, ok := exportFilters[strings.ToLower(format)]
	if !ok {
		return "", fmt.Errorf("unsupported thumbnail format %q", format)
	}
	return f, nil
}

// SlideThumbnail exports the current slide to a temporary file and returns
// its bytes. Like GetPresentationStatus it attaches and releases per call.
func (q *Querier) SlideThumbnail(opts ThumbnailOptions) (data []byte, err error) {
	filter, err := ExportFilter(opts.Format)
	if err != nil {
		return nil, err
	}

	session, err := q.connect()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgNotOpen, err)
	}
	defer session.Close()

	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%s: %v", MsgUnknown, r)
		}
	}()

	app := session.Application()
	pres, err := readObject(app, "ActivePresentation")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MsgNoActive, err)
	}
	defer pres.Release()

	slide, _, err := resolveCurrentSlide(app, pres)
	if err != nil {
		return nil, err
	}
	defer slide.Release()

	dir, err := os.MkdirTemp("", "gopresenting-")
	if err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "slide."+strings.ToLower(filter))
	args := []interface{}{path, filter}
	if opts.Width > 0 {
		args = append(args, opts.Width)
		if opts.Height > 0 {
			args = append(args, opts.Height)
		}
	}
	if err := slide.Call("Export", args...); err != nil {
		return nil, fmt.Errorf("exporting slide: %w", err)
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exported slide: %w", err)
	}
	return data, nil
}
