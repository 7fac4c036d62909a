package status

import (
	"time"
)

// Source yields presentation snapshots.
type Source interface {
	GetPresentationStatus() PresentationStatus
}

// SourceFunc adapts a function to a Source.
type SourceFunc func() PresentationStatus

// GetPresentationStatus calls f.
func (f SourceFunc) GetPresentationStatus() PresentationStatus {
	return f()
}

// ThumbnailOptions selects the export filter and pixel size of a slide image.
// Zero width or height lets the application keep the slide's aspect ratio.
type ThumbnailOptions struct {
	Format string
	Width  int
	Height int
}

// Thumbnailer is implemented by sources that can render the current slide.
type Thumbnailer interface {
	SlideThumbnail(opts ThumbnailOptions) ([]byte, error)
}

// WithTimeout bounds each query of src by d. A query that does not answer in
// time is reported as unavailable; its goroutine is left to finish on its own
// because the application call cannot be interrupted.
func WithTimeout(src Source, d time.Duration) Source {
	if d <= 0 {
		return src
	}
	return &timeoutSource{src: src, timeout: d}
}

type timeoutSource struct {
	src     Source
	timeout time.Duration
}

func (t *timeoutSource) GetPresentationStatus() PresentationStatus {
	ch := make(chan PresentationStatus, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- Unavailable(MsgUnknown)
			}
		}()
		ch <- t.src.GetPresentationStatus()
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case st := <-ch:
		return st
	case <-timer.C:
		return Unavailable(MsgTimeout)
	}
}

// SlideThumbnail forwards to the wrapped source when it can render slides.
func (t *timeoutSource) SlideThumbnail(opts ThumbnailOptions) ([]byte, error) {
	th, ok := t.src.(Thumbnailer)
	if !ok {
		return nil, ErrUnsupported
	}
	return th.SlideThumbnail(opts)
}
