// Package status reads live playback state out of a running PowerPoint
// instance: current slide, slideshow mode and the first embedded video on the
// current slide.
//
// Every call attaches to the application, walks the object tree and releases
// the interop context before returning. Nothing is cached between calls.
package status

import (
	"encoding/json"
	"math"
)

// Messages reported in PresentationStatus.Error.
const (
	MsgNotOpen        = "application not open"
	MsgNoPresentation = "no presentation open"
	MsgNoActive       = "no active presentation"
	MsgUnknown        = "unknown interop error"
	MsgTimeout        = "status query timed out"
)

// VideoSnapshot describes the media shape found on the current slide.
// Times are in seconds, Volume is a fraction in [0, 1].
type VideoSnapshot struct {
	HasVideo    bool
	IsPlaying   bool
	Duration    float64
	CurrentTime float64
	Remaining   float64
	Volume      float64
	Muted       bool
	FileName    string
	SourceURL   string
}

// PresentationStatus is a point-in-time copy of what PowerPoint reports.
type PresentationStatus struct {
	IsAvailable     bool
	Error           string
	SlideCount      int
	CurrentSlide    int
	IsInSlideShow   bool
	SlidesRemaining int
	Video           VideoSnapshot
}

// Unavailable builds the record returned when nothing can be reported.
func Unavailable(msg string) PresentationStatus {
	return PresentationStatus{IsAvailable: false, Error: msg}
}

// normalize enforces the numeric invariants of a snapshot that has a video:
// non-negative times, position not past the end, remaining = duration - position
// clamped at zero and a volume fraction in [0, 1].
func (v VideoSnapshot) normalize() VideoSnapshot {
	if !v.HasVideo {
		return VideoSnapshot{}
	}
	v.Duration = nonNegative(v.Duration)
	v.CurrentTime = nonNegative(v.CurrentTime)
	if v.Duration > 0 && v.CurrentTime > v.Duration {
		v.CurrentTime = v.Duration
	}
	v.Remaining = math.Max(0, v.Duration-v.CurrentTime)
	v.Volume = clampUnit(v.Volume)
	return v
}

func nonNegative(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

func clampUnit(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

type videoWire struct {
	HasVideo    bool     `json:"hasVideo"`
	IsPlaying   *bool    `json:"isPlaying,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
	CurrentTime *float64 `json:"currentTime,omitempty"`
	Remaining   *float64 `json:"remainingTime,omitempty"`
	Volume      *float64 `json:"volume,omitempty"`
	Muted       *bool    `json:"muted,omitempty"`
	FileName    *string  `json:"fileName,omitempty"`
	SourceURL   *string  `json:"sourceUrl,omitempty"`
}

type statusWire struct {
	IsAvailable     bool          `json:"isAvailable"`
	Error           string        `json:"error,omitempty"`
	SlideCount      *int          `json:"slideCount,omitempty"`
	CurrentSlide    *int          `json:"currentSlide,omitempty"`
	IsInSlideShow   *bool         `json:"isInSlideShow,omitempty"`
	SlidesRemaining *int          `json:"slidesRemaining,omitempty"`
	Video           VideoSnapshot `json:"video"`
}

// MarshalJSON writes only hasVideo when no video was found.
func (v VideoSnapshot) MarshalJSON() ([]byte, error) {
	w := videoWire{HasVideo: v.HasVideo}
	if v.HasVideo {
		w.IsPlaying = &v.IsPlaying
		w.Duration = &v.Duration
		w.CurrentTime = &v.CurrentTime
		w.Remaining = &v.Remaining
		w.Volume = &v.Volume
		w.Muted = &v.Muted
		w.FileName = &v.FileName
		w.SourceURL = &v.SourceURL
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the wire form produced by MarshalJSON.
func (v *VideoSnapshot) UnmarshalJSON(data []byte) error {
	var w videoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = VideoSnapshot{HasVideo: w.HasVideo}
	if !w.HasVideo {
		return nil
	}
	if w.IsPlaying != nil {
		v.IsPlaying = *w.IsPlaying
	}
	if w.Duration != nil {
		v.Duration = *w.Duration
	}
	if w.CurrentTime != nil {
		v.CurrentTime = *w.CurrentTime
	}
	if w.Remaining != nil {
		v.Remaining = *w.Remaining
	}
	if w.Volume != nil {
		v.Volume = *w.Volume
	}
	if w.Muted != nil {
		v.Muted = *w.Muted
	}
	if w.FileName != nil {
		v.FileName = *w.FileName
	}
	if w.SourceURL != nil {
		v.SourceURL = *w.SourceURL
	}
	return nil
}

// MarshalJSON writes the error only for unavailable records and the slide
// fields only for available ones.
func (s PresentationStatus) MarshalJSON() ([]byte, error) {
	w := statusWire{IsAvailable: s.IsAvailable}
	if !s.IsAvailable {
		w.Error = s.Error
		return json.Marshal(w)
	}
	w.SlideCount = &s.SlideCount
	w.CurrentSlide = &s.CurrentSlide
	w.IsInSlideShow = &s.IsInSlideShow
	w.SlidesRemaining = &s.SlidesRemaining
	w.Video = s.Video
	return json.Marshal(w)
}

// UnmarshalJSON reads the wire form produced by MarshalJSON.
func (s *PresentationStatus) UnmarshalJSON(data []byte) error {
	var w statusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = PresentationStatus{IsAvailable: w.IsAvailable}
	if !w.IsAvailable {
		s.Error = w.Error
		return nil
	}
	if w.SlideCount != nil {
		s.SlideCount = *w.SlideCount
	}
	if w.CurrentSlide != nil {
		s.CurrentSlide = *w.CurrentSlide
	}
	if w.IsInSlideShow != nil {
		s.IsInSlideShow = *w.IsInSlideShow
	}
	if w.SlidesRemaining != nil {
		s.SlidesRemaining = *w.SlidesRemaining
	}
	s.Video = w.Video
	return nil
}
