package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// msoMedia is the MsoShapeType tag of audio/video shapes.
const msoMedia = 16

// Querier answers status queries against the application reached through
// its Connector. It holds no state between calls.
type Querier struct {
	connector Connector
	logger    *log.Logger
}

// Option configures a Querier.
type Option func(*Querier)

// WithLogger sets the logger used for degraded reads.
func WithLogger(l *log.Logger) Option {
	return func(q *Querier) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQuerier returns a Querier using c. A nil c selects the platform backend.
func NewQuerier(c Connector, opts ...Option) *Querier {
	if c == nil {
		c = DefaultConnector()
	}
	q := &Querier{connector: c, logger: log.Default()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// GetPresentationStatus queries the platform's default backend once.
func GetPresentationStatus() PresentationStatus {
	return NewQuerier(nil).GetPresentationStatus()
}

// GetPresentationStatus attaches to the application and reads one snapshot.
// It never panics and never returns an error: failures are reported through
// IsAvailable/Error or as zero-valued fields.
func (q *Querier) GetPresentationStatus() (st PresentationStatus) {
	session, err := q.connect()
	if err != nil {
		q.logger.Debug("attach failed", "err", err)
		return Unavailable(MsgNotOpen)
	}
	defer session.Close()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Warn("interop failure", "panic", r)
			st = interopFailure(r)
		}
	}()

	return q.query(session.Application())
}

func (q *Querier) connect() (s Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("connect: %v", r)
		}
	}()
	s, err = q.connector.Connect()
	if err == nil && s == nil {
		err = ErrNotRunning
	}
	return s, err
}

func (q *Querier) query(app Object) PresentationStatus {
	if app == nil {
		return Unavailable(MsgNotOpen)
	}

	open, presentations, ok := readCount(app, "Presentations")
	if !ok || open == 0 {
		if presentations != nil {
			presentations.Release()
		}
		return Unavailable(MsgNoPresentation)
	}
	presentations.Release()

	pres, err := readObject(app, "ActivePresentation")
	if err != nil {
		q.logger.Debug("no active presentation", "err", err)
		return Unavailable(MsgNoActive)
	}
	defer pres.Release()

	slideCount, slides, err := countOf(pres, "Slides")
	if err != nil {
		q.logger.Debug("slide count unreadable", "err", err)
		return interopFailure(err)
	}
	slides.Release()

	st := PresentationStatus{
		IsAvailable:  true,
		SlideCount:   int(slideCount),
		CurrentSlide: 1,
	}

	slide, inShow, err := resolveCurrentSlide(app, pres)
	if err != nil {
		q.logger.Debug("slide resolution failed, using slide 1", "err", err)
	} else {
		defer slide.Release()
		st.IsInSlideShow = inShow
		if idx, ok := readInt(slide, "SlideIndex"); ok && idx >= 1 {
			st.CurrentSlide = int(idx)
		}
		st.Video = q.findVideoInfo(slide)
	}
	st.SlidesRemaining = st.SlideCount - st.CurrentSlide
	return st
}

// interopFailure reports an unexpected interop error by its text, or as
// MsgUnknown when it carries none.
func interopFailure(cause interface{}) PresentationStatus {
	var msg string
	switch c := cause.(type) {
	case nil:
	case error:
		msg = c.Error()
	case string:
		msg = c
	default:
		msg = fmt.Sprint(c)
	}
	if strings.TrimSpace(msg) == "" {
		return Unavailable(MsgUnknown)
	}
	return Unavailable(msg)
}

// resolveCurrentSlide prefers the running slideshow's slide and falls back
// to the first slide of the editing window's selection.
func resolveCurrentSlide(app, pres Object) (Object, bool, error) {
	if slide, err := slideShowSlide(app); err == nil {
		return slide, true, nil
	}
	slide, err := selectedSlide(pres)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrNoSlide, err)
	}
	return slide, false, nil
}

func slideShowSlide(app Object) (Object, error) {
	n, windows, ok := readCount(app, "SlideShowWindows")
	if !ok {
		return nil, fmt.Errorf("slideshow windows unreadable")
	}
	defer windows.Release()
	if n == 0 {
		return nil, fmt.Errorf("no slideshow running")
	}
	window, err := readObject(windows, "Item", 1)
	if err != nil {
		return nil, err
	}
	defer window.Release()
	view, err := readObject(window, "View")
	if err != nil {
		return nil, err
	}
	defer view.Release()
	return readObject(view, "Slide")
}

func selectedSlide(pres Object) (Object, error) {
	n, windows, ok := readCount(pres, "Windows")
	if !ok {
		return nil, fmt.Errorf("document windows unreadable")
	}
	defer windows.Release()
	if n == 0 {
		return nil, fmt.Errorf("no document window")
	}
	window, err := readObject(windows, "Item", 1)
	if err != nil {
		return nil, err
	}
	defer window.Release()
	selection, err := readObject(window, "Selection")
	if err != nil {
		return nil, err
	}
	defer selection.Release()
	count, rng, ok := readCount(selection, "SlideRange")
	if !ok {
		return nil, fmt.Errorf("selection has no slide range")
	}
	defer rng.Release()
	if count == 0 {
		return nil, fmt.Errorf("empty slide selection")
	}
	return readObject(rng, "Item", 1)
}

// FindVideoInfo scans the shapes of slide in z-order and reports the first
// media shape. Unreadable shapes are skipped.
func FindVideoInfo(slide Object) VideoSnapshot {
	return findVideoInfo(slide, log.Default())
}

func (q *Querier) findVideoInfo(slide Object) VideoSnapshot {
	return findVideoInfo(slide, q.logger)
}

func findVideoInfo(slide Object, logger *log.Logger) VideoSnapshot {
	if slide == nil {
		return VideoSnapshot{}
	}
	count, shapes, ok := readCount(slide, "Shapes")
	if !ok {
		return VideoSnapshot{}
	}
	defer shapes.Release()

	for i := int64(1); i <= count; i++ {
		if v, found := inspectShape(shapes, i, logger); found {
			return v.normalize()
		}
	}
	return VideoSnapshot{}
}

func inspectShape(shapes Object, i int64, logger *log.Logger) (v VideoSnapshot, found bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("skipping shape", "index", i, "panic", r)
			v, found = VideoSnapshot{}, false
		}
	}()

	shape, err := readObject(shapes, "Item", i)
	if err != nil {
		logger.Debug("skipping shape", "index", i, "err", err)
		return VideoSnapshot{}, false
	}
	defer shape.Release()

	kind, ok := readInt(shape, "Type")
	if !ok || kind != msoMedia {
		return VideoSnapshot{}, false
	}

	v.HasVideo = true
	if mf, err := readObject(shape, "MediaFormat"); err == nil {
		readMediaFormat(mf, &v)
		mf.Release()
	} else {
		logger.Debug("media format unreadable", "index", i, "err", err)
	}
	v.SourceURL = linkedSource(shape)
	return v, true
}

// readMediaFormat fills playback fields one by one; a field that cannot be
// read keeps its zero value.
func readMediaFormat(mf Object, v *VideoSnapshot) {
	if playing, ok := readBool(mf, "IsPlaying"); ok {
		v.IsPlaying = playing
	}
	if ms, ok := readFloat(mf, "Length"); ok {
		v.Duration = ms / 1000
	}
	if ms, ok := readFloat(mf, "CurrentPosition"); ok {
		v.CurrentTime = ms / 1000
	}
	if raw, err := readValue(mf, "Volume"); err == nil {
		if f, err := asFloat(raw); err == nil {
			v.Volume = volumeFraction(f, isFloat(raw))
		}
	}
	if muted, ok := readBool(mf, "Muted"); ok {
		v.Muted = muted
	}
	if name, ok := readString(mf, "Name"); ok {
		v.FileName = name
	}
}

// volumeFraction converts the host's 0-100 volume into [0, 1]. Hosts that
// already report a Single fraction are passed through.
func volumeFraction(raw float64, fractional bool) float64 {
	if fractional && raw <= 1 {
		return clampUnit(raw)
	}
	return clampUnit(raw / 100)
}

func linkedSource(shape Object) (src string) {
	defer func() {
		if recover() != nil {
			src = ""
		}
	}()
	link, err := readObject(shape, "LinkFormat")
	if err != nil {
		return ""
	}
	defer link.Release()
	src, _ = readString(link, "SourceFullName")
	return src
}
