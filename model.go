package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gopresenting/status"
)

// model is the Bubble Tea model for the terminal monitor
type model struct {
	source      status.Source
	thumbnailer status.Thumbnailer

	st        status.PresentationStatus
	fetchedAt time.Time // When st was read, for position interpolation
	hasStatus bool

	color  string
	width  int
	height int

	// Slide preview support. showPreview is the monitor's own switch;
	// previewCfg is the last thumbnail.enabled seen so a reload only
	// overrides it when the file actually changed the setting.
	supportsKitty  bool
	showPreview    bool
	previewCfg     bool
	previewEncoded string // Kitty protocol-encoded slide image
	previewKey     string // Slide the preview belongs to
	previewPending string // Slide a preview is being fetched for

	// File name scrolling state
	scrollOffset int
	scrollPause  int
	scrollTick   int
	scrollName   string

	showHelp bool
}

// UI refresh tick - redraws and advances the scroll animation
type tickMsg time.Time

// Data fetch tick - queries the source again
type fetchMsg time.Time

// Result of querying the source
type statusMsg struct {
	st status.PresentationStatus
	at time.Time
}

// Result of exporting and encoding the current slide
type previewMsg struct {
	key     string
	encoded string
	color   string
	err     error
}

// newModel builds the monitor. allowPreview false keeps the preview off
// until toggled with t, whatever the config says.
func newModel(source status.Source, color string, kitty, allowPreview bool) model {
	enabled := config.Get().Thumbnail.Enabled
	m := model{
		source:        source,
		color:         color,
		supportsKitty: kitty,
		showPreview:   allowPreview && enabled,
		previewCfg:    enabled,
	}
	if th, ok := source.(status.Thumbnailer); ok {
		m.thumbnailer = th
	}
	return m
}

// Schedule next UI refresh tick
func tickCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.UIRefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Schedule next data fetch
func fetchCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.PollMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return fetchMsg(t)
	})
}

// fetchStatus queries the source in the background
func (m model) fetchStatus() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return statusMsg{st: source.GetPresentationStatus(), at: time.Now()}
	}
}

// slideKey identifies what the preview shows. Editing the slide without
// moving does not refresh it.
func slideKey(st status.PresentationStatus) string {
	if !st.IsAvailable {
		return ""
	}
	return fmt.Sprintf("%d/%d", st.CurrentSlide, st.SlideCount)
}

func (m model) previewWanted() bool {
	return m.supportsKitty && m.thumbnailer != nil && m.showPreview
}

// fetchPreview exports the current slide and encodes it for the terminal
func (m model) fetchPreview(key string) tea.Cmd {
	th := m.thumbnailer
	cfg := config.Get()
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = previewMsg{key: key, err: fmt.Errorf("slide preview: %v", r)}
			}
		}()

		data, err := th.SlideThumbnail(status.ThumbnailOptions{
			Format: cfg.Thumbnail.Format,
			Width:  cfg.Thumbnail.WidthPixels,
		})
		if err != nil {
			return previewMsg{key: key, err: err}
		}
		color, encoded, err := processSlideImage(data, cfg.UI.ColorMode == "auto",
			cfg.Thumbnail.WidthPixels, cfg.Thumbnail.WidthColumns)
		return previewMsg{key: key, encoded: encoded, color: color, err: err}
	}
}

// currentVideoPosition interpolates the playback position between fetches
func (m model) currentVideoPosition() float64 {
	v := m.st.Video
	if !v.HasVideo {
		return 0
	}
	if !v.IsPlaying || m.fetchedAt.IsZero() {
		return v.CurrentTime
	}

	pos := v.CurrentTime + time.Since(m.fetchedAt).Seconds()
	if v.Duration > 0 && pos > v.Duration {
		pos = v.Duration
	}
	return pos
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatus(),
		tickCmd(),
		fetchCmd(),
		watchConfigCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "t":
			m.showPreview = !m.showPreview
			if !m.showPreview {
				m.previewEncoded = ""
				m.previewKey = ""
				return m, nil
			}
			cmd := m.requestPreview()
			return m, cmd
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case configReloadMsg:
		cfg := config.Get()
		if cfg.UI.ColorMode == "manual" {
			m.color = cfg.UI.Color
		}
		if cfg.Thumbnail.Enabled != m.previewCfg {
			m.previewCfg = cfg.Thumbnail.Enabled
			m.showPreview = cfg.Thumbnail.Enabled
		}
		if !m.showPreview {
			m.previewEncoded = ""
			m.previewKey = ""
			return m, watchConfigCmd()
		}
		// Size or format may have changed
		m.previewKey = ""
		cmd := m.requestPreview()
		return m, tea.Batch(watchConfigCmd(), cmd)

	case tickMsg:
		m.scrollTick++
		m.advanceScroll()
		return m, tickCmd()

	case fetchMsg:
		return m, tea.Batch(fetchCmd(), m.fetchStatus())

	case statusMsg:
		m.st = msg.st
		m.fetchedAt = msg.at
		m.hasStatus = true

		if name := msg.st.Video.FileName; name != m.scrollName {
			m.scrollName = name
			m.scrollOffset = 0
			m.scrollPause = 30
			m.scrollTick = 0
		}

		if !msg.st.IsAvailable {
			m.previewEncoded = ""
			m.previewKey = ""
			return m, nil
		}
		cmd := m.requestPreview()
		return m, cmd

	case previewMsg:
		if msg.key == m.previewPending {
			m.previewPending = ""
		}
		if msg.key != slideKey(m.st) || msg.err != nil {
			return m, nil
		}
		m.previewEncoded = msg.encoded
		m.previewKey = msg.key
		if config.Get().UI.ColorMode == "auto" && msg.color != "" {
			m.color = msg.color
		}
		return m, nil
	}

	return m, nil
}

// requestPreview starts a preview fetch when the slide changed and none is
// in flight for it.
func (m *model) requestPreview() tea.Cmd {
	key := slideKey(m.st)
	if key == "" || !m.previewWanted() || key == m.previewKey || key == m.previewPending {
		return nil
	}
	m.previewPending = key
	return m.fetchPreview(key)
}

// advanceScroll moves the file name window every third tick and pauses
// for 30 ticks after each full loop.
func (m *model) advanceScroll() {
	if m.scrollPause > 0 {
		m.scrollPause--
		return
	}
	if m.scrollTick%3 != 0 {
		return
	}

	maxLen := config.Get().Text.MaxLength
	nameLen := len([]rune(m.st.Video.FileName))
	if nameLen <= maxLen {
		m.scrollOffset = 0
		return
	}

	m.scrollOffset++
	if m.scrollOffset >= nameLen+len([]rune(scrollSeparator)) {
		m.scrollOffset = 0
		m.scrollPause = 30
	}
}
