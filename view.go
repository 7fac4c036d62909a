package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gopresenting/status"
)

// idleMessages are the errors that mean "nothing to show yet" rather than
// a failure.
var idleMessages = map[string]bool{
	status.MsgNotOpen:        true,
	status.MsgNoPresentation: true,
	status.MsgNoActive:       true,
}

func (m model) View() string {
	cfg := config.Get()

	color := lipgloss.Color(m.color)
	highlight := lipgloss.NewStyle().Foreground(color)
	white := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2)

	labelStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var textContent strings.Builder
	var progressBarContent string

	addLine := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&textContent, "%s %s\n", labelStyle.Render(label), value)
		}
	}

	switch {
	case !m.hasStatus:
		textContent.WriteString(highlight.Render("󰐩 Presentation") + "\n\n")
		textContent.WriteString(mutedStyle.Render("Connecting…"))

	case !m.st.IsAvailable && idleMessages[m.st.Error]:
		textContent.WriteString(highlight.Render("󰐩 Presentation") + "\n\n")
		textContent.WriteString(mutedStyle.Render(capitalize(m.st.Error)) + "\n\n")
		textContent.WriteString(dimStyle.Render("Open a deck in PowerPoint to begin"))

	case !m.st.IsAvailable:
		textContent.WriteString(errorStyle.Render("Error: " + m.st.Error))

	default:
		st := m.st
		textContent.WriteString(highlight.Render("󰐩 Presentation") + "\n\n")

		mode := "Editing"
		if st.IsInSlideShow {
			mode = "Slideshow"
		}
		addLine("󰋩 ", slideInfo(st.CurrentSlide, st.SlideCount))
		addLine("󰇄 ", mode)
		addLine("󰜺 ", fmt.Sprintf("%d remaining", st.SlidesRemaining))

		v := st.Video
		if v.HasVideo {
			textContent.WriteString("\n")
			addLine("󰕧 ", scrollText(v.FileName, cfg.Text.MaxLength, m.scrollOffset))

			playIcon, playLabel := "󰏤 ", "Paused"
			if v.IsPlaying {
				playIcon, playLabel = "󰐊 ", "Playing"
			}
			addLine(playIcon, playLabel)

			volume := fmt.Sprintf("%d%%", int(math.Round(v.Volume*100)))
			if v.Muted {
				addLine("󰝟 ", volume+" (muted)")
			} else {
				addLine("󰕾 ", volume)
			}

			if v.Duration > 0 {
				pos := m.currentVideoPosition()
				progress := pos / v.Duration
				barWidth := cfg.UI.MaxWidth - 27
				if barWidth < 5 {
					barWidth = 5
				}
				filled := int(float64(barWidth) * progress)
				if filled > barWidth {
					filled = barWidth
				}
				progressBar := highlight.Render(strings.Repeat("█", filled)) +
					white.Render(strings.Repeat("─", barWidth-filled))

				progressBarContent = fmt.Sprintf(
					"\n%s %s/%s %s",
					progressBar,
					highlight.Render(formatTime(int64(pos))),
					highlight.Render(formatTime(int64(v.Duration))),
					dimStyle.Render("-"+formatClock(v.Duration-pos)),
				)
			}
		}
	}

	// Combine the slide preview and text content
	var topSection string
	if m.previewEncoded != "" && m.supportsKitty && m.showPreview {
		paddedText := lipgloss.NewStyle().
			PaddingLeft(cfg.Thumbnail.Padding).
			Render(textContent.String())
		topSection = m.previewEncoded + paddedText
	} else if m.supportsKitty {
		topSection = kittyDeleteAll + textContent.String()
	} else {
		topSection = textContent.String()
	}

	mainContent := topSection + progressBarContent

	contentStr := borderStyle.
		Width(cfg.UI.MaxWidth).
		Render(mainContent)

	var helpText string
	if m.showHelp {
		helpText = lipgloss.NewStyle().
			Width(cfg.UI.MaxWidth).
			Align(lipgloss.Center).
			Render(lipgloss.JoinHorizontal(
				lipgloss.Center,
				"Toggle Preview: "+highlight.Render("t"),
				"  Quit: "+highlight.Render("q"),
				"  Hide: "+highlight.Render("?"),
			))
	} else {
		helpText = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("Press ? for help")
	}

	fullUI := lipgloss.JoinVertical(lipgloss.Center, contentStr, "\n"+helpText)

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		fullUI,
	)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
