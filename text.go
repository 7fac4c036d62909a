package main

import (
	"fmt"
	"math"
)

// formatTime converts seconds to MM:SS format
func formatTime(seconds int64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// clockParts splits a duration in seconds into whole hours, minutes and
// seconds. Negative and NaN inputs count as zero.
func clockParts(seconds float64) (h, m, s int) {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0, 0, 0
	}
	total := int(math.Floor(seconds))
	return total / 3600, (total % 3600) / 60, total % 60
}

// formatClock renders seconds as HH:MM:SS, the countdown format Companion
// buttons expect.
func formatClock(seconds float64) string {
	h, m, s := clockParts(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// slideInfo is the human-readable position shown in the monitor and sent
// over OSC.
func slideInfo(current, count int) string {
	return fmt.Sprintf("Slide %d / %d", current, count)
}

// scrollText returns a scrolling window of text with smooth looping
func scrollText(text string, max int, offset int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	fullText := append(runes, []rune(scrollSeparator)...)
	textLen := len(fullText)

	offset = offset % textLen
	if offset < 0 {
		offset += textLen
	}

	var result []rune
	for i := 0; i < max; i++ {
		result = append(result, fullText[(offset+i)%textLen])
	}
	return string(result)
}

const scrollSeparator = "  •  "
