package render

import "strings"

// Measurer returns the rendered width of s in pixels
type Measurer func(s string) float64

// Wrap breaks text into lines no wider than maxWidth using greedy line filling.
// A word that is wider than maxWidth on its own is kept whole on a separate line.
func Wrap(text string, maxWidth float64, measure Measurer) []string {
	var lines []string
	line := ""

	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if line != "" && measure(candidate) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}

	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
