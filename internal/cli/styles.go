// Package cli holds the terminal styling shared by the commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cwbudde/algo-notemap/notemap"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#D7005F")
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	KeyStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	ValueStyle = lipgloss.NewStyle().Bold(true).Foreground(textColor)

	// One color per lane, bass first.
	LaneStyles = [notemap.NumLanes]lipgloss.Style{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F00")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00AF5F")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5F87FF")),
	}
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("notemap"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintKV prints one aligned key/value line to w.
func PrintKV(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s %s\n", KeyStyle.Render(fmt.Sprintf("%-14s", key+":")), ValueStyle.Render(fmt.Sprint(value)))
}

// LaneChart renders notes as a compact colored strip, one glyph per note.
func LaneChart(notes []notemap.NoteEvent) string {
	var b strings.Builder
	for _, n := range notes {
		if n.Lane < 0 || int(n.Lane) >= notemap.NumLanes {
			continue
		}
		b.WriteString(LaneStyles[n.Lane].Render(strings.ToUpper(n.Lane.String()[:1])))
	}
	return b.String()
}

// PrintSummary prints the headline numbers of one mapping run.
func PrintSummary(w io.Writer, title string, res *notemap.Result, mode notemap.Mode) {
	fmt.Fprintln(w, TitleStyle.Render(title))
	PrintKV(w, "Mode", mode)
	PrintKV(w, "Frames", res.Frames)
	PrintKV(w, "Notes", len(res.Notes))
	PrintKV(w, "Base", fmt.Sprintf("%.2f / %.2f / %.2f", res.Base[0], res.Base[1], res.Base[2]))
	var counts [notemap.NumLanes]int
	for _, n := range res.Notes {
		counts[n.Lane]++
	}
	for l := range notemap.NumLanes {
		PrintKV(w, notemap.Lane(l).String(), LaneStyles[l].Render(fmt.Sprint(counts[l])))
	}
	if len(res.Notes) > 0 {
		fmt.Fprintln(w, LaneChart(res.Notes))
	}
}
