package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Yates-Labs/storyprompt/internal/catalogue"
	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
)

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink
	groupColor   = lipgloss.Color("#8BE9FD") // Cyan
	textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	errorColor   = lipgloss.Color("#FF5555") // Red
	successColor = lipgloss.Color("#50FA7B") // Green
	numberColor  = lipgloss.Color("#FF79C6") // Pink

	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	groupStyle   = lipgloss.NewStyle().Foreground(groupColor)
	textStyle    = lipgloss.NewStyle().Foreground(textColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	numberStyle  = lipgloss.NewStyle().Foreground(numberColor)
	borderStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

func renderHeading(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(title))
}

func renderElements(w io.Writer, views []session.ElementView, lang language.Tag) {
	renderHeading(w, i18n.Text(lang, "cli.elements_heading"))
	for i, v := range views {
		group := v.Group
		if v.Edited {
			group = i18n.Text(lang, "session.edited_group")
		}
		fmt.Fprintf(w, "%s %s %s\n",
			numberStyle.Render(strconv.Itoa(i+1)+"."),
			groupStyle.Render(group),
			textStyle.Render(v.Text))
	}
}

func renderPartial(w io.Writer, got, want int, lang language.Tag) {
	if got >= want {
		return
	}
	fmt.Fprintln(w, mutedStyle.Render(i18n.Text(lang, "cli.partial_sample", strconv.Itoa(got), strconv.Itoa(want))))
}

func renderPrompt(w io.Writer, text string, lang language.Tag) {
	renderHeading(w, i18n.Text(lang, "cli.prompt_heading"))
	// Unstyled: the printed prompt must match the assembled one byte for byte.
	fmt.Fprintln(w, text)
}

func renderStory(w io.Writer, r session.StoryRecord, lang language.Tag) {
	renderHeading(w, i18n.Text(lang, "cli.story_heading"))
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%s / %s  %s", r.Vendor, r.Model, session.RatingLabel(r.Rating, lang))))
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimSpace(r.Story))
	fmt.Fprintln(w)
}

func renderNames(w io.Writer, names []string, lang language.Tag) {
	renderHeading(w, i18n.Text(lang, "cli.names_heading"))
	fmt.Fprintln(w, textStyle.Render(strings.Join(names, i18n.Text(lang, "prompt.character_separator"))))
}

func renderSaved(w io.Writer, path string, lang language.Tag) {
	fmt.Fprintln(w, successStyle.Render("✓ "+i18n.Text(lang, "cli.saved", path)))
}

func renderCatalogue(w io.Writer, cat *catalogue.Catalogue, lang language.Tag) {
	const (
		itemWidth  = 32
		countWidth = 10
	)

	renderHeading(w, i18n.Text(lang, "cli.catalogue_heading"))
	fmt.Fprintln(w, successStyle.Render("✓ "+i18n.Text(lang, "cli.catalogue_loaded", strconv.Itoa(cat.TotalVariants()))))
	fmt.Fprintln(w, mutedStyle.Render(i18n.Text(lang, "cli.catalogue_source", cat.Source)))
	if cat.Fallback {
		fmt.Fprintln(w, errorStyle.Render(i18n.Text(lang, "cli.catalogue_fallback")))
	}
	fmt.Fprintln(w, mutedStyle.Render(i18n.Text(lang, "cli.catalogue_groups", strconv.Itoa(cat.Len()))))
	fmt.Fprintln(w)

	cell := lipgloss.NewStyle().Padding(0, 1)
	headers := []string{
		cell.Foreground(headerColor).Bold(true).Width(itemWidth).Render("ITEM"),
		cell.Foreground(headerColor).Bold(true).Width(countWidth).Render("VARIANTS"),
	}
	fmt.Fprintln(w, strings.Join(headers, borderStyle.Render("│")))
	fmt.Fprintln(w, borderStyle.Render(strings.Repeat("─", itemWidth)+"┼"+strings.Repeat("─", countWidth)))

	for _, g := range cat.Groups {
		cells := []string{
			cell.Foreground(groupColor).Width(itemWidth).Render(g.Name),
			cell.Foreground(numberColor).Width(countWidth).Align(lipgloss.Right).Render(strconv.Itoa(len(g.Variants))),
		}
		fmt.Fprintln(w, strings.Join(cells, borderStyle.Render("│")))
	}
}
