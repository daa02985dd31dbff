package session

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"golang.org/x/text/language"
)

const (
	quotedTitleRunes   = 20
	inferredTitleRunes = 15
)

var (
	nonWord        = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_]`)
	titleBrackets  = strings.NewReplacer("『", "", "』", "", "「", "", "」", "")
	sentenceMarks  = strings.NewReplacer("。", "", "、", "", "（", "", "）", "")
	unsafeFileRune = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
)

// ExtractTitle guesses a story's title. A first line wrapped in 「」 or 『』 is the
// title; otherwise the first plain line is condensed to its first two words.
// untitled is returned when nothing usable is found.
func ExtractTitle(story, untitled string) string {
	lines := strings.Split(story, "\n")

	first := strings.TrimSpace(lines[0])
	if strings.HasPrefix(first, "『") || strings.HasPrefix(first, "「") {
		if strings.HasSuffix(first, "』") || strings.HasSuffix(first, "」") {
			if title := truncateRunes(titleBrackets.Replace(first), quotedTitleRunes); title != "" {
				return title
			}
			return untitled
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "「") || strings.HasPrefix(line, "『") {
			continue
		}
		var title string
		if words := strings.Fields(sentenceMarks.Replace(line)); len(words) >= 2 {
			title = words[0] + words[1]
		} else {
			title = truncateRunes(line, inferredTitleRunes)
		}
		title = truncateRunes(nonWord.ReplaceAllString(title, ""), inferredTitleRunes)
		if title == "" {
			return untitled
		}
		return title
	}
	return untitled
}

// DownloadFilename names a story-group download after the top story's title.
// stories must already be ordered highest rated first.
func DownloadFilename(stories []StoryRecord, lang language.Tag, now time.Time) string {
	top := i18n.Text(lang, "export.no_stories")
	if len(stories) > 0 {
		top = ExtractTitle(stories[0].Story, i18n.Text(lang, "export.untitled"))
	}
	return i18n.Text(lang, "export.filename",
		now.Format("20060102_1504"), unsafeFileRune.Replace(top), strconv.Itoa(len(stories)))
}

// PromptFilename names a prompt-only download.
func PromptFilename(lang language.Tag, now time.Time) string {
	return i18n.Text(lang, "export.prompt_filename", now.Format("20060102_150405"))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
