package session

import (
	"testing"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/i18n"
	"github.com/stretchr/testify/assert"
)

func TestExtractTitle(t *testing.T) {
	cases := []struct {
		name  string
		story string
		want  string
	}{
		{"corner brackets", "「最後の鍵」\n\n本文", "最後の鍵"},
		{"double brackets", "『時計塔』\n本文", "時計塔"},
		{"quoted title truncated", "「" + "あいうえおかきくけこさしすせそたちつてとなにぬねの" + "」", "あいうえおかきくけこさしすせそたちつてと"},
		{"empty brackets", "「」\n本文", "無題"},
		{"two words", "The clockmaker's secret was simple.", "Theclockmakers"},
		{"single phrase", "男は静かに扉を開けた。それから長い時間が経った。", "男は静かに扉を開けたそれから"},
		{"skips dialogue lines", "「こんにちは」と彼は言った\n\n博士 は 笑った", "博士は"},
		{"blank story", "  \n  ", "無題"},
		{"symbols only", "!!! ???", "無題"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ExtractTitle(c.story, "無題"))
		})
	}
}

func TestDownloadFilename(t *testing.T) {
	now := time.Date(2025, 12, 24, 9, 5, 0, 0, time.UTC)
	stories := []StoryRecord{{Story: "「a/b」"}, {Story: "x"}}

	assert.Equal(t, "20251224_0905_a_b他_2作品.txt", DownloadFilename(stories, i18n.Japanese, now))
	assert.Equal(t, "20251224_0905_作品なし他_0作品.txt", DownloadFilename(nil, i18n.Japanese, now))
	assert.Equal(t, "20251224_0905_a_b_and_more_2_stories.txt", DownloadFilename(stories, i18n.English, now))
}

func TestPromptFilename(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "20250102_030405_ショートショートプロンプト.txt", PromptFilename(i18n.Japanese, now))
}
