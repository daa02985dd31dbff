package prompt

import "github.com/Yates-Labs/storyprompt/internal/sampler"

// firstKana excludes contracted sounds, ン and ー, which cannot open a name.
var firstKana = []string{
	"ア", "イ", "ウ", "エ", "オ",
	"カ", "キ", "ク", "ケ", "コ", "ガ", "ギ", "グ", "ゲ", "ゴ",
	"サ", "シ", "ス", "セ", "ソ", "ザ", "ジ", "ズ", "ゼ", "ゾ",
	"タ", "チ", "ツ", "テ", "ト", "ダ", "ヂ", "ヅ", "デ", "ド",
	"ナ", "ニ", "ヌ", "ネ", "ノ",
	"ハ", "ヒ", "フ", "ヘ", "ホ", "バ", "ビ", "ブ", "ベ", "ボ", "パ", "ピ", "プ", "ペ", "ポ",
	"マ", "ミ", "ム", "メ", "モ",
	"ヤ", "ユ", "ヨ",
	"ラ", "リ", "ル", "レ", "ロ",
	"ワ", "ヲ",
}

var secondKana = append(append([]string(nil), firstKana...), "ャ", "ュ", "ョ", "ン", "ー")

// NameGenerator produces two-katakana character names.
type NameGenerator struct {
	rng sampler.Source
}

// NewNameGenerator creates a generator drawing from rng.
func NewNameGenerator(rng sampler.Source) *NameGenerator {
	return &NameGenerator{rng: rng}
}

// Name returns one name.
func (g *NameGenerator) Name() string {
	return firstKana[g.rng.IntN(len(firstKana))] + secondKana[g.rng.IntN(len(secondKana))]
}

// Names returns n names. Duplicates are possible.
func (g *NameGenerator) Names(n int) []string {
	if n <= 0 {
		return []string{}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = g.Name()
	}
	return names
}
