package review

import (
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"
)

// jamoParts splits compound Hangul vowels and final consonant clusters, so a
// one-key typo inside a syllable changes a single unit instead of the whole syllable.
var jamoParts = map[rune][]rune{
	'ᅪ': {'ᅩ', 'ᅡ'}, // ㅘ
	'ᅫ': {'ᅩ', 'ᅢ'}, // ㅙ
	'ᅬ': {'ᅩ', 'ᅵ'}, // ㅚ
	'ᅯ': {'ᅮ', 'ᅥ'}, // ㅝ
	'ᅰ': {'ᅮ', 'ᅦ'}, // ㅞ
	'ᅱ': {'ᅮ', 'ᅵ'}, // ㅟ
	'ᅴ': {'ᅳ', 'ᅵ'}, // ㅢ
	'ᆪ': {'ᆨ', 'ᆺ'}, // ㄳ
	'ᆬ': {'ᆫ', 'ᆽ'}, // ㄵ
	'ᆭ': {'ᆫ', 'ᇂ'}, // ㄶ
	'ᆰ': {'ᆯ', 'ᆨ'}, // ㄺ
	'ᆱ': {'ᆯ', 'ᆷ'}, // ㄻ
	'ᆲ': {'ᆯ', 'ᆸ'}, // ㄼ
	'ᆳ': {'ᆯ', 'ᆺ'}, // ㄽ
	'ᆴ': {'ᆯ', 'ᇀ'}, // ㄾ
	'ᆵ': {'ᆯ', 'ᇁ'}, // ㄿ
	'ᆶ': {'ᆯ', 'ᇂ'}, // ㅀ
	'ᆹ': {'ᆸ', 'ᆺ'}, // ㅄ
}

// Similarity returns the longest-matching-blocks ratio 2*M/T of a and b, in [0, 1].
// Both strings are compared as sequences of decomposed characters.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(units(a), units(b)).Ratio()
}

func units(s string) []string {
	var out []string
	for _, r := range norm.NFD.String(s) {
		if parts, ok := jamoParts[r]; ok {
			for _, p := range parts {
				out = append(out, string(p))
			}
			continue
		}
		out = append(out, string(r))
	}
	return out
}
