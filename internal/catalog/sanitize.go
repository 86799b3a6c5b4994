package catalog

import "regexp"

type substitution struct {
	phrase      string
	re          *regexp.Regexp
	replacement string
}

// forbidden lists absolute-certainty phrases and their hedged replacements,
// applied in order.
var forbidden = compile([][2]string{
	{"garantido", "recomendado"},
	{"com certeza", "provavelmente"},
	{"absolutamente", "muito provavelmente"},
	{"sempre", "normalmente"},
	{"nunca", "raramente"},
	{"definitivamente", "muito possivelmente"},
	{"prometo", "posso afirmar que"},
	{"asseguro", "posso informar que"},
	{"comprometo", "me esforçarei para"},
	{"guaranteed", "recommended"},
	{"i guarantee", "I can recommend"},
	{"i promise", "I can state that"},
	{"absolutely", "very likely"},
	{"definitely", "very possibly"},
	{"always", "usually"},
	{"never", "rarely"},
})

func compile(pairs [][2]string) []substitution {
	subs := make([]substitution, len(pairs))
	for i, p := range pairs {
		subs[i] = substitution{
			phrase:      p[0],
			re:          regexp.MustCompile("(?i)" + regexp.QuoteMeta(p[0])),
			replacement: p[1],
		}
	}
	return subs
}

// ForbiddenPhrases returns the phrases Sanitize removes.
func ForbiddenPhrases() []string {
	out := make([]string, len(forbidden))
	for i, s := range forbidden {
		out[i] = s.phrase
	}
	return out
}

// Sanitize replaces every forbidden phrase in text, case-insensitively.
// Passes repeat until the text is stable.
func Sanitize(text string) string {
	for pass := 0; pass <= len(forbidden); pass++ {
		before := text
		for _, s := range forbidden {
			text = s.re.ReplaceAllLiteralString(text, s.replacement)
		}
		if text == before {
			break
		}
	}
	return text
}
