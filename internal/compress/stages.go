package compress

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Normalizer collapses whitespace runs, trims, and canonicalizes newlines.
// It is declared reversible because it never alters semantic content;
// Decode is a pass-through since the removed whitespace carries no meaning
// worth restoring.
type Normalizer struct{}

func (Normalizer) Name() string       { return "normalizer" }
func (Normalizer) Reversible() bool   { return true }
func (Normalizer) Decode(s string) string { return s }

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

func (Normalizer) Encode(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// abbreviations is the fixed dictionary the Abbreviator substitutes on word
// boundaries. Entries are applied in list order; the word-boundary anchors
// keep an entry from matching inside a longer word ("with" never matches
// inside "without").
var abbreviations = []struct{ long, short string }{
	{"function", "fn"},
	{"variable", "var"},
	{"parameter", "param"},
	{"argument", "arg"},
	{"return", "ret"},
	{"implementation", "impl"},
	{"configuration", "cfg"},
	{"repository", "repo"},
	{"database", "db"},
	{"message", "msg"},
	{"request", "req"},
	{"response", "resp"},
	{"because", "b/c"},
	{"without", "w/o"},
	{"with", "w/"},
}

// Abbreviator is lossy but semantically preserving: decode is a best-effort
// restoration heuristic, not guaranteed to recover the exact original
// phrasing (e.g. "w/" could have originally been "with" or literal "w/").
type Abbreviator struct{}

func (Abbreviator) Name() string     { return "abbreviator" }
func (Abbreviator) Reversible() bool { return false }

func (Abbreviator) Encode(s string) string {
	out := s
	for _, pair := range abbreviations {
		out = replaceWord(out, pair.long, pair.short)
	}
	return out
}

func (Abbreviator) Decode(s string) string {
	out := s
	for _, pair := range abbreviations {
		out = replaceWord(out, pair.short, pair.long)
	}
	return out
}

func replaceWord(s, from, to string) string {
	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
	return pattern.ReplaceAllString(s, to)
}

// VowelStripper removes internal vowels from words of length >= minLen,
// keeping the leading character (and a leading vowel, if any). Lossy;
// Decode is identity since the stripped vowels cannot be recovered.
type VowelStripper struct {
	MinLen int
}

func NewVowelStripper() VowelStripper { return VowelStripper{MinLen: 4} }

func (VowelStripper) Name() string         { return "vowel_stripper" }
func (VowelStripper) Reversible() bool     { return false }
func (VowelStripper) Decode(s string) string { return s }

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func (v VowelStripper) Encode(s string) string {
	minLen := v.MinLen
	if minLen <= 0 {
		minLen = 4
	}
	var out strings.Builder
	var word strings.Builder

	flush := func() {
		out.WriteString(stripInternalVowels(word.String(), minLen))
		word.Reset()
	}

	for _, r := range s {
		if unicode.IsLetter(r) {
			word.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()
	return out.String()
}

func stripInternalVowels(word string, minLen int) string {
	runes := []rune(word)
	if len(runes) < minLen {
		return word
	}
	var out strings.Builder
	out.WriteRune(runes[0])
	idx := 1
	if idx < len(runes) && isVowel(runes[idx]) && !isVowel(runes[0]) {
		out.WriteRune(runes[idx])
		idx++
	}
	for ; idx < len(runes)-1; idx++ {
		if !isVowel(runes[idx]) {
			out.WriteRune(runes[idx])
		}
	}
	if len(runes) > 1 {
		out.WriteRune(runes[len(runes)-1])
	}
	return out.String()
}

// symbolAlphabet is the fixed glyph set SymbolCompressor draws from.
var symbolAlphabet = []rune{'↹', '•', '⊕', 'Σ', '⊂', '→', '≡', '∴', '∀', '∃'}

// symbolPhrases is the configured phrase list eligible for symbol
// substitution, paired with a glyph by position (wrapping if there are
// more phrases than glyphs).
var symbolPhrases = []string{
	"for example",
	"in other words",
	"as a result",
	"such that",
	"if and only if",
	"for all",
	"there exists",
	"therefore",
	"is equivalent to",
	"is a subset of",
}

// SymbolCompressor replaces configured phrases with symbolic glyphs.
// Lossy; Decode is identity.
type SymbolCompressor struct{}

func (SymbolCompressor) Name() string         { return "symbol_compressor" }
func (SymbolCompressor) Reversible() bool     { return false }
func (SymbolCompressor) Decode(s string) string { return s }

func (SymbolCompressor) Encode(s string) string {
	out := s
	for i, phrase := range symbolPhrases {
		glyph := string(symbolAlphabet[i%len(symbolAlphabet)])
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
		out = pattern.ReplaceAllString(out, glyph)
	}
	return out
}

// LogarithmicChunker splits text into fixed-size logical chunks (default 16
// tokens) and rewrites runs of three or more identical consecutive chunks
// as a run-length prefix "×N:<chunk>". Lossy; Decode is identity.
type LogarithmicChunker struct {
	ChunkSize int
}

func NewLogarithmicChunker() LogarithmicChunker { return LogarithmicChunker{ChunkSize: 16} }

func (LogarithmicChunker) Name() string           { return "logarithmic_chunker" }
func (LogarithmicChunker) Reversible() bool       { return false }
func (LogarithmicChunker) Decode(s string) string { return s }

func (c LogarithmicChunker) Encode(s string) string {
	size := c.ChunkSize
	if size <= 0 {
		size = 16
	}
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return s
	}

	var chunks []string
	for i := 0; i < len(tokens); i += size {
		end := i + size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[i:end], " "))
	}

	var out []string
	i := 0
	for i < len(chunks) {
		j := i + 1
		for j < len(chunks) && chunks[j] == chunks[i] {
			j++
		}
		run := j - i
		if run >= 3 {
			out = append(out, "×"+strconv.Itoa(run)+":"+chunks[i])
		} else {
			for k := i; k < j; k++ {
				out = append(out, chunks[k])
			}
		}
		i = j
	}
	return strings.Join(out, " ⏐ ")
}
