package matcher

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	seasonWordRe  = regexp.MustCompile(`\b(?:season|se)\b`)
	episodeWordRe = regexp.MustCompile(`\b(?:episode|ep)\b`)
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9]+`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

// foldTransform strips combining marks so accented characters compare
// equal to their ASCII base form
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases a title, folds diacritics, rewrites season/episode
// words to their single-letter forms and strips everything that is not a
// letter or digit. Two spellings of the same title normalize to the same
// string, which is what scoring and slugs are built on.
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		folded = s
	}

	t := strings.ToLower(folded)
	t = seasonWordRe.ReplaceAllString(t, "s")
	t = episodeWordRe.ReplaceAllString(t, "e")
	t = nonAlnumRe.ReplaceAllString(t, " ")
	t = spacesRe.ReplaceAllString(t, " ")

	return strings.TrimSpace(t)
}

// Slugify builds the stable show identifier from a display name and an
// optional year: normalized words joined by underscores
func Slugify(name string, year int) string {
	n := Normalize(name)
	if year > 0 {
		n = n + " " + strconv.Itoa(year)
	}
	return strings.ReplaceAll(n, " ", "_")
}

// langWords maps language names and their common release-title
// abbreviations to ISO 639-1 codes
var langWords = map[string]string{
	"tamil":     "ta",
	"tam":       "ta",
	"telugu":    "te",
	"tel":       "te",
	"hindi":     "hi",
	"hin":       "hi",
	"english":   "en",
	"eng":       "en",
	"malayalam": "ml",
	"mal":       "ml",
	"kannada":   "kn",
	"kan":       "kn",
	"korean":    "ko",
	"kor":       "ko",
	"japanese":  "ja",
	"jap":       "ja",
	"chinese":   "zh",
	"chi":       "zh",
}

var langTokenRe = regexp.MustCompile(`[a-zA-Z]+`)

// DetectLanguages scans a raw title for language words and returns the
// matching ISO codes, deduplicated, in order of first appearance
func DetectLanguages(raw string) []string {
	var codes []string
	seen := make(map[string]bool)

	for _, token := range langTokenRe.FindAllString(raw, -1) {
		code, ok := langWords[strings.ToLower(token)]
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}

	return codes
}
