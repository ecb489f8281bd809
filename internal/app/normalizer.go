// internal/app/normalizer.go
package app

import (
	"regexp"
	"strings"
	"unicode"

	"release_notification_bot/internal/domain/release"

	"golang.org/x/text/width"
)

// bracketedAnnotation matches (...), [...], 【...】 and 〔...〕 once full-width
// parentheses and square brackets have been folded to ASCII.
var bracketedAnnotation = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]|【[^【】]*】|〔[^〔〕]*〕`)

var bracketStripper = strings.NewReplacer("(", " ", ")", " ", "[", " ", "]", " ", "【", " ", "】", " ", "〔", " ", "〕", " ")

// NormalizedQuery is the cleaned form of a tracked title/author pair.
type NormalizedQuery struct {
	QueryTitle  string
	QueryAuthor string // "" means no author filter
	CompareKey  string // Author with all whitespace removed
}

// Normalizer strips noise from tracked titles before they are searched for.
type Normalizer struct {
	publisherTokens []string
}

func NewNormalizer(rules release.Rules) *Normalizer {
	tokens := make([]string, 0, len(rules.PublisherTokens))
	for _, t := range rules.PublisherTokens {
		if t = foldWidth(strings.TrimSpace(t)); t != "" {
			tokens = append(tokens, t)
		}
	}
	return &Normalizer{publisherTokens: tokens}
}

// Normalize never fails. An empty author yields empty QueryAuthor and CompareKey.
func (n *Normalizer) Normalize(titleKey, author string) NormalizedQuery {
	title := foldWidth(titleKey)
	title = bracketedAnnotation.ReplaceAllString(title, " ")
	for _, token := range n.publisherTokens {
		title = strings.ReplaceAll(title, token, " ")
	}
	title = collapseSpaces(title)
	if title == "" {
		// Titles such as 【推しの子】 are nothing but an annotation; keep the words.
		title = collapseSpaces(bracketStripper.Replace(foldWidth(titleKey)))
	}

	queryAuthor := collapseSpaces(foldWidth(author))

	return NormalizedQuery{
		QueryTitle:  title,
		QueryAuthor: queryAuthor,
		CompareKey:  CompareKey(author),
	}
}

// CompareKey makes author matching whitespace-insensitive. unicode.IsSpace covers
// the ideographic space (U+3000) as well as ASCII whitespace.
func CompareKey(author string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, foldWidth(author))
}

// foldWidth maps full-width ASCII (digits, latin letters, brackets) to half-width
// and half-width katakana to full-width.
func foldWidth(s string) string {
	return width.Fold.String(s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
