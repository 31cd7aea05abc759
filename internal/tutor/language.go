package tutor

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Language is an explanation language offered to learners.
type Language string

const (
	English   Language = "English"
	RomanUrdu Language = "Roman Urdu"
	Urdu      Language = "Urdu"
)

// Languages lists the supported languages, default first.
var Languages = []Language{English, RomanUrdu, Urdu}

var (
	tags    = []language.Tag{language.English, language.MustParse("ur-Latn"), language.Urdu}
	matcher = language.NewMatcher(tags)
)

// Tag returns the BCP 47 tag for l.
func (l Language) Tag() language.Tag {
	for i, lang := range Languages {
		if lang == l {
			return tags[i]
		}
	}
	return language.English
}

func (l Language) instruction(d Depth) string {
	switch l {
	case RomanUrdu:
		return "Write in Roman Urdu (Urdu in Latin script)."
	case Urdu:
		return "Write in Urdu script."
	}
	if d == DepthDeep {
		return "Write in formal academic English."
	}
	return "Write in simple English."
}

// ParseLanguage accepts a display name ("Roman Urdu") or a BCP 47 tag ("ur-Latn").
// An empty string selects English.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return English, nil
	}
	for _, l := range Languages {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	for i, t := range tags {
		if t == tag {
			return Languages[i], nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// MatchLanguage picks the best supported language for an Accept-Language
// header, falling back to English.
func MatchLanguage(acceptLanguage string) Language {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return English
	}
	_, i, conf := matcher.Match(prefs...)
	if conf == language.No {
		return English
	}
	return Languages[i]
}
