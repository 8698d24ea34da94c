package churn

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DefaultLanguage is reported whenever detection is inconclusive.
const DefaultLanguage = "en"

var supported = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// DetectLanguage returns the ISO 639-1 code of text. Short Arabic-script
// text the trigram identifier is unsure about reads as "ar"; anything else
// it is unsure about reads as "en".
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return DefaultLanguage
	}
	info := whatlanggo.Detect(text)
	if info.IsReliable() {
		if code := info.Lang.Iso6391(); code != "" {
			return code
		}
	}
	if info.Script == unicode.Arabic {
		return "ar"
	}
	return DefaultLanguage
}

// messageTag picks the message catalog for a detected code. Everything that
// is not Arabic reads English.
func messageTag(code string) language.Tag {
	tag, err := language.Parse(code)
	if err != nil {
		return language.English
	}
	_, idx, conf := supported.Match(tag)
	if conf == language.No || idx != 1 {
		return language.English
	}
	return language.Arabic
}
