package agent

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DetectLanguage guesses the language of a task. Short or ambiguous text yields language.Und.
func DetectLanguage(text string) language.Tag {
	text = strings.TrimSpace(text)
	if text == "" {
		return language.Und
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || info.Confidence < 0.1 {
		return language.Und
	}
	return language.All.Make(code)
}

// LanguageName returns the English display name of a tag, or "" for language.Und
func LanguageName(tag language.Tag) string {
	if tag == language.Und {
		return ""
	}
	return display.English.Tags().Name(tag)
}
