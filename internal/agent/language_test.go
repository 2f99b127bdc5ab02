package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, language.Und, DetectLanguage("   "))

	en := DetectLanguage("Find the name of the street where the institute of the professor is located and report it back.")
	assert.Equal(t, "en", en.String())
	assert.Equal(t, "English", LanguageName(en))

	pl := DetectLanguage("Znajdź nazwę ulicy, przy której znajduje się instytut, w którym wykłada profesor, i podaj ją w odpowiedzi.")
	assert.Equal(t, "pl", pl.String())
	assert.Equal(t, "Polish", LanguageName(pl))

	assert.Equal(t, "", LanguageName(language.Und))
}
