// Package langdetect tags extracted text with its ISO 639-1 language.
package langdetect

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// sampleRunes bounds how much text is inspected.
const sampleRunes = 2000

// Languages is the candidate set. Restricting it keeps lingua's model
// memory small.
var Languages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Russian,
	lingua.Ukrainian,
	lingua.Polish,
	lingua.Turkish,
	lingua.Arabic,
	lingua.Hindi,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
}

// Detector wraps a lingua detector. It is safe for concurrent use.
type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a Detector over Languages.
func New() *Detector {
	d := lingua.NewLanguageDetectorBuilder().
		FromLanguages(Languages...).
		WithMinimumRelativeDistance(0.1).
		Build()
	return &Detector{detector: d}
}

// Detect returns the lower-case ISO 639-1 code of text's language, or ""
// when lingua is not confident.
func (d *Detector) Detect(text string) string {
	if d == nil || d.detector == nil {
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if r := []rune(text); len(r) > sampleRunes {
		text = string(r[:sampleRunes])
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
