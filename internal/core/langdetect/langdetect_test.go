package langdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	d := New()

	tests := []struct {
		text string
		want string
	}{
		{"The quick brown fox jumps over the lazy dog while the farmer watches from the porch.", "en"},
		{"El rápido zorro marrón salta sobre el perro perezoso mientras el granjero mira desde el porche.", "es"},
		{"Der schnelle braune Fuchs springt über den faulen Hund, während der Bauer von der Veranda zusieht.", "de"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.Detect(tt.text), tt.text)
	}
}

func TestNilDetector(t *testing.T) {
	var d *Detector
	assert.Empty(t, d.Detect("anything at all"))
}
