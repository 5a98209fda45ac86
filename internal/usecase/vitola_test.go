package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSize(t *testing.T) {
	tests := []struct {
		brand, name, fallback string
		expected              string
	}{
		{"Cohiba", "Cohiba Robusto", "", "Robusto"},
		{"Montecristo", "Montecristo No. 2", "", "No. 2"},
		{"Arturo Fuente", "Arturo Fuente - Hemingway Short Story", "", "Hemingway Short Story"},
		{"Padron", "1964 Anniversary Double Corona", "", "Double Corona"},
		{"Oliva", "Serie V torpedo", "", "Torpedo"},
		{"Oliva", "Oliva", "Toro", "Toro"},
		{"", "Melanio", "Figurado", "Figurado"},
		{"", "Melanio", "", ""},
		{"Cohiba", "Cohibas Robusto", "", "Robusto"},
		{"Oliva", "Olivares Toro", "", "Toro"},
		{"Oliva", "Olivares Reserva", "Corona", "Corona"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSize(tt.brand, tt.name, tt.fallback))
		})
	}
}
