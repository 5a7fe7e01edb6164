package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundUpPayment(t *testing.T) {
	tests := []struct {
		name  string
		paisa int64
		want  int64
	}{
		{"zero", 0, 0},
		{"negative", -500, 0},
		{"below hundred rounds to rupee", 99_99, 100_00},
		{"small amount rounds to rupee", 45_30, 46_00},
		{"whole rupee stays", 45_00, 45_00},
		{"exactly hundred stays", 100_00, 100_00},
		{"mid band rounds to five", 101_00, 105_00},
		{"mid band already clean", 450_00, 450_00},
		{"band edge stays", 500_00, 500_00},
		{"high band rounds to ten", 501_00, 510_00},
		{"high band already clean", 1500_00, 1500_00},
		{"high band odd paisa", 999_01, 1000_00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundUpPayment(tt.paisa))
		})
	}
}

func TestRupeesToPaisa(t *testing.T) {
	assert.Equal(t, int64(0), RupeesToPaisa(0))
	assert.Equal(t, int64(100), RupeesToPaisa(1))
	assert.Equal(t, int64(125050), RupeesToPaisa(1250.50))
	assert.Equal(t, int64(10), RupeesToPaisa(0.1))
	assert.Equal(t, int64(-250), RupeesToPaisa(-2.5))
}

func TestPaisaToRupees(t *testing.T) {
	assert.InDelta(t, 12.5, PaisaToRupees(1250), 0.0001)
	assert.InDelta(t, 0.0, PaisaToRupees(0), 0.0001)
}
