package sql

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteral(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, "NULL"},
		{"string", "Italy", "'Italy'"},
		{"quote", "O'Brien", "'O''Brien'"},
		{"true", true, "1"},
		{"false", false, "0"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"uint8", uint8(255), "255"},
		{"float", 1.5, "1.5"},
		{"whole_float", float64(3), "3.0"},
		{"time", time.UnixMilli(1700000000123), "1700000000123"},
		{"bytes", []byte{0xca, 0xfe}, "X'CAFE'"},
		{"stringer", uuid.MustParse("00000000-0000-0000-0000-000000000001"), "'00000000-0000-0000-0000-000000000001'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Literal(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiteralErrors(t *testing.T) {
	t.Parallel()
	_, err := Literal(math.NaN())
	assert.Error(t, err)
	_, err = Literal(struct{}{})
	assert.EqualError(t, err, "dialect/sql: unsupported literal type struct {}")
}
