package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVector(t *testing.T) {
	tests := []struct {
		in   string
		want []float32
	}{
		{"", nil},
		{"  ", nil},
		{"1,2,3", []float32{1, 2, 3}},
		{"[0.5, -1 ,2e-1]", []float32{0.5, -1, 0.2}},
	}
	for _, tt := range tests {
		got, err := parseVector(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseVector("1,x")
	assert.Error(t, err)
}
