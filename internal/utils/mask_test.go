package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"01712345678", "017******78"},
		{"01898765432", "018******32"},
		{" 01712345678 ", "017******78"},
		{"12345", "*****"},
		{"12", "**"},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MaskPhone(tc.in), "input %q", tc.in)
	}
}
