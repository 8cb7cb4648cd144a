package phi

import (
	"strings"
	"testing"
)

func TestMask(t *testing.T) {
	values := []string{"Ruth Alvarez", "MRN-10003", "a", "John Smith Jr."}

	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			masked := Mask(true, v)
			if masked != Token {
				t.Errorf("Mask(true, %q) = %q, want %q", v, masked, Token)
			}
			if strings.Contains(masked, v) {
				t.Errorf("masked output leaks original value %q", v)
			}

			if got := Mask(false, v); got != v {
				t.Errorf("Mask(false, %q) = %q, want unchanged", v, got)
			}
		})
	}
}

func TestMaskEmpty(t *testing.T) {
	if got := Mask(true, ""); got != Token {
		t.Errorf("empty value should still mask to token, got %q", got)
	}
}
