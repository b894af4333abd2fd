package tutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGreeting(t *testing.T) {
	cases := map[string]bool{
		"hi":                        true,
		"Hello!":                    true,
		"  HEY  ":                   true,
		"yo.":                       true,
		"sup?":                      true,
		"Good morning":              true,
		"good   afternoon!!":        true,
		"Good evening, tutor":       true,
		"hi there":                  true,
		"hello there friend":        true,
		"hello there my friend":     false,
		"hey can you help me":       false,
		"history of the hittites":   false,
		"hiking":                    false,
		"Explain derivatives":       false,
		"":                          false,
		"!!!":                       false,
		"good":                      false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsGreeting(in), "IsGreeting(%q)", in)
	}
}
