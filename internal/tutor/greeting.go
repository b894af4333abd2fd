package tutor

import (
	"strings"
	"unicode"
)

// GreetingText is the canned introduction sent in reply to a bare greeting.
const GreetingText = "Hi there! I'm your tutor. Ask me about anything you're studying and I'll use your recent lessons and quizzes to tailor the explanation. Pick a track if you want to focus on one subject."

var greetings = []string{"hi", "hello", "hey", "yo", "sup", "good morning", "good afternoon", "good evening"}

const maxGreetingWords = 3

// IsGreeting reports whether text is a short greeting such as "Hello!" or
// "good morning tutor".
func IsGreeting(text string) bool {
	norm := normalizeGreeting(text)
	if norm == "" {
		return false
	}
	words := strings.Fields(norm)
	for _, g := range greetings {
		if norm == g {
			return true
		}
		if len(words) <= maxGreetingWords && strings.HasPrefix(norm, g+" ") {
			return true
		}
	}
	return false
}

func normalizeGreeting(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Join(strings.Fields(stripped), " ")
}
