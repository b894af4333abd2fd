package tutor

import (
	"strings"

	"tutorgo/internal/models"
)

// skillsAddressed returns the names of skills mentioned in either side of an exchange.
func skillsAddressed(skills []models.Skill, message, response string) []string {
	msg := strings.ToLower(message)
	resp := strings.ToLower(response)
	out := []string{}
	seen := make(map[string]struct{}, len(skills))
	for _, sk := range skills {
		name := strings.ToLower(strings.TrimSpace(sk.Name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		if strings.Contains(msg, name) || strings.Contains(resp, name) {
			seen[name] = struct{}{}
			out = append(out, sk.Name)
		}
	}
	return out
}
