package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tutorgo/internal/config"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Completer runs single system+user prompts, as the generators need.
type Completer struct {
	model model.BaseChatModel
}

func NewCompleter(m model.BaseChatModel) *Completer {
	return &Completer{model: m}
}

func (c *Completer) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	defer cancel()

	msgs := []*schema.Message{schema.SystemMessage(system), schema.UserMessage(user)}
	out, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("model generate: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", errors.New("model returned no content")
	}
	return out.Content, nil
}
