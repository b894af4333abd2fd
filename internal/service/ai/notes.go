package ai

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"tutorgo/internal/config"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

// NotesLoader reads uploaded study notes into plain text.
type NotesLoader struct {
	loader *file.FileLoader
}

func NewNotesLoader(ctx context.Context) (*NotesLoader, error) {
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init notes parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return nil, fmt.Errorf("init notes loader: %w", err)
	}
	return &NotesLoader{loader: loader}, nil
}

// Load returns the readable text of the file at path, clipped for prompting.
func (n *NotesLoader) Load(ctx context.Context, path string) (string, error) {
	docs, err := n.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load notes: %w", err)
	}
	var b strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	text := strings.TrimSpace(b.String())

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		if text, err = htmlToText(strings.NewReader(text)); err != nil {
			return "", err
		}
	}
	if text == "" {
		return "", errors.New("notes have no readable text content")
	}
	return clipRunes(text, config.MaxNotesRunes), nil
}
