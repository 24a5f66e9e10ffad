package keywords

import (
	"fmt"

	"github.com/jdkato/prose/v2"
)

// Token is a word with its Penn Treebank tag.
type Token struct {
	Text string
	Tag  string
}

// Tagger assigns part-of-speech tags.
type Tagger interface {
	Tag(text string) ([]Token, error)
}

// ProseTagger tags with the averaged perceptron model bundled in prose.
type ProseTagger struct{}

// Tag implements Tagger.
func (ProseTagger) Tag(text string) ([]Token, error) {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("tag prompt: %w", err)
	}
	tokens := doc.Tokens()
	out := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, Token{Text: tok.Text, Tag: tok.Tag})
	}
	return out, nil
}
