package keywords

import (
	"bufio"
	"context"
	_ "embed"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed stopwords_en.txt
var stopWordList string

var defaultStopWords = func() map[string]struct{} {
	set := make(map[string]struct{}, 200)
	scanner := bufio.NewScanner(strings.NewReader(stopWordList))
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			set[word] = struct{}{}
		}
	}
	return set
}()

// Extractor turns prompt text into a sorted, de-duplicated noun set.
type Extractor struct {
	tagger Tagger
	stop   map[string]struct{}
	hook   *Hook
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithTagger overrides the default prose tagger.
func WithTagger(tagger Tagger) Option {
	return func(e *Extractor) {
		if tagger != nil {
			e.tagger = tagger
		}
	}
}

// WithStopWords adds words to the English stop list.
func WithStopWords(words ...string) Option {
	return func(e *Extractor) {
		for _, word := range words {
			if word = strings.TrimSpace(word); word != "" {
				e.stop[cases.Lower(language.English).String(word)] = struct{}{}
			}
		}
	}
}

// WithHook installs a Lua post-processing hook.
func WithHook(hook *Hook) Option {
	return func(e *Extractor) { e.hook = hook }
}

// New builds an extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		tagger: ProseTagger{},
		stop:   make(map[string]struct{}, len(defaultStopWords)),
	}
	for word := range defaultStopWords {
		e.stop[word] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Nouns returns the lowercase nouns in text, sorted ascending. Safe for
// concurrent use.
func (e *Extractor) Nouns(ctx context.Context, text string) ([]string, error) {
	tokens, err := e.tagger.Tag(text)
	if err != nil {
		return nil, err
	}
	lower := cases.Lower(language.English)
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !strings.HasPrefix(tok.Tag, "NN") {
			continue
		}
		word := lower.String(strings.TrimSpace(tok.Text))
		if word == "" || !strings.ContainsFunc(word, unicode.IsLetter) {
			continue
		}
		if _, stop := e.stop[word]; stop {
			continue
		}
		words = append(words, word)
	}
	if e.hook != nil {
		words, err = e.hook.Filter(ctx, words)
		if err != nil {
			return nil, err
		}
		for i, word := range words {
			words[i] = lower.String(strings.TrimSpace(word))
		}
		words = slices.DeleteFunc(words, func(w string) bool { return w == "" })
	}
	slices.Sort(words)
	return slices.Compact(words), nil
}
