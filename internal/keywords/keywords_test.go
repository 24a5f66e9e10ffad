package keywords_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"tunevision/internal/keywords"
)

type fakeTagger []keywords.Token

func (f fakeTagger) Tag(string) ([]keywords.Token, error) { return f, nil }

func TestNounsFiltersTagsAndStopWords(t *testing.T) {
	tagger := fakeTagger{
		{Text: "A", Tag: "DT"},
		{Text: "Dog", Tag: "NNP"},
		{Text: "runs", Tag: "VBZ"},
		{Text: "past", Tag: "IN"},
		{Text: "bicycles", Tag: "NNS"},
		{Text: "dog", Tag: "NN"},
		{Text: "others", Tag: "NNS"},
		{Text: "3", Tag: "NN"},
	}
	ex := keywords.New(keywords.WithTagger(tagger), keywords.WithStopWords("Others"))
	got, err := ex.Nouns(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("Nouns: %v", err)
	}
	want := []string{"bicycles", "dog"}
	if !slices.Equal(got, want) {
		t.Fatalf("Nouns = %v, want %v", got, want)
	}
}

func TestNounsEmbeddedStopWordsApply(t *testing.T) {
	tagger := fakeTagger{{Text: "them", Tag: "NN"}, {Text: "car", Tag: "NN"}}
	got, err := keywords.New(keywords.WithTagger(tagger)).Nouns(context.Background(), "")
	if err != nil {
		t.Fatalf("Nouns: %v", err)
	}
	if !slices.Equal(got, []string{"car"}) {
		t.Fatalf("Nouns = %v", got)
	}
}

func TestNounsWithProseTagger(t *testing.T) {
	got, err := keywords.New().Nouns(context.Background(), "a cat sits on a red chair")
	if err != nil {
		t.Fatalf("Nouns: %v", err)
	}
	for _, want := range []string{"cat", "chair"} {
		if !slices.Contains(got, want) {
			t.Fatalf("Nouns = %v, missing %q", got, want)
		}
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter.lua")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestHookFiltersWords(t *testing.T) {
	path := writeScript(t, `
function filter(words)
  local out = {}
  for _, w in ipairs(words) do
    if w ~= "scene" then table.insert(out, string.upper(w)) end
  end
  table.insert(out, "person")
  return out
end
`)
	hook, err := keywords.LoadHook(path)
	if err != nil {
		t.Fatalf("LoadHook: %v", err)
	}
	tagger := fakeTagger{{Text: "scene", Tag: "NN"}, {Text: "horse", Tag: "NN"}}
	got, err := keywords.New(keywords.WithTagger(tagger), keywords.WithHook(hook)).Nouns(context.Background(), "")
	if err != nil {
		t.Fatalf("Nouns: %v", err)
	}
	if !slices.Equal(got, []string{"horse", "person"}) {
		t.Fatalf("Nouns = %v", got)
	}
}

func TestLoadHookRequiresFilter(t *testing.T) {
	path := writeScript(t, `x = 1`)
	if _, err := keywords.LoadHook(path); err == nil || !strings.Contains(err.Error(), "filter") {
		t.Fatalf("expected missing filter error, got %v", err)
	}
}

func TestHookSandboxBlocksFileAccess(t *testing.T) {
	path := writeScript(t, `
function filter(words)
  dofile("/etc/passwd")
  return words
end
`)
	hook, err := keywords.LoadHook(path)
	if err != nil {
		t.Fatalf("LoadHook: %v", err)
	}
	if _, err := hook.Filter(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected sandbox error")
	}
}

func TestHookRejectsNonStringResults(t *testing.T) {
	path := writeScript(t, `function filter(words) return {1, 2} end`)
	hook, err := keywords.LoadHook(path)
	if err != nil {
		t.Fatalf("LoadHook: %v", err)
	}
	if _, err := hook.Filter(context.Background(), nil); err == nil {
		t.Fatal("expected non-string error")
	}
}
