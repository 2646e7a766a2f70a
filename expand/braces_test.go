package expand

import (
	"testing"

	"cjsh.dev/cjsh/syntax"
)

func litWord(s string) *syntax.Word {
	return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

func wordTexts(t *testing.T, words []*syntax.Word) []string {
	t.Helper()
	out := make([]string, len(words))
	for i, w := range words {
		lit, ok := w.Lit()
		if !ok {
			t.Fatalf("word %d is not a plain literal: %#v", i, w)
		}
		out[i] = lit
	}
	return out
}

func TestBracesList(t *testing.T) {
	got := wordTexts(t, Braces(litWord("file.{a,b,c}")))
	want := []string{"file.a", "file.b", "file.c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBracesNumericRange(t *testing.T) {
	got := wordTexts(t, Braces(litWord("{1..3}")))
	want := []string{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBracesAlphaRangeWithStep(t *testing.T) {
	got := wordTexts(t, Braces(litWord("{a..g..2}")))
	want := []string{"a", "c", "e", "g"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBracesCartesianProduct(t *testing.T) {
	got := wordTexts(t, Braces(litWord("{a,b}{1,2}")))
	want := []string{"a1", "a2", "b1", "b2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBracesNoExpansion(t *testing.T) {
	got := Braces(litWord("plain"))
	if len(got) != 1 {
		t.Fatalf("got %d words, want 1", len(got))
	}
	lit, _ := got[0].Lit()
	if lit != "plain" {
		t.Errorf("got %q, want plain", lit)
	}
}

func TestBracesZeroPadded(t *testing.T) {
	got := wordTexts(t, Braces(litWord("{01..03}")))
	want := []string{"01", "02", "03"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
