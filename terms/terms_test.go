package terms

import (
	"reflect"
	"testing"
)

func contains(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}

func TestExtractSimpleWord(t *testing.T) {
	got := Extract("Arachne")
	want := []string{"arachne"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract(Arachne) = %v, want %v", got, want)
	}
}

func TestExtractAccentedName(t *testing.T) {
	got := Extract("Yasser_González_Fernández")
	if !contains(got, "gonzález") && !contains(got, "gonzalez") {
		t.Fatalf("Extract(accented name) = %v, want accented or transliterated gonzalez", got)
	}
	if !contains(got, "gonzalez") {
		t.Fatalf("Extract(accented name) = %v, want a transliterated plain-ascii variant", got)
	}
}

func TestExtractVersionPrefix(t *testing.T) {
	got := Extract("07.Teddy-bear.mp3")
	for _, want := range []string{"07", "teddy", "bear", "3"} {
		if !contains(got, want) {
			t.Fatalf("Extract(07.Teddy-bear.mp3) = %v, missing %q", got, want)
		}
	}
}

func TestExtractUnderscoreAndExtension(t *testing.T) {
	got := Extract("dive_into_python.zip")
	for _, want := range []string{"dive", "into", "python", "zip"} {
		if !contains(got, want) {
			t.Fatalf("Extract(dive_into_python.zip) = %v, missing %q", got, want)
		}
	}
}

func TestExtractCamelCase(t *testing.T) {
	got := Extract("AFewCamelCasedWords")
	for _, want := range []string{"few", "camel", "cased", "words"} {
		if !contains(got, want) {
			t.Fatalf("Extract(AFewCamelCasedWords) = %v, missing %q", got, want)
		}
	}
	if contains(got, "a") {
		t.Fatalf("Extract(AFewCamelCasedWords) = %v, leading single-letter fragment should be dropped", got)
	}
}

func TestExtractPreservesApostrophe(t *testing.T) {
	got := Extract("A hard day's night")
	if !contains(got, "day's") {
		t.Fatalf("Extract(A hard day's night) = %v, want day's preserved", got)
	}
	if contains(got, "day") || contains(got, "s") {
		t.Fatalf("Extract(A hard day's night) = %v, should not split day's", got)
	}
}

func TestExtractDropsPunctuationOnlyFragments(t *testing.T) {
	got := Extract("It should ignore this: ! # &.")
	for _, bad := range []string{"!", "#", "&", "."} {
		if contains(got, bad) {
			t.Fatalf("Extract(...) = %v, should not contain bare punctuation %q", got, bad)
		}
	}
	for _, want := range []string{"should", "ignore", "this"} {
		if !contains(got, want) {
			t.Fatalf("Extract(...) = %v, missing %q", got, want)
		}
	}
}

func TestExtractShortFragmentsDropped(t *testing.T) {
	got := Extract("Please, please me")
	if contains(got, "me") {
		t.Fatalf("Extract(Please, please me) = %v, short non-digit/non-c fragment 'me' should be dropped", got)
	}
	if !contains(got, "please") {
		t.Fatalf("Extract(Please, please me) = %v, missing 'please'", got)
	}
}

func TestExtractSingleLetterC(t *testing.T) {
	got := Extract("hello.c")
	if !contains(got, "c") {
		t.Fatalf("Extract(hello.c) = %v, want lone 'c' kept", got)
	}
}

func TestStemsEnglish(t *testing.T) {
	got := Stems("crawling crawler")
	if !contains(got, "crawl") {
		t.Fatalf("Stems(crawling crawler) = %v, want a shared 'crawl' stem", got)
	}
}

func TestStemsEmpty(t *testing.T) {
	if got := Stems(""); len(got) != 0 {
		t.Fatalf("Stems(\"\") = %v, want empty", got)
	}
}
