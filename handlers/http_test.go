package handlers

import "testing"

func TestClassifyHref(t *testing.T) {
	cases := []struct {
		href   string
		name   string
		isDir  bool
		ok     bool
	}{
		{"pub/", "pub", true, true},
		{"README.txt", "README.txt", false, true},
		{"../", "", false, false},
		{"?C=N;O=D", "", false, false},
		{"/absolute/path", "", false, false},
		{"http://other.example.org/x", "", false, false},
		{"a%20file.txt", "a file.txt", false, true},
	}
	for _, c := range cases {
		name, isDir, ok := classifyHref(c.href)
		if ok != c.ok {
			t.Fatalf("classifyHref(%q) ok = %v, want %v", c.href, ok, c.ok)
		}
		if !ok {
			continue
		}
		if name != c.name || isDir != c.isDir {
			t.Fatalf("classifyHref(%q) = (%q, %v), want (%q, %v)", c.href, name, isDir, c.name, c.isDir)
		}
	}
}

func TestExtractHrefs(t *testing.T) {
	body := []byte(`<html><body><a href="pub/">pub/</a> <a HREF="a.txt">a.txt</a></body></html>`)
	hrefs := extractHrefs(body)
	if len(hrefs) != 2 || hrefs[0] != "pub/" || hrefs[1] != "a.txt" {
		t.Fatalf("extractHrefs = %v", hrefs)
	}
}
