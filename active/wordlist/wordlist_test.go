package wordlist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSkipsBlanksAndComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	content := "www\n\n# infrastructure\napi\n  mail  \nAPI\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write wordlist: %v", err)
	}

	words, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"api", "mail", "www"}
	if len(words) != len(want) {
		t.Fatalf("expected %v, got %v", want, words)
	}
	for i, word := range want {
		if words[i] != word {
			t.Fatalf("expected %s at index %d, got %s", word, i, words[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatalf("expected error for missing wordlist")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load("   "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestGenerate(t *testing.T) {
	hostnames := Generate("Example.COM.", []string{"www", "api", ""}, false)

	want := []string{"www.example.com", "api.example.com"}
	if len(hostnames) != len(want) {
		t.Fatalf("expected %v, got %v", want, hostnames)
	}
	for i, name := range want {
		if hostnames[i] != name {
			t.Fatalf("expected %s at index %d, got %s", name, i, hostnames[i])
		}
	}
}

func TestGeneratePermutations(t *testing.T) {
	hostnames := Generate("example.com", []string{"admin"}, true)

	// base label plus 4 variants per numeric suffix 0-99
	if len(hostnames) != 1+4*100 {
		t.Fatalf("unexpected hostname count: %d", len(hostnames))
	}
	if hostnames[0] != "admin.example.com" {
		t.Fatalf("expected base hostname first, got %s", hostnames[0])
	}

	seen := make(map[string]struct{}, len(hostnames))
	for _, name := range hostnames {
		if _, ok := seen[name]; ok {
			t.Fatalf("duplicate hostname generated: %s", name)
		}
		seen[name] = struct{}{}
	}
	if _, ok := seen["admin1.example.com"]; !ok {
		t.Fatalf("expected suffix variant to be present")
	}
	if _, ok := seen["1-admin.example.com"]; !ok {
		t.Fatalf("expected prefix variant to be present")
	}
}

func TestGenerateEmptyInputs(t *testing.T) {
	if got := Generate("", []string{"www"}, false); got != nil {
		t.Fatalf("expected nil for empty domain, got %v", got)
	}
	if got := Generate("example.com", nil, false); got != nil {
		t.Fatalf("expected nil for empty wordlist, got %v", got)
	}
}
