package history

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/errors"
)

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0700); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{AllowedPaths: []string{dir}}
	unsafe := &config.Config{AllowUnsafePaths: true}

	tests := []struct {
		name    string
		path    string
		cfg     *config.Config
		wantErr bool
	}{
		{"allowed dir", filepath.Join(dir, "a.jsonl"), cfg, false},
		{"empty", "", cfg, true},
		{"traversal", dir + "/../a.jsonl", cfg, true},
		{"wrong extension", filepath.Join(dir, "a.txt"), cfg, true},
		{"subdirectory", filepath.Join(sub, "a.jsonl"), cfg, true},
		{"outside allowed", filepath.Join(os.TempDir(), "medscan-elsewhere.jsonl"), cfg, true},
		{"unsafe allows anywhere", filepath.Join(sub, "a.jsonl"), unsafe, false},
		{"unsafe still needs extension", filepath.Join(sub, "a.csv"), unsafe, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("error code = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestValidatePath_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	if err := os.WriteFile(target, nil, 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	for _, cfg := range []*config.Config{{AllowedPaths: []string{dir}}, {AllowUnsafePaths: true}} {
		if err := ValidatePath(link, cfg); err == nil {
			t.Errorf("symlink accepted with cfg %+v", cfg)
		}
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := map[string]bool{
		"a/b.jsonl":     false,
		"../b.jsonl":    true,
		"a/../b.jsonl":  true,
		"a/..b.jsonl":   false,
		"/tmp/x..jsonl": false,
	}
	for in, want := range tests {
		if got := containsTraversal(in); got != want {
			t.Errorf("containsTraversal(%q) = %v, want %v", in, got, want)
		}
	}
}
