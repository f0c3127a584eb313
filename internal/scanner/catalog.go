package scanner

import (
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Pattern categories. Each forbidden pattern belongs to exactly one.
const (
	CategoryFilesystem  = "destructive-filesystem-ops"
	CategoryCredentials = "credential-exposure"
	CategoryPrivilege   = "privilege-escalation"
	CategoryGit         = "destructive-git-ops"
	CategoryProduction  = "production-mutation"
	CategoryInjection   = "code-injection"
)

// Pattern is one forbidden-operation matcher. Expressions are compiled
// case-insensitively.
type Pattern struct {
	ID         string
	Category   string
	Expression string

	re *regexp.Regexp
}

// Catalog is an immutable set of forbidden patterns. Changing the pattern
// set requires building a new Catalog (and therefore a new supervision
// session).
type Catalog struct {
	patterns []Pattern
}

// DefaultCatalog returns the built-in forbidden-operation patterns.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultPatterns())
	if err != nil {
		// Built-in expressions are compile-tested; a failure here is a bug.
		panic(fmt.Sprintf("scanner: default catalog: %v", err))
	}
	return c
}

// NewCatalog compiles the given patterns into a catalog.
func NewCatalog(patterns []Pattern) (*Catalog, error) {
	compiled := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p.ID == "" {
			return nil, fmt.Errorf("pattern with empty id (category %s)", p.Category)
		}
		re, err := regexp.Compile("(?i)" + p.Expression)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		p.re = re
		compiled = append(compiled, p)
	}
	return &Catalog{patterns: compiled}, nil
}

// Patterns returns the catalog's patterns in evaluation order.
func (c *Catalog) Patterns() []Pattern {
	return c.patterns
}

// Len returns the number of patterns in the catalog.
func (c *Catalog) Len() int {
	return len(c.patterns)
}

// catalogFile is the TOML overlay format for extra patterns.
type catalogFile struct {
	Patterns []struct {
		ID         string `toml:"id"`
		Category   string `toml:"category"`
		Expression string `toml:"expression"`
	} `toml:"patterns"`
}

// LoadCatalog returns the default catalog extended with patterns from the
// given TOML file. An empty path returns the defaults unchanged.
func LoadCatalog(path string) (*Catalog, error) {
	patterns := defaultPatterns()
	if path == "" {
		return NewCatalog(patterns)
	}

	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("loading pattern catalog %s: %w", path, err)
	}
	for _, p := range file.Patterns {
		patterns = append(patterns, Pattern{ID: p.ID, Category: p.Category, Expression: p.Expression})
	}
	return NewCatalog(patterns)
}

// defaultPatterns returns the built-in forbidden-operation patterns,
// partitioned by category. Expressions match shell-ish text lexically;
// this is a best-effort filter, not a verified policy engine.
func defaultPatterns() []Pattern {
	return []Pattern{
		// Destructive filesystem operations
		{ID: "rm-recursive-force", Category: CategoryFilesystem,
			Expression: `rm\s+-[a-z]*(?:rf|fr)[a-z]*\b`},
		{ID: "mkfs", Category: CategoryFilesystem,
			Expression: `mkfs\.[a-z0-9]+`},
		{ID: "dd-to-device", Category: CategoryFilesystem,
			Expression: `dd\s+[^|;&]*of=/dev/`},

		// Credential exposure
		{ID: "read-private-key", Category: CategoryCredentials,
			Expression: `cat\s+\S*(?:\.ssh/id_[a-z0-9]+|\.aws/credentials|\.netrc)`},
		{ID: "inline-secret-literal", Category: CategoryCredentials,
			Expression: `(?:api[_-]?key|secret[_-]?key|access[_-]?token)\s*[=:]\s*['"][A-Za-z0-9_\-]{16,}`},
		{ID: "secret-exfil-request", Category: CategoryCredentials,
			Expression: `curl\s+[^|;&]*(?:-d|--data)\s+[^|;&]*(?:token|secret|password)`},

		// Privilege escalation
		{ID: "sudo-su", Category: CategoryPrivilege,
			Expression: `sudo\s+su\b`},
		{ID: "setuid-chmod", Category: CategoryPrivilege,
			Expression: `chmod\s+(?:u\+s|\+s|[4-7][0-7]{3})\b`},
		{ID: "sudoers-write", Category: CategoryPrivilege,
			Expression: `>>?\s*/etc/sudoers`},

		// Destructive git operations
		{ID: "git-push-force", Category: CategoryGit,
			Expression: `git\s+push\s+[^|;&]*(?:--force\b|-f\b)`},
		{ID: "git-reset-hard", Category: CategoryGit,
			Expression: `git\s+reset\s+--hard\b`},
		{ID: "git-clean-force", Category: CategoryGit,
			Expression: `git\s+clean\s+-[a-z]*f`},

		// Production mutation
		{ID: "kubectl-delete-prod", Category: CategoryProduction,
			Expression: `kubectl\s+delete\s+[^|;&]*prod`},
		{ID: "sql-drop", Category: CategoryProduction,
			Expression: `drop\s+(?:table|database)\b`},
		{ID: "sql-truncate", Category: CategoryProduction,
			Expression: `truncate\s+table\b`},
		{ID: "terraform-destroy", Category: CategoryProduction,
			Expression: `terraform\s+(?:destroy|apply\s+-destroy)`},

		// Code injection
		{ID: "pipe-to-shell", Category: CategoryInjection,
			Expression: `(?:curl|wget)\s+[^|;&]*\|\s*(?:ba|z)?sh\b`},
		{ID: "base64-exec", Category: CategoryInjection,
			Expression: `base64\s+(?:-d|--decode)[^|;&]*\|\s*(?:ba|z)?sh\b`},
		{ID: "eval-subshell", Category: CategoryInjection,
			Expression: `eval\s+["']?\$\(`},
	}
}
