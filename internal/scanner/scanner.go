// Package scanner matches agent output against a catalog of forbidden
// operation patterns. Any single hit halts the fleet through the kill
// switch. Matching is lexical and case-insensitive: a best-effort filter
// on untrusted text, not a verified policy engine.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxExcerpt bounds the raw text carried in a violation record.
const maxExcerpt = 200

// Violation records one forbidden-pattern hit. Records are append-only:
// the core never mutates or deletes them.
type Violation struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	PatternID string    `json:"pattern"`
	Category  string    `json:"category"`
	Matched   string    `json:"matched"`
	Source    string    `json:"source"`
	Excerpt   string    `json:"excerpt,omitempty"`
}

// Activator is the kill-switch surface the scanner needs.
type Activator interface {
	Activate(ctx context.Context, reason, activatedBy string) error
}

// Scanner evaluates text against an immutable pattern catalog and trips
// the kill switch on any hit.
type Scanner struct {
	catalog *Catalog
	ks      Activator
	log     *ViolationLog // nil disables persistence
	logger  *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithViolationLog attaches an append-only violations log.
func WithViolationLog(l *ViolationLog) ScannerOption {
	return func(s *Scanner) { s.log = l }
}

// WithLogger sets the scanner's logger.
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// New creates a Scanner over the given catalog and kill switch.
func New(catalog *Catalog, ks Activator, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		catalog: catalog,
		ks:      ks,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan evaluates every cataloged pattern against text. At most one
// Violation is recorded per pattern per invocation, so one noisy line
// cannot produce unbounded records. On the first hit the kill switch is
// activated; activation and log-append failures are logged but never
// suppress the returned detections.
func (s *Scanner) Scan(ctx context.Context, text, source string) []Violation {
	var violations []Violation
	now := time.Now().UTC()

	for _, p := range s.catalog.Patterns() {
		match := p.re.FindString(text)
		if match == "" {
			continue
		}
		violations = append(violations, Violation{
			ID:        uuid.NewString(),
			Timestamp: now,
			PatternID: p.ID,
			Category:  p.Category,
			Matched:   match,
			Source:    source,
			Excerpt:   excerpt(text, match),
		})
	}
	if len(violations) == 0 {
		return nil
	}

	// Policy-triggering side effects are deterministic: activation and
	// persistence happen even if downstream notification later fails.
	first := violations[0]
	s.logger.Error("forbidden pattern detected",
		"pattern", first.PatternID, "category", first.Category, "source", source)
	if err := s.ks.Activate(ctx, fmt.Sprintf("%s detected", first.PatternID), source); err != nil {
		s.logger.Error("kill switch activation failed", "error", err)
	}
	if s.log != nil {
		for _, v := range violations {
			if err := s.log.Append(v); err != nil {
				s.logger.Warn("violation log append failed", "pattern", v.PatternID, "error", err)
			}
		}
	}
	return violations
}

// ScanFile runs a one-shot scan over a file's contents.
func (s *Scanner) ScanFile(ctx context.Context, path string) ([]Violation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return s.Scan(ctx, string(data), path), nil
}

// excerpt returns the line containing the match, bounded to maxExcerpt.
func excerpt(text, match string) string {
	idx := strings.Index(text, match)
	if idx < 0 {
		// Case-insensitive match may not be found verbatim; fall back to
		// the matched fragment itself.
		return truncate(match, maxExcerpt)
	}
	start := strings.LastIndexByte(text[:idx], '\n') + 1
	end := strings.IndexByte(text[idx:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += idx
	}
	return truncate(strings.TrimSpace(text[start:end]), maxExcerpt)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
