// Package types contains the core data types shared across the memory server.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultProject is the codename used when a caller does not name one.
// It matches the collection name of the original single-project deployments.
const DefaultProject = "project_memory"

// MaxProjectLength bounds codename length.
const MaxProjectLength = 64

var projectPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Memory is a stored text fact with optional tags, scoped to a project.
type Memory struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the memory is storable.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return errors.New("memory id cannot be empty")
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.New("memory content cannot be empty")
	}
	return ValidateProject(m.Project)
}

// Clone returns a deep copy of the memory.
func (m *Memory) Clone() Memory {
	out := *m
	if m.Tags != nil {
		out.Tags = make([]string, len(m.Tags))
		copy(out.Tags, m.Tags)
	}
	return out
}

// NormalizeProject lowercases and validates a codename, applying the default
// when the input is blank.
func NormalizeProject(project string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(project))
	if p == "" {
		return DefaultProject, nil
	}
	if err := ValidateProject(p); err != nil {
		return "", err
	}
	return p, nil
}

// ValidateProject checks a codename against the allowed character set.
func ValidateProject(project string) error {
	if project == "" {
		return errors.New("project codename cannot be empty")
	}
	if len(project) > MaxProjectLength {
		return fmt.Errorf("project codename exceeds %d characters", MaxProjectLength)
	}
	if !projectPattern.MatchString(project) {
		return fmt.Errorf("invalid project codename %q: use lowercase letters, digits, '-' and '_'", project)
	}
	return nil
}

// SearchResult pairs a memory with its similarity score.
type SearchResult struct {
	Memory Memory  `json:"memory"`
	Score  float64 `json:"score"`
}

// SearchResults is the ordered outcome of a semantic search.
type SearchResults struct {
	Query     string         `json:"query"`
	Results   []SearchResult `json:"results"`
	QueryTime time.Duration  `json:"query_time_ns"`
}

// DefaultSearchLimit is used when a caller does not specify n_results.
const DefaultSearchLimit = 5

// MaxSearchLimit caps n_results to keep responses bounded.
const MaxSearchLimit = 100

// ClampSearchLimit applies the default and the cap to a requested limit.
func ClampSearchLimit(n int) int {
	if n <= 0 {
		return DefaultSearchLimit
	}
	if n > MaxSearchLimit {
		return MaxSearchLimit
	}
	return n
}
