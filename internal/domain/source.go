package domain

import (
	"strings"
	"time"
)

// SourceType distinguishes local word-list directories from git repositories.
type SourceType string

const (
	LocalSource SourceType = "local"
	GitSource   SourceType = "git"
)

// Source is a location word lists are synced from into a deck.
type Source struct {
	ID          int64      `json:"id"`
	Deck        string     `json:"deck"`
	Path        string     `json:"path"`
	Type        SourceType `json:"type"`
	LastScanned *time.Time `json:"last_scanned"`
}

// DetectSourceType guesses whether path refers to a git remote.
func DetectSourceType(path string) SourceType {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		return GitSource
	}
	return LocalSource
}
