package model

import "strings"

// ContentKind identifies a class of computed digest content. Each kind has
// its own cache freshness window, injected via config.
type ContentKind string

const (
	ContentKindTrends  ContentKind = "trends"
	ContentKindTopics  ContentKind = "topics"
	ContentKindSummary ContentKind = "summary"
)

func (k ContentKind) Valid() bool {
	switch k {
	case ContentKindTrends, ContentKindTopics, ContentKindSummary:
		return true
	}
	return false
}

// CacheKey composes the cache key for a content kind and a disambiguating
// tag, e.g. "trends:technology".
func CacheKey(kind ContentKind, tag string) string {
	return string(kind) + ":" + tag
}

// KindFromKey extracts the content kind prefix from a cache key. Returns ""
// for keys without a recognized kind.
func KindFromKey(key string) ContentKind {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return ""
	}
	kind := ContentKind(key[:idx])
	if !kind.Valid() {
		return ""
	}
	return kind
}
