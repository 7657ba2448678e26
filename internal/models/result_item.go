package models

import "time"

// ResultItem is one ranked listing in a keyword search snapshot.
type ResultItem struct {
	Rank           int    `json:"rank"`
	ExternalItemID string `json:"external_item_id"`
	Title          string `json:"title"`
	StoreName      string `json:"store_name"`
}

// KeywordCacheEntry is the shared snapshot cached for a keyword.
type KeywordCacheEntry struct {
	Keyword  string       `json:"keyword"`
	Results  []ResultItem `json:"results"`
	CachedAt time.Time    `json:"cached_at"`
}

// IsFresh reports whether the entry is younger than ttl at now.
func (e *KeywordCacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt) < ttl
}

// IndexByExternalID maps external item ids to their snapshot entry.
// The first occurrence wins when a listing appears twice.
func IndexByExternalID(results []ResultItem) map[string]ResultItem {
	index := make(map[string]ResultItem, len(results))
	for _, r := range results {
		if _, ok := index[r.ExternalItemID]; ok {
			continue
		}
		index[r.ExternalItemID] = r
	}
	return index
}
