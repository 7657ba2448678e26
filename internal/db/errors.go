package db

import "errors"

// Domain-level database error sentinels.
var (
	// Tracked item errors
	ErrTrackedItemNotFound = errors.New("tracked item not found")
	ErrAlreadyTracked      = errors.New("item is already tracked for this keyword")

	// Keyword cache errors
	ErrCacheEntryNotFound = errors.New("keyword cache entry not found")
)
