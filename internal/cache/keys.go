package cache

import "strconv"

// CalculationsNamespace scopes a user's saved-calculation list pages.
func CalculationsNamespace(userID string) string {
	return "calc:list:" + userID
}

// CalculationsPage returns the key for one list page.
func CalculationsPage(userID string, version int64, page, limit int) string {
	return Versioned(CalculationsNamespace(userID), version, strconv.Itoa(page), strconv.Itoa(limit))
}
