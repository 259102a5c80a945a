// Package mongodb implements the domain entity stores on MongoDB, one
// collection per entity kind. Record ids are ObjectID hex strings.
package mongodb

import "github.com/maxcoind/kapelukh-backend/internal/persistence"

const defaultListLimit = 100

func listLimit(limit int64) int64 {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func sortDirection(order persistence.SortOrder) int {
	if order == persistence.SortDesc {
		return -1
	}
	return 1
}
