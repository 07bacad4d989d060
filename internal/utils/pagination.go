package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the listing window for transaction and audit
// endpoints.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit query params, clamping the page
// size so listing responses stay bounded.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := atoiDefault(c.Query("page"), 1)
	limit := atoiDefault(c.Query("limit"), defaultPageSize)

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func atoiDefault(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
