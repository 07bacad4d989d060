package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"", 1, 20, 0},
		{"?page=3&limit=10", 3, 10, 20},
		{"?page=0&limit=-5", 1, 20, 0},
		{"?page=abc&limit=xyz", 1, 20, 0},
		{"?limit=1000", 1, 100, 0},
	}

	for _, tc := range cases {
		var got Pagination
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			got = ParsePagination(c)
			return c.SendStatus(fiber.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/"+tc.query, nil))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, tc.wantPage, got.Page, "query %q", tc.query)
		assert.Equal(t, tc.wantLimit, got.Limit, "query %q", tc.query)
		assert.Equal(t, tc.wantOffset, got.Offset, "query %q", tc.query)
	}
}
