package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/medipay/internal/services"
)

// TestVerify_RejectsUnknownLogType covers the type validation: a bad
// ?type= value is a caller error, not a missing row.
func TestVerify_RejectsUnknownLogType(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	handler := NewAuditHandler(services.NewAuditService(nil))
	app.Get("/audit/verify/:id", handler.Verify)

	req := httptest.NewRequest(fiber.MethodGet, "/audit/verify/"+uuid.NewString()+"?type=bogus", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestVerify_RejectsMalformedID covers the id parse guard.
func TestVerify_RejectsMalformedID(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	handler := NewAuditHandler(services.NewAuditService(nil))
	app.Get("/audit/verify/:id", handler.Verify)

	req := httptest.NewRequest(fiber.MethodGet, "/audit/verify/not-a-uuid", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
