package middleware

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/medipay/internal/config"
	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/services"
	"github.com/example/medipay/internal/utils"
)

const (
	userContextKey = "currentUserID"
	roleContextKey = "currentUserRole"
)

// RequireRoles validates the bearer token and enforces the role
// allow-list. This gate fails closed: any token-verification failure
// denies the request. Outcomes are recorded as security events.
func RequireRoles(cfg *config.Config, audit *services.AuditService, roles ...string) fiber.Handler {
	if len(roles) == 0 {
		roles = []string{models.RolePatient, models.RoleHospitalAdmin, models.RoleAdmin}
	}
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			logSecurityEvent(c, audit, uuid.Nil, "AUTH_MISSING_TOKEN", models.SeverityWarning, nil)
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			logSecurityEvent(c, audit, uuid.Nil, "AUTH_MALFORMED_TOKEN", models.SeverityWarning, nil)
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		userID, role, err := utils.ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			logSecurityEvent(c, audit, uuid.Nil, "AUTH_INVALID_TOKEN", models.SeverityWarning, map[string]any{
				"error": err.Error(),
			})
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		if !allowed[role] {
			logSecurityEvent(c, audit, userID, "AUTH_ROLE_DENIED", models.SeverityHigh, map[string]any{
				"role": role,
				"path": c.Path(),
			})
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}

		logSecurityEvent(c, audit, userID, "AUTH_GRANTED", models.SeverityInfo, map[string]any{
			"role": role,
			"path": c.Path(),
		})

		c.Locals(userContextKey, userID)
		c.Locals(roleContextKey, role)
		return c.Next()
	}
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// GetCurrentRole extracts the authenticated role from context.
func GetCurrentRole(c *fiber.Ctx) string {
	if role, ok := c.Locals(roleContextKey).(string); ok {
		return role
	}
	return ""
}

func logSecurityEvent(c *fiber.Ctx, audit *services.AuditService, userID uuid.UUID, eventType, severity string, details map[string]any) {
	if audit == nil {
		return
	}
	if _, err := audit.RecordSecurityEvent(context.Background(), services.SecurityEvent{
		UserID:        userID,
		EventType:     eventType,
		Severity:      severity,
		OriginAddress: c.IP(),
		UserAgent:     c.Get("User-Agent"),
		Details:       details,
	}); err != nil {
		log.Printf("[Auth] security audit failed: %v", err)
	}
}
