package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/dineboard/dineboard/app/repository"
	"github.com/dineboard/dineboard/internal/pkg/tenantcontext"
)

// TenantContextMiddleware resolves the X-Tenant-ID header to a tenant row
// and stores it on the request. Billing routes refuse to run without a
// resolved tenant; the webhook endpoint never uses this middleware because
// the provider addresses subscriptions by external id, not by tenant.
func TenantContextMiddleware(repo repository.TenantRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantUUID := strings.TrimSpace(c.Get(tenantcontext.HeaderTenantID))
		if tenantUUID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing_tenant_header",
			})
		}

		tenant, err := repo.GetByUUID(tenantUUID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "unknown_tenant",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "tenant_lookup_failed",
			})
		}

		tenantcontext.Set(c, tenant)
		return c.Next()
	}
}
