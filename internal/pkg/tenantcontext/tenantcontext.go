package tenantcontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dineboard/dineboard/app/models"
)

// ContextKey is the fiber Locals key carrying the resolved tenant.
const ContextKey = "TENANT_CONTEXT"

// HeaderTenantID names the header carrying the tenant's public UUID.
const HeaderTenantID = "X-Tenant-ID"

// TenantContext represents the resolved tenant for a request
type TenantContext struct {
	Tenant     *models.Tenant
	IsResolved bool
}

// GetTenantContext retrieves the tenant context from fiber context.
// Returns an unresolved context if the middleware did not run.
func GetTenantContext(c *fiber.Ctx) TenantContext {
	if ctx := c.Locals(ContextKey); ctx != nil {
		return ctx.(TenantContext)
	}
	return TenantContext{IsResolved: false}
}

// Set stores the resolved tenant on the request.
func Set(c *fiber.Ctx, tenant *models.Tenant) {
	c.Locals(ContextKey, TenantContext{Tenant: tenant, IsResolved: tenant != nil})
}

// GetTenant returns the resolved tenant, or nil.
func GetTenant(c *fiber.Ctx) *models.Tenant {
	return GetTenantContext(c).Tenant
}
