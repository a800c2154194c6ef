package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dineboard/dineboard/app/models"
	"github.com/dineboard/dineboard/internal/pkg/billing"
	"github.com/dineboard/dineboard/internal/pkg/tenantcontext"
)

// BillingController exposes the synchronous billing operations. All routes
// here run behind the tenant-context middleware.
type BillingController struct {
	svc       *billing.OperationsService
	analytics *billing.AnalyticsAggregator
	validate  *validator.Validate
}

// NewBillingController wires the controller once at route installation.
func NewBillingController(svc *billing.OperationsService, analytics *billing.AnalyticsAggregator) *BillingController {
	return &BillingController{
		svc:       svc,
		analytics: analytics,
		validate:  validator.New(),
	}
}

type checkoutRequest struct {
	Plan       string `json:"plan" validate:"required,oneof=home starter professional enterprise"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

type portalRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

type cancelRequest struct {
	Immediate bool `json:"immediate"`
}

type changePlanRequest struct {
	Plan      string `json:"plan" validate:"required,oneof=home starter professional enterprise"`
	Proration string `json:"proration" validate:"omitempty,oneof=create_prorations none"`
}

type usageRequest struct {
	Metric   string `json:"metric" validate:"required,min=1,max=100"`
	Quantity int64  `json:"quantity" validate:"gte=0"`
}

// HandleCheckout starts a hosted checkout session for the requested plan.
func (ctl *BillingController) HandleCheckout(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	if err := ctl.validate.Struct(&req); err != nil {
		return badRequest(c, "validation_failed", err.Error())
	}

	url, err := ctl.svc.StartCheckout(c.Context(), tenant, models.Plan(req.Plan), req.SuccessURL, req.CancelURL)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandlePortal opens the provider's billing portal.
func (ctl *BillingController) HandlePortal(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	var req portalRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	if err := ctl.validate.Struct(&req); err != nil {
		return badRequest(c, "validation_failed", err.Error())
	}

	url, err := ctl.svc.OpenPortal(c.Context(), tenant, req.ReturnURL)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandleCancel cancels the subscription, immediately or at period end.
func (ctl *BillingController) HandleCancel(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", err.Error())
		}
	}

	sub, err := ctl.svc.Cancel(c.Context(), tenant, req.Immediate)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(sub)
}

// HandleChangePlan switches the subscription to another plan's price. The
// local plan stays as-is until the confirming webhook arrives, so a 202
// here means "requested", not "done".
func (ctl *BillingController) HandleChangePlan(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	var req changePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	if err := ctl.validate.Struct(&req); err != nil {
		return badRequest(c, "validation_failed", err.Error())
	}

	if err := ctl.svc.ChangePlan(c.Context(), tenant, models.Plan(req.Plan), billing.ProrationPolicy(req.Proration)); err != nil {
		return billingError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// HandleGetSubscription returns the tenant's local subscription mirror.
func (ctl *BillingController) HandleGetSubscription(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	sub, err := ctl.svc.Subscription(tenant)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(sub)
}

// HandleListInvoices returns the tenant's locally mirrored invoices.
func (ctl *BillingController) HandleListInvoices(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	invoices, err := ctl.svc.Invoices(c.Context(), tenant)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(invoices)
}

// HandleRecordUsage appends one metering event.
func (ctl *BillingController) HandleRecordUsage(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	var req usageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	if err := ctl.validate.Struct(&req); err != nil {
		return badRequest(c, "validation_failed", err.Error())
	}

	if err := ctl.svc.RecordUsage(tenant, req.Metric, req.Quantity); err != nil {
		return billingError(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// HandleGetUsage sums one metric over the current billing period.
func (ctl *BillingController) HandleGetUsage(c *fiber.Ctx) error {
	tenant := tenantcontext.GetTenant(c)

	metric := strings.TrimSpace(c.Query("metric"))
	if metric == "" {
		return badRequest(c, "validation_failed", "metric query parameter is required")
	}

	total, err := ctl.svc.UsageTotal(tenant, metric)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(fiber.Map{"metric": metric, "total": total})
}

// HandleListPlans returns the purchasable plan catalog.
func (ctl *BillingController) HandleListPlans(c *fiber.Ctx) error {
	return c.JSON(billing.PlanCatalog())
}

// HandleAnalytics returns the reporting rollup.
func (ctl *BillingController) HandleAnalytics(c *fiber.Ctx) error {
	snap, err := ctl.analytics.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "analytics_failed"})
	}
	return c.JSON(snap)
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code, "message": message})
}

// billingError maps the billing error taxonomy onto HTTP statuses. Unknown
// failures stay 500 so nothing user-visible leaks.
func billingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrNoBillingAccount):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_billing_account"})
	case errors.Is(err, billing.ErrNoActiveSubscription):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_active_subscription"})
	case errors.Is(err, billing.ErrUnknownPlan):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan"})
	case errors.Is(err, billing.ErrGatewayUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "billing_not_configured"})
	case errors.Is(err, billing.ErrGatewayTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "gateway_timeout"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
}
