package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/dineboard/dineboard/app/controllers"
	"github.com/dineboard/dineboard/app/repository"
	"github.com/dineboard/dineboard/internal/pkg/billing"
	"github.com/dineboard/dineboard/internal/pkg/cache"
	"github.com/dineboard/dineboard/internal/pkg/database"
	"github.com/dineboard/dineboard/internal/pkg/middleware"
	"github.com/dineboard/dineboard/internal/pkg/notify"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	repos := repository.NewFactory(database.GetDB()).GetRepositories()

	// The gateway and price table are built once here, from configuration;
	// "is billing configured" is decided at construction, not per call.
	gateway := billing.NewPaymentGatewayFromEnv()
	prices := billing.NewPriceTableFromEnv()
	svc := billing.NewOperationsService(repos.Subscription, gateway, prices)
	analytics := billing.NewAnalyticsAggregator(repos.Subscription, cache.NewStore())

	billingCtl := controllers.NewBillingController(svc, analytics)
	tenantCtl := controllers.NewTenantController(repos.Tenant)

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Post("/tenants", tenantCtl.HandleProvision)
	v1.Get("/plans", billingCtl.HandleListPlans)

	b := v1.Group("/billing", middleware.TenantContextMiddleware(repos.Tenant))
	b.Post("/checkout", billingCtl.HandleCheckout)
	b.Post("/portal", billingCtl.HandlePortal)
	b.Post("/cancel", billingCtl.HandleCancel)
	b.Post("/plan", billingCtl.HandleChangePlan)
	b.Get("/subscription", billingCtl.HandleGetSubscription)
	b.Get("/invoices", billingCtl.HandleListInvoices)
	b.Post("/usage", billingCtl.HandleRecordUsage)
	b.Get("/usage", billingCtl.HandleGetUsage)
	b.Get("/analytics", billingCtl.HandleAnalytics)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// WebhookRouter mounts the provider-facing delivery endpoint outside the
// API group.
type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	repos := repository.NewFactory(database.GetDB()).GetRepositories()

	prices := billing.NewPriceTableFromEnv()
	processor := billing.NewWebhookEventProcessor(repos.Subscription, prices, notify.NewMailer())
	verifier := billing.NewSignatureVerifierFromEnv()
	webhookCtl := controllers.NewWebhookController(verifier, processor)

	app.Post("/webhooks/payment", webhookCtl.HandlePaymentWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
