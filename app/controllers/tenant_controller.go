package controllers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dineboard/dineboard/app/models"
	"github.com/dineboard/dineboard/app/repository"
)

// TenantController handles tenant provisioning. Creating a tenant creates
// its initial TRIAL subscription in the same transaction.
type TenantController struct {
	repo     repository.TenantRepository
	validate *validator.Validate
}

// NewTenantController wires the controller once at route installation.
func NewTenantController(repo repository.TenantRepository) *TenantController {
	return &TenantController{
		repo:     repo,
		validate: validator.New(),
	}
}

type provisionRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=150"`
	Slug       string `json:"slug" validate:"required,min=2,max=150"`
	OwnerEmail string `json:"owner_email" validate:"required,email"`
	// TrialDays lets an admin grant a longer trial; zero means the default.
	TrialDays int `json:"trial_days" validate:"gte=0,lte=365"`
}

// HandleProvision creates the tenant plus its trial subscription.
func (ctl *TenantController) HandleProvision(c *fiber.Ctx) error {
	var req provisionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	if err := ctl.validate.Struct(&req); err != nil {
		return badRequest(c, "validation_failed", err.Error())
	}

	tenant := &models.Tenant{
		Name:       strings.TrimSpace(req.Name),
		Slug:       strings.ToLower(strings.TrimSpace(req.Slug)),
		OwnerEmail: strings.TrimSpace(req.OwnerEmail),
		Status:     models.TenantStatusActive,
	}

	sub, err := ctl.repo.Provision(tenant, req.TrialDays)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "provisioning_failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"tenant":       tenant,
		"subscription": sub,
	})
}
