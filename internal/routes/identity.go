package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Amandasamuel/Toll-with-postgress/internal/identity"
)

// RegisterIdentityRoutes wires cardholder onboarding endpoints.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/register", h.Register)
	r.Post("/users/:userId/cards", h.LinkCard)
}
