package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Amandasamuel/Toll-with-postgress/internal/payments"
)

// RegisterPaymentRoutes wires card-to-card transfers and receipt lookups.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, throttle fiber.Handler) {
	r.Post("/transfer", throttle, h.Transfer)
	r.Get("/transfers/:reference", h.Receipt)
}
