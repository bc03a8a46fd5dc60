package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Amandasamuel/Toll-with-postgress/internal/wallet"
)

// RegisterWalletRoutes wires the reader-facing wallet endpoints. Only balance
// mutations are throttled; lookups stay unmetered.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, throttle fiber.Handler) {
	r.Post("/topup", throttle, h.TopUp)
	r.Post("/debit", throttle, h.Debit)
	r.Get("/balance/:card_uid", h.Balance)
	r.Get("/transactions/:card_uid", h.Transactions)
}
