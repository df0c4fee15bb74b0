package upload

import (
	"errors"

	"backend-runtracker/internal/kvstore"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, queue *Queue, sweeper *Sweeper) {
	r.Get("/pending", func(c *fiber.Ctx) error {
		pending, err := queue.Pending(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(pending)
	})

	r.Get("/pending/:id", func(c *fiber.Ctx) error {
		p, err := queue.Get(c.Context(), c.Params("id"))
		if errors.Is(err, kvstore.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no pending upload")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})

	r.Post("/sweep", func(c *fiber.Ctx) error {
		res, err := sweeper.Sweep(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"delivered": res.Delivered,
			"failed":    res.Failed,
			"abandoned": res.Abandoned,
		})
	})
}
