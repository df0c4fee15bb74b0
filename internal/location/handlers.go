package location

import (
	"errors"

	"backend-runtracker/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, src *HostSource) {
	r.Post("/permission", func(c *fiber.Ctx) error {
		var req struct {
			Granted bool `json:"granted"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		src.SetPermission(req.Granted)
		return c.JSON(fiber.Map{"granted": req.Granted})
	})

	r.Post("/fixes", func(c *fiber.Ctx) error {
		var fix geo.Fix
		if err := c.BodyParser(&fix); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		err := src.Push(fix)
		switch {
		case errors.Is(err, ErrNotSubscribed):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, ErrBackpressure):
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/buffer", func(c *fiber.Ctx) error {
		var fixes []geo.Fix
		if err := c.BodyParser(&fixes); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if src.Buffer() == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "no background buffer configured")
		}
		for _, fix := range fixes {
			if err := src.Buffer().Append(c.Context(), fix); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"buffered": len(fixes)})
	})
}
