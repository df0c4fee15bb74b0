package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, tr *Tracker) {
	r.Post("/session/start", func(c *fiber.Ctx) error {
		var opts StartOptions
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&opts); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		session, err := tr.Start(c.Context(), opts)
		if err != nil {
			return statusError(err)
		}
		return c.JSON(session)
	})

	r.Post("/session/pause", func(c *fiber.Ctx) error {
		session, err := tr.Pause(c.Context())
		if err != nil {
			return statusError(err)
		}
		return c.JSON(session)
	})

	r.Post("/session/resume", func(c *fiber.Ctx) error {
		session, err := tr.Resume(c.Context())
		if err != nil {
			return statusError(err)
		}
		return c.JSON(session)
	})

	r.Post("/session/stop", func(c *fiber.Ctx) error {
		session, err := tr.Stop(c.Context())
		if err != nil {
			return statusError(err)
		}
		return c.JSON(session)
	})

	r.Get("/session", func(c *fiber.Ctx) error {
		session, err := tr.Snapshot(c.Context())
		if err != nil {
			return statusError(err)
		}
		return c.JSON(session)
	})

	r.Get("/session/route", func(c *fiber.Ctx) error {
		session, path, err := tr.Trace(c.Context())
		if err != nil {
			return statusError(err)
		}
		return c.JSON(RouteGeoJSON(session, path), "application/geo+json")
	})

	r.Post("/app/background", func(c *fiber.Ctx) error {
		if err := tr.EnterBackground(c.Context()); err != nil {
			return statusError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/app/foreground", func(c *fiber.Ctx) error {
		if err := tr.EnterForeground(c.Context()); err != nil {
			return statusError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func statusError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
