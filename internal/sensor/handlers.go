package sensor

import "github.com/gofiber/fiber/v2"

type pushRequest struct {
	Value     *float64 `json:"value"`
	Available *bool    `json:"available"`
}

type providerStatus struct {
	Source     Source  `json:"source"`
	Channel    string  `json:"channel"`
	Available  bool    `json:"available"`
	Subscribed bool    `json:"subscribed"`
	Resolved   Reading `json:"resolved"`
}

func RegisterRoutes(r fiber.Router, registry *Registry, resolver *Resolver) {
	r.Get("/", func(c *fiber.Ctx) error {
		out := []providerStatus{}
		for _, s := range []Source{SourceWearable, SourcePhoneNative} {
			for _, ch := range []Channel{HeartRate, Cadence, Calories} {
				p, ok := registry.Provider(s, ch)
				if !ok {
					continue
				}
				out = append(out, providerStatus{
					Source:     s,
					Channel:    ch.String(),
					Available:  p.IsAvailable(),
					Subscribed: p.Subscribed(),
					Resolved:   resolver.Resolve(ch),
				})
			}
		}
		return c.JSON(out)
	})

	r.Post("/:source/:channel", func(c *fiber.Ctx) error {
		source, err := ParseSource(c.Params("source"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		ch, err := ParseChannel(c.Params("channel"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		p, ok := registry.Provider(source, ch)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no provider for "+source.String()+"/"+ch.String())
		}

		var req pushRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		// Marking a provider unavailable carries no sample.
		if req.Available != nil && !*req.Available {
			p.SetAvailable(false)
			return c.SendStatus(fiber.StatusNoContent)
		}
		p.Push(req.Value)
		return c.SendStatus(fiber.StatusAccepted)
	})
}
