package query

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// ParamsFromFiber collects the query string of a fiber request, keeping
// repeated keys.
func ParamsFromFiber(c *fiber.Ctx) url.Values {
	params := url.Values{}
	if c == nil {
		return params
	}
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		params.Add(string(key), string(value))
	})
	return params
}

// UseFiber overlays the query string of a fiber request.
func (b *Builder[T]) UseFiber(c *fiber.Ctx) *Builder[T] {
	return b.UseRequest(ParamsFromFiber(c))
}
