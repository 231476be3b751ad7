package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/produccion-api/pkg/metrics"
)

// Metrics registra conteo y latencia por ruta. Resuelve el error de la cadena aquí para conocer
// el código final.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		m.ObserveHTTP(c.Method(), c.Route().Path, strconv.Itoa(c.Response().StatusCode()), time.Since(start).Seconds())
		return nil
	}
}
