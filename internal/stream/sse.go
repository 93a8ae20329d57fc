package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// SSE godoc
// @Summary      Change-event stream
// @Description  Server-sent events with {table, action, id} rows addressed to the authenticated user
// @Tags         realtime
// @Security     BearerAuth
// @Produce      text/event-stream
// @Router       /events [get]
func SSE(hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, _ := c.Locals("userID").(string)
		userID, err := uuid.Parse(raw)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")

		events, unsubscribe := hub.Subscribe(userID)

		// A dropped connection surfaces as a flush error below; unsubscribing
		// on exit keeps the hub from piling up dead channels.
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer unsubscribe()

			// Periodic comment lines keep intermediaries from closing the stream.
			ticker := time.NewTicker(25 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case evt, ok := <-events:
					if !ok {
						return
					}
					data, _ := json.Marshal(evt)
					fmt.Fprintf(w, "data: %s\n\n", data)
					if err := w.Flush(); err != nil {
						return
					}
				case <-ticker.C:
					fmt.Fprint(w, ": ping\n\n")
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		}))
		return nil
	}
}
