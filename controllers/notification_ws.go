package controller

import (
	"log"

	"github.com/gofiber/websocket/v2"

	"taskory/models"
	"taskory/utils"
)

// HandleNotificationWS streams the caller's notifications live. The
// connection subscribes to the hub under the user's id; the read pump
// only exists to notice the peer going away.
func HandleNotificationWS(hub *utils.NotificationHub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		user, ok := c.Locals("user").(*models.User)
		if !ok {
			return
		}

		feed := hub.Subscribe(user.ID)
		defer hub.Unsubscribe(user.ID, feed)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		greeting := struct {
			Message string `json:"message"`
		}{Message: "connected"}
		if err := c.WriteJSON(greeting); err != nil {
			return
		}

		for {
			select {
			case payload := <-feed:
				if err := c.WriteJSON(payload); err != nil {
					log.Printf("Error writing JSON: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}
}
