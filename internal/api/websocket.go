package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sniper-core/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTopics is the set of bus events streamed to websocket clients.
var wsTopics = []events.Event{
	events.EventSignalDetected,
	events.EventTradeSubmitted,
	events.EventTradeConfirmed,
	events.EventTradeFailed,
	events.EventPositionChange,
	events.EventStopTriggered,
	events.EventPriceTick,
}

type wsEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	merged := make(chan wsEnvelope, 100)
	done := make(chan struct{})
	defer close(done)

	for _, topic := range wsTopics {
		stream, unsub := s.Bus.Subscribe(topic, 100)
		defer unsub()
		go func(topic events.Event, stream <-chan any) {
			for {
				select {
				case msg, ok := <-stream:
					if !ok {
						return
					}
					select {
					case merged <- wsEnvelope{Event: string(topic), Data: msg}:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}(topic, stream)
	}

	for env := range merged {
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
