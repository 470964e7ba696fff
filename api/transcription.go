package api

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/sessionscribe/sessionscribe/domain"
	"github.com/sessionscribe/sessionscribe/events"
	"github.com/sessionscribe/sessionscribe/pipeline"
	"github.com/sessionscribe/sessionscribe/queue"
)

// triggerTranscription accepts a transcription job for a session. The
// response says whether the job was accepted, never whether transcription
// succeeded; callers observe the outcome through the session status.
func (s *Server) triggerTranscription(c *fiber.Ctx) error {
	sessionID := c.Params("id")

	jobID, err := s.orch.Trigger(c.Context(), sessionID, customerID(c))
	switch {
	case err == nil:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"job_id":  jobID,
			"message": "transcription job queued",
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	case errors.Is(err, domain.ErrNoAudio):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session has no audio attached"})
	case errors.Is(err, pipeline.ErrAlreadyTranscribing):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "transcription already in progress"})
	case errors.Is(err, queue.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "job queue unavailable"})
	default:
		log.Printf("api: trigger transcription for %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start transcription"})
	}
}

// listJobs exposes broker contents for operators.
func (s *Server) listJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"active":   s.broker.ActiveJobs(),
		"terminal": s.broker.TerminalJobs(),
	})
}

// registerEventsFeed streams pipeline events over a websocket. Clients
// receive every event after the sequence number they connect with.
func registerEventsFeed(app *fiber.App, bus *events.Bus) {
	app.Use("/ws/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/events", websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()
		streamEvents(conn, bus, time.Second)
	}))
}

// eventConn is the connection surface streamEvents needs.
type eventConn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
}

// streamEvents pushes new bus events to the peer until it disconnects.
// The reader discards inbound frames; its error is the only prompt
// disconnect signal when the bus is idle and nothing is being written.
func streamEvents(conn eventConn, bus *events.Bus, interval time.Duration) {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSeq int64
	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			for _, event := range bus.Since(lastSeq) {
				if err := conn.WriteJSON(event); err != nil {
					return
				}
				lastSeq = event.Seq
			}
		}
	}
}
