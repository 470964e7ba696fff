// Package api exposes the HTTP surface: the transcription trigger, the
// session/transcript/note/issue/follow-up CRUD, and operational
// introspection over the job broker.
package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sessionscribe/sessionscribe/events"
	"github.com/sessionscribe/sessionscribe/pipeline"
	"github.com/sessionscribe/sessionscribe/queue"
	"github.com/sessionscribe/sessionscribe/store"
)

// Server bundles the handler dependencies.
type Server struct {
	store  *store.Store
	orch   *pipeline.Orchestrator
	broker *queue.Broker
	bus    *events.Bus
}

// New builds the fiber application with all routes registered.
func New(st *store.Store, orch *pipeline.Orchestrator, broker *queue.Broker, bus *events.Bus) *fiber.App {
	s := &Server{store: st, orch: orch, broker: broker, bus: bus}

	app := fiber.New(fiber.Config{
		AppName:               "sessionscribe",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth is out of scope; the customer scope comes from a header set
	// by the fronting gateway.
	app.Use(requireCustomer)

	app.Post("/clients", s.createClient)
	app.Get("/clients", s.listClients)
	app.Get("/clients/:id", s.getClient)
	app.Put("/clients/:id", s.updateClient)
	app.Delete("/clients/:id", s.deleteClient)

	app.Post("/sessions", s.createSession)
	app.Get("/sessions", s.listSessions)
	app.Get("/sessions/:id", s.getSession)
	app.Put("/sessions/:id", s.updateSession)
	app.Delete("/sessions/:id", s.deleteSession)

	app.Post("/sessions/:id/transcribe", s.triggerTranscription)
	app.Get("/sessions/:id/transcript", s.getTranscript)
	app.Put("/sessions/:id/transcript", s.updateTranscript)

	app.Post("/sessions/:id/notes", s.createNote)
	app.Get("/sessions/:id/notes", s.listNotes)
	app.Post("/sessions/:id/issues", s.createIssue)
	app.Get("/sessions/:id/issues", s.listIssues)
	app.Post("/sessions/:id/followups", s.createFollowUp)
	app.Get("/sessions/:id/followups", s.listFollowUps)
	app.Put("/followups/:id/complete", s.completeFollowUp)

	app.Get("/jobs", s.listJobs)
	registerEventsFeed(app, bus)

	return app
}

// requireCustomer resolves the tenant scope for every request.
func requireCustomer(c *fiber.Ctx) error {
	customerID := c.Get("X-Customer-ID")
	if customerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "X-Customer-ID header is required"})
	}
	c.Locals("customerID", customerID)
	return c.Next()
}

func customerID(c *fiber.Ctx) string {
	id, _ := c.Locals("customerID").(string)
	return id
}
