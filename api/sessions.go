package api

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sessionscribe/sessionscribe/domain"
	"github.com/sessionscribe/sessionscribe/store"
)

type createSessionRequest struct {
	ClientID        string     `json:"client_id"`
	Title           string     `json:"title"`
	SessionDate     *time.Time `json:"session_date"`
	DurationSeconds int        `json:"duration_seconds"`
	AudioPath       string     `json:"audio_path"`
	AudioFormat     string     `json:"audio_format"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.ClientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "client_id is required"})
	}
	if err := s.store.ClientOwned(req.ClientID, customerID(c)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown client_id"})
		}
		log.Printf("api: check client: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create session"})
	}

	sess := &domain.Session{
		CustomerID:      customerID(c),
		ClientID:        req.ClientID,
		Title:           req.Title,
		DurationSeconds: req.DurationSeconds,
		AudioPath:       req.AudioPath,
		AudioFormat:     req.AudioFormat,
		Status:          domain.StatusPending,
	}
	if req.SessionDate != nil {
		sess.SessionDate = *req.SessionDate
	} else {
		sess.SessionDate = time.Now().UTC()
	}

	if err := s.store.CreateSession(sess); err != nil {
		log.Printf("api: create session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create session"})
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	sessions, err := s.store.ListSessions(
		customerID(c),
		c.Query("client_id"),
		domain.SessionStatus(c.Query("status")),
		c.QueryInt("limit", 10),
		c.QueryInt("offset", 0),
	)
	if err != nil {
		log.Printf("api: list sessions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list sessions"})
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return c.JSON(sessions)
}

func (s *Server) getSession(c *fiber.Ctx) error {
	sess, err := s.store.GetSession(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: get session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch session"})
	}
	return c.JSON(sess)
}

type updateSessionRequest struct {
	Title           *string               `json:"title"`
	SessionDate     *time.Time            `json:"session_date"`
	DurationSeconds *int                  `json:"duration_seconds"`
	AudioPath       *string               `json:"audio_path"`
	AudioFormat     *string               `json:"audio_format"`
	Status          *domain.SessionStatus `json:"status"`
}

func (s *Server) updateSession(c *fiber.Ctx) error {
	var req updateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	sess, err := s.store.UpdateSession(c.Params("id"), customerID(c), store.SessionUpdate{
		Title:           req.Title,
		SessionDate:     req.SessionDate,
		DurationSeconds: req.DurationSeconds,
		AudioPath:       req.AudioPath,
		AudioFormat:     req.AudioFormat,
		Status:          req.Status,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status value"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	case err != nil:
		log.Printf("api: update session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update session"})
	}
	return c.JSON(sess)
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	err := s.store.DeleteSession(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: delete session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete session"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
