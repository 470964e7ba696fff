package api

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sessionscribe/sessionscribe/domain"
)

func (s *Server) createNote(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}

	note, err := s.store.CreateNote(c.Params("id"), customerID(c), req.Content)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: create note: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create note"})
	}
	return c.Status(fiber.StatusCreated).JSON(note)
}

func (s *Server) listNotes(c *fiber.Ctx) error {
	notes, err := s.store.ListNotes(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: list notes: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list notes"})
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	return c.JSON(notes)
}

func (s *Server) createIssue(c *fiber.Ctx) error {
	var req struct {
		Title    string `json:"title"`
		Severity string `json:"severity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	issue, err := s.store.CreateIssue(c.Params("id"), customerID(c), req.Title, req.Severity)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: create issue: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create issue"})
	}
	return c.Status(fiber.StatusCreated).JSON(issue)
}

func (s *Server) listIssues(c *fiber.Ctx) error {
	issues, err := s.store.ListIssues(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: list issues: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list issues"})
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return c.JSON(issues)
}

func (s *Server) createFollowUp(c *fiber.Ctx) error {
	var req struct {
		Description string     `json:"description"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "description is required"})
	}

	fu, err := s.store.CreateFollowUp(c.Params("id"), customerID(c), req.Description, req.DueDate)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: create followup: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create follow-up"})
	}
	return c.Status(fiber.StatusCreated).JSON(fu)
}

func (s *Server) listFollowUps(c *fiber.Ctx) error {
	followups, err := s.store.ListFollowUps(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		log.Printf("api: list followups: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list follow-ups"})
	}
	if followups == nil {
		followups = []domain.FollowUp{}
	}
	return c.JSON(followups)
}

func (s *Server) completeFollowUp(c *fiber.Ctx) error {
	err := s.store.CompleteFollowUp(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "follow-up not found"})
	}
	if err != nil {
		log.Printf("api: complete followup: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to complete follow-up"})
	}
	return c.JSON(fiber.Map{"message": "follow-up completed"})
}
