package api

import (
	"errors"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/sessionscribe/sessionscribe/domain"
)

func (s *Server) getTranscript(c *fiber.Ctx) error {
	transcript, err := s.store.GetTranscript(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transcript not found"})
	}
	if err != nil {
		log.Printf("api: get transcript: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch transcript"})
	}

	// File-mode transcripts carry their text on disk.
	if transcript.Content == "" && transcript.FileReference != "" {
		data, err := os.ReadFile(transcript.FileReference)
		if err != nil {
			log.Printf("api: read transcript file %s: %v", transcript.FileReference, err)
		} else {
			transcript.Content = string(data)
		}
	}
	return c.JSON(transcript)
}

type updateTranscriptRequest struct {
	Content string `json:"content"`
}

func (s *Server) updateTranscript(c *fiber.Ctx) error {
	var req updateTranscriptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}

	transcript, err := s.store.UpdateTranscriptContent(c.Params("id"), customerID(c), req.Content)
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transcript not found"})
	}
	if err != nil {
		log.Printf("api: update transcript: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update transcript"})
	}

	// Keep a referenced file in sync with the edited text.
	if transcript.FileReference != "" {
		if err := os.WriteFile(transcript.FileReference, []byte(req.Content), 0o644); err != nil {
			log.Printf("api: write transcript file %s: %v", transcript.FileReference, err)
		}
	}
	return c.JSON(fiber.Map{"message": "transcript updated", "transcript": transcript})
}
