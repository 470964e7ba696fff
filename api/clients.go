package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/sessionscribe/sessionscribe/domain"
	"github.com/sessionscribe/sessionscribe/store"
)

type createClientRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	UniqueIdentifier string `json:"unique_identifier"`
}

func (s *Server) createClient(c *fiber.Ctx) error {
	var req createClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	client := &domain.Client{
		CustomerID:       customerID(c),
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		UniqueIdentifier: req.UniqueIdentifier,
	}
	if err := s.store.CreateClient(client); err != nil {
		log.Printf("api: create client: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create client"})
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func (s *Server) listClients(c *fiber.Ctx) error {
	clients, err := s.store.ListClients(customerID(c))
	if err != nil {
		log.Printf("api: list clients: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list clients"})
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	return c.JSON(clients)
}

func (s *Server) getClient(c *fiber.Ctx) error {
	client, err := s.store.GetClient(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not found"})
	}
	if err != nil {
		log.Printf("api: get client: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch client"})
	}
	return c.JSON(client)
}

type updateClientRequest struct {
	Name             *string `json:"name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	UniqueIdentifier *string `json:"unique_identifier"`
}

func (s *Server) updateClient(c *fiber.Ctx) error {
	var req updateClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	client, err := s.store.UpdateClient(c.Params("id"), customerID(c), store.ClientUpdate{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		UniqueIdentifier: req.UniqueIdentifier,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not found"})
	}
	if err != nil {
		log.Printf("api: update client: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update client"})
	}
	return c.JSON(client)
}

func (s *Server) deleteClient(c *fiber.Ctx) error {
	err := s.store.DeleteClient(c.Params("id"), customerID(c))
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not found"})
	}
	if err != nil {
		log.Printf("api: delete client: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete client"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
