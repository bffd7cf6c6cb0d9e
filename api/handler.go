package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type turnRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Text      string `json:"text" validate:"required,max=4000"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Intent    string `json:"intent"`
}

func (s *Server) postTurn(c *fiber.Ctx) error {
	var req turnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
	}
	if err := validate.Struct(req); err != nil {
		return err
	}

	reply, err := s.handler.HandleMessage(c.UserContext(), req.SessionID, req.Text)
	if err != nil {
		return err
	}

	return c.JSON(turnResponse{
		SessionID: req.SessionID,
		Reply:     reply.Text,
		Intent:    string(reply.Intent),
	})
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	if err := s.handler.ResetSession(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
