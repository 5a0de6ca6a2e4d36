package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/process"

	chaterrors "chatroom/errors"
	"chatroom/services"
)

func (s *Server) registerParticipant(c *fiber.Ctx) error {
	var body registerRequest
	if err := c.BodyParser(&body); err != nil {
		return s.fail(c, fmt.Errorf("%w: %v", chaterrors.ErrInvalidInput, err))
	}
	participant, err := s.service.Register(body.Name)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toParticipantResponse(participant))
}

func (s *Server) listParticipants(c *fiber.Ctx) error {
	participants, err := s.service.ListParticipants()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toParticipantResponses(participants))
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	var body messageRequest
	if err := c.BodyParser(&body); err != nil {
		return s.fail(c, fmt.Errorf("%w: %v", chaterrors.ErrInvalidInput, err))
	}
	msg, err := s.service.PostMessage(services.MessageCommand{
		From: c.Get(HeaderIdentity),
		To:   body.To,
		Text: body.Text,
		Type: body.Type,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(msg))
}

func (s *Server) getMessages(c *fiber.Ctx) error {
	var limit *int
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return s.fail(c, fmt.Errorf("%w: limit must be a positive integer", chaterrors.ErrInvalidInput))
		}
		limit = &parsed
	}
	msgs, err := s.service.GetMessages(c.Get(HeaderIdentity), limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toMessageResponses(msgs))
}

func (s *Server) searchMessages(c *fiber.Ctx) error {
	msgs, err := s.service.SearchMessages(c.UserContext(), c.Query("q"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(toMessageResponses(msgs))
}

func (s *Server) editMessage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		// A malformed id cannot name any stored message.
		return s.fail(c, chaterrors.ErrNotFound)
	}
	var body messageRequest
	if err := c.BodyParser(&body); err != nil {
		return s.fail(c, fmt.Errorf("%w: %v", chaterrors.ErrInvalidInput, err))
	}
	msg, err := s.service.EditMessage(id, services.MessageCommand{
		From: c.Get(HeaderIdentity),
		To:   body.To,
		Text: body.Text,
		Type: body.Type,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(msg))
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return s.fail(c, chaterrors.ErrNotFound)
	}
	if err := s.service.DeleteMessage(id, c.Get(HeaderIdentity)); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) heartbeat(c *fiber.Ctx) error {
	if err := s.service.Heartbeat(c.Get(HeaderIdentity)); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// healthz reports technical stats of the process alongside the room size.
func (s *Server) healthz(c *fiber.Ctx) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return s.fail(c, err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return s.fail(c, err)
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return s.fail(c, err)
	}
	participants, err := s.service.ListParticipants()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":       "ok",
		"pid":          os.Getpid(),
		"ramBytes":     memInfo.RSS,
		"cpuPercent":   cpuPercent,
		"participants": len(participants),
	})
}

// fail translates the service error taxonomy into the HTTP contract.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, chaterrors.ErrInvalidInput), errors.Is(err, chaterrors.ErrNotParticipant):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, chaterrors.ErrNameTaken):
		status = fiber.StatusConflict
	case errors.Is(err, chaterrors.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, chaterrors.ErrNotOwner):
		status = fiber.StatusUnauthorized
	default:
		s.log.Error("Request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
