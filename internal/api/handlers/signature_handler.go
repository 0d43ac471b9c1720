package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
)

type SignatureHandler struct {
	s service.SignatureService
}

func NewSignatureHandler(service service.SignatureService) *SignatureHandler {
	return &SignatureHandler{s: service}
}

type signatureRequest struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	IsDefault bool   `json:"is_default"`
}

func (h *SignatureHandler) CreateSignature(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req signatureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	id, err := h.s.Create(c.Context(), userID, req.Name, req.Content, req.IsDefault)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"id": id})
}

func (h *SignatureHandler) ListSignatures(c *fiber.Ctx) error {
	userID := GetUserID(c)

	signatures, err := h.s.List(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(signatures)
}

func (h *SignatureHandler) UpdateSignature(c *fiber.Ctx) error {
	userID := GetUserID(c)
	id := c.QueryInt("id", 0)

	var req signatureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	if err := h.s.Update(c.Context(), userID, int64(id), req.Name, req.Content); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *SignatureHandler) SetDefaultSignature(c *fiber.Ctx) error {
	userID := GetUserID(c)
	id := c.QueryInt("id", 0)

	if err := h.s.SetDefault(c.Context(), userID, int64(id)); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *SignatureHandler) RemoveSignature(c *fiber.Ctx) error {
	userID := GetUserID(c)
	id := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(id)); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
