package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
)

type PlatformHandler struct {
	s service.PlatformService
}

func NewPlatformHandler(service service.PlatformService) *PlatformHandler {
	return &PlatformHandler{s: service}
}

func (h *PlatformHandler) ConnectPlatform(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	connectURL, err := h.s.ConnectURL(userID, platform)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Redirect(connectURL)
}

func (h *PlatformHandler) ConnectCallback(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")
	profileID := c.Query("profile_id")

	if err := h.s.ConnectCallback(c.Context(), userID, platform, profileID); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PlatformHandler) ListPlatforms(c *fiber.Ctx) error {
	userID := GetUserID(c)

	platforms, err := h.s.List(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(platforms)
}

func (h *PlatformHandler) DisconnectPlatform(c *fiber.Ctx) error {
	userID := GetUserID(c)
	id := c.QueryInt("id", 0)

	if err := h.s.Disconnect(c.Context(), userID, int64(id)); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
