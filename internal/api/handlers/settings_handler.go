package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/service"
)

type SettingsHandler struct {
	s service.SettingsService
}

func NewSettingsHandler(service service.SettingsService) *SettingsHandler {
	return &SettingsHandler{s: service}
}

func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	settingsInfo, err := h.s.GetSettingsInfo(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(settingsInfo)
}

type settingsUpdateRequest struct {
	NotifyOnFailure bool   `json:"notify_on_failure"`
	Timezone        string `json:"timezone"`
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req settingsUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	if err := h.s.UpdateSettings(c.Context(), userID, req.NotifyOnFailure, req.Timezone); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
