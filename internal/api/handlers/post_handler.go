package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/postloom/postloom/internal/rules"
	"github.com/postloom/postloom/internal/service"
	"github.com/postloom/postloom/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var in transfer.SchedulePostInput
	if err := c.BodyParser(&in); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	post, err := h.s.SchedulePost(c.Context(), userID, &in)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) SaveDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var in transfer.DraftPostInput
	if err := c.BodyParser(&in); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	post, err := h.s.SaveDraft(c.Context(), userID, &in)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postID), userID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

// CheckRules runs the per-platform content check the editor shows inline.
type checkRulesRequest struct {
	Platform  string   `json:"platform"`
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls"`
}

func (h *PostHandler) CheckRules(c *fiber.Ctx) error {
	var req checkRulesRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	violations := rules.Check(req.Platform, req.Content, req.MediaURLs)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"violations": violations,
		"valid":      len(violations) == 0,
	})
}
