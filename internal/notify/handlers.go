package notify

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
)

type Handler struct {
	db  *gorm.DB
	hub *stream.Hub
}

func NewHandler(db *gorm.DB, hub *stream.Hub) *Handler {
	return &Handler{db: db, hub: hub}
}

// @Summary      List my notifications
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.Notification
// @Router       /notifications [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	var rows []models.Notification
	if err := h.db.Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return c.JSON(rows)
}

// @Summary      Mark notification as read
// @Description  The read flag is the only mutable field on a notification
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "notification id (uuid)"
// @Success      200  {object}  map[string]bool
// @Failure      404  {object}  models.ErrorResponse
// @Router       /notifications/{id}/read [patch]
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification id")
	}

	var rec models.Notification
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if !rec.Read {
		if err := h.db.Model(&rec).Update("read", true).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		h.hub.Publish(stream.Event{
			Table:  "notifications",
			Action: stream.ActionUpdate,
			ID:     rec.ID.String(),
		}, rec.UserID)
	}
	return c.JSON(fiber.Map{"ok": true})
}
