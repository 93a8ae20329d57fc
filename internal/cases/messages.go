package cases

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
	"github.com/socialjuris/socialjuris-backend/pkg/validation"
)

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
	Type    string `json:"type" validate:"omitempty,oneof=text image file"`
	FileURL string `json:"file_url" validate:"omitempty,url,max=500"`
}

// @Summary      Send message
// @Description  Appends a chat message; the other party is notified when the case has one
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "case id (uuid)"
// @Param        payload  body  SendMessageRequest  true  "Message"
// @Success      201  {object}  models.Message
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/messages [post]
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	senderUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	caseID := c.Params("id")
	if _, err := uuid.Parse(caseID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}

	var in SendMessageRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if in.Type == "" {
		in.Type = string(models.MessageText)
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	// Only the conversation participants may write.
	isParticipant := cs.ClientID == senderUUID ||
		(cs.LawyerID != nil && *cs.LawyerID == senderUUID)
	if !isParticipant {
		return fiber.ErrForbidden
	}

	msg := models.Message{
		CaseID:   cs.ID,
		SenderID: senderUUID,
		Content:  in.Content,
		Type:     models.MessageType(in.Type),
		FileURL:  in.FileURL,
	}
	if err := h.db.Create(&msg).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	// Resolve the other party; an OPEN case has no second party yet.
	var recipient *uuid.UUID
	if cs.ClientID == senderUUID {
		recipient = cs.LawyerID
	} else {
		recipient = &cs.ClientID
	}
	if recipient != nil {
		var sender models.User
		if err := h.db.First(&sender, "id = ?", senderUUID).Error; err == nil {
			h.notifier.Send(*recipient,
				"Nova Mensagem",
				fmt.Sprintf("%s enviou uma mensagem.", sender.Name),
				models.NotifyInfo)
		}
	}

	h.hub.Publish(stream.Event{Table: "messages", Action: stream.ActionInsert, ID: msg.ID.String()},
		participants(&cs)...)
	return c.Status(fiber.StatusCreated).JSON(msg)
}
