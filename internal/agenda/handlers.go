package agenda

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/notify"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
	"github.com/socialjuris/socialjuris-backend/pkg/validation"
)

type Handler struct {
	db       *gorm.DB
	hub      *stream.Hub
	notifier *notify.Notifier
}

func NewHandler(db *gorm.DB, hub *stream.Hub, notifier *notify.Notifier) *Handler {
	return &Handler{db: db, hub: hub, notifier: notifier}
}

type ItemRequest struct {
	Title       string  `json:"title" validate:"required,min=2,max=200"`
	Description string  `json:"description" validate:"omitempty,max=2000"`
	Date        string  `json:"date" validate:"required"`
	Type        string  `json:"type" validate:"required,oneof=Judicial Administrativo Interno Diligencia"`
	Urgency     string  `json:"urgency" validate:"required,oneof=Alta Média Baixa"`
	ClientID    *string `json:"client_id" validate:"omitempty,uuid4"`
}

// @Summary      List agenda items
// @Tags         agenda
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.AgendaItem
// @Router       /agenda [get]
func (h *Handler) List(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)

	// Opening the agenda doubles as a deadline check.
	if err := h.SweepDeadlines(c.Context()); err != nil {
		log.Printf("agenda: deadline sweep: %v", err)
	}

	q := h.db.Where("lawyer_id = ?", lawyerID)
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", s)
	}

	var rows []models.AgendaItem
	if err := q.Order("date ASC").Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if rows == nil {
		rows = []models.AgendaItem{}
	}
	return c.JSON(rows)
}

// @Summary      Create agenda item
// @Tags         agenda
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ItemRequest  true  "Agenda item"
// @Success      201  {object}  models.AgendaItem
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /agenda [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	var in ItemRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid date; use RFC 3339 or YYYY-MM-DD")
	}

	var clientID *uuid.UUID
	if in.ClientID != nil {
		parsed, err := uuid.Parse(*in.ClientID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid client id")
		}
		clientID = &parsed
	}

	row := models.AgendaItem{
		LawyerID:    lawyerUUID,
		Title:       in.Title,
		Description: in.Description,
		Date:        date,
		Type:        in.Type,
		Urgency:     in.Urgency,
		ClientID:    clientID,
		Status:      models.AgendaPending,
	}
	if err := h.db.Create(&row).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	h.hub.Publish(stream.Event{Table: "agenda_items", Action: stream.ActionInsert, ID: row.ID.String()}, lawyerUUID)
	return c.Status(fiber.StatusCreated).JSON(row)
}

type ItemUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Date        *string `json:"date"`
	Type        *string `json:"type" validate:"omitempty,oneof=Judicial Administrativo Interno Diligencia"`
	Urgency     *string `json:"urgency" validate:"omitempty,oneof=Alta Média Baixa"`
}

// @Summary      Update agenda item
// @Tags         agenda
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "item id (uuid)"
// @Param        payload  body  ItemUpdateRequest  true  "Fields to change"
// @Success      200  {object}  models.AgendaItem
// @Failure      404  {object}  models.ErrorResponse
// @Router       /agenda/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	row, err := h.findOwned(c.Params("id"), lawyerUUID)
	if err != nil {
		return err
	}

	var in ItemUpdateRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	updates := map[string]any{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Date != nil {
		date, err := parseDate(*in.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid date; use RFC 3339 or YYYY-MM-DD")
		}
		updates["date"] = date
	}
	if in.Type != nil {
		updates["type"] = *in.Type
	}
	if in.Urgency != nil {
		updates["urgency"] = *in.Urgency
	}

	if len(updates) > 0 {
		if err := h.db.Model(row).Updates(updates).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}

	h.hub.Publish(stream.Event{Table: "agenda_items", Action: stream.ActionUpdate, ID: row.ID.String()}, lawyerUUID)
	return c.JSON(row)
}

// @Summary      Mark agenda item done
// @Tags         agenda
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "item id (uuid)"
// @Success      200  {object}  models.AgendaItem
// @Failure      404  {object}  models.ErrorResponse
// @Router       /agenda/{id}/done [patch]
func (h *Handler) MarkDone(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	row, err := h.findOwned(c.Params("id"), lawyerUUID)
	if err != nil {
		return err
	}

	if err := h.db.Model(row).Update("status", models.AgendaDone).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	h.hub.Publish(stream.Event{Table: "agenda_items", Action: stream.ActionUpdate, ID: row.ID.String()}, lawyerUUID)
	return c.JSON(row)
}

// @Summary      Delete agenda item
// @Tags         agenda
// @Security     BearerAuth
// @Param        id  path  string  true  "item id (uuid)"
// @Success      204  "no content"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /agenda/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	row, err := h.findOwned(c.Params("id"), lawyerUUID)
	if err != nil {
		return err
	}

	if err := h.db.Delete(row).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	h.hub.Publish(stream.Event{Table: "agenda_items", Action: stream.ActionDelete, ID: row.ID.String()}, lawyerUUID)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) findOwned(id string, lawyerID uuid.UUID) (*models.AgendaItem, error) {
	itemUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid item id")
	}
	var row models.AgendaItem
	if err := h.db.First(&row, "id = ? AND lawyer_id = ?", itemUUID, lawyerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	return &row, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
