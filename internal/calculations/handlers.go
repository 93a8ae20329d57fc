package calculations

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/ai"
	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
	"github.com/socialjuris/socialjuris-backend/pkg/validation"
)

type Handler struct {
	db  *gorm.DB
	hub *stream.Hub
	ai  *ai.Service
}

func NewHandler(db *gorm.DB, hub *stream.Hub, svc *ai.Service) *Handler {
	return &Handler{db: db, hub: hub, ai: svc}
}

// @Summary      List saved calculations
// @Tags         calculations
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.SavedCalculation
// @Router       /calculations [get]
func (h *Handler) List(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)

	var rows []models.SavedCalculation
	if err := h.db.Where("lawyer_id = ?", lawyerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if rows == nil {
		rows = []models.SavedCalculation{}
	}
	return c.JSON(rows)
}

type RunRequest struct {
	Category string          `json:"category" validate:"required,max=60"`
	Type     string          `json:"type" validate:"required,max=60"`
	Title    string          `json:"title" validate:"omitempty,max=200"`
	Inputs   json.RawMessage `json:"inputs" validate:"required"`
	Save     bool            `json:"save"`
}

// @Summary      Run legal calculator
// @Description  Computes the requested legal math via AI; pass save=true to keep the run
// @Tags         calculations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  RunRequest  true  "Calculator inputs"
// @Success      200  {object}  ai.CalcResult
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /calculations/run [post]
func (h *Handler) Run(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	var in RunRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	result := h.ai.Calculate(c.Context(), in.Category, in.Type, in.Inputs)

	if in.Save {
		raw, err := json.Marshal(result)
		if err != nil {
			return fiber.ErrInternalServerError
		}
		title := in.Title
		if title == "" {
			title = in.Type
		}
		row := models.SavedCalculation{
			LawyerID:   lawyerUUID,
			Category:   in.Category,
			Type:       in.Type,
			Title:      title,
			InputData:  datatypes.JSON(in.Inputs),
			ResultData: datatypes.JSON(raw),
		}
		if err := h.db.Create(&row).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		h.hub.Publish(stream.Event{Table: "saved_calculations", Action: stream.ActionInsert, ID: row.ID.String()}, lawyerUUID)
	}

	return c.JSON(result)
}

type SaveRequest struct {
	Category string          `json:"category" validate:"required,max=60"`
	Type     string          `json:"type" validate:"required,max=60"`
	Title    string          `json:"title" validate:"omitempty,max=200"`
	Inputs   json.RawMessage `json:"inputs" validate:"required"`
	Result   json.RawMessage `json:"result" validate:"required"`
}

// @Summary      Save calculation
// @Description  Persists a calculator run the caller already has in hand
// @Tags         calculations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  SaveRequest  true  "Calculation payload"
// @Success      201  {object}  models.SavedCalculation
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /calculations [post]
func (h *Handler) Save(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	var in SaveRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	title := in.Title
	if title == "" {
		title = in.Type
	}
	row := models.SavedCalculation{
		LawyerID:   lawyerUUID,
		Category:   in.Category,
		Type:       in.Type,
		Title:      title,
		InputData:  datatypes.JSON(in.Inputs),
		ResultData: datatypes.JSON(in.Result),
	}
	if err := h.db.Create(&row).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	h.hub.Publish(stream.Event{Table: "saved_calculations", Action: stream.ActionInsert, ID: row.ID.String()}, lawyerUUID)
	return c.Status(fiber.StatusCreated).JSON(row)
}
