package crm

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
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

type ClientRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	Type        string `json:"type" validate:"required,oneof=PF PJ"`
	CPFCNPJ     string `json:"cpf_cnpj" validate:"omitempty,max=20"`
	RG          string `json:"rg" validate:"omitempty,max=20"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=30"`
	Address     string `json:"address" validate:"omitempty,max=300"`
	Profession  string `json:"profession" validate:"omitempty,max=100"`
	CivilStatus string `json:"civil_status" validate:"omitempty,max=30"`
	Status      string `json:"status" validate:"omitempty,oneof=Prospecção Ativo Inativo Arquivado"`
	Notes       string `json:"notes" validate:"omitempty,max=4000"`
}

// @Summary      List CRM clients
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.CRMClient
// @Router       /crm [get]
func (h *Handler) List(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)

	q := h.db.Where("lawyer_id = ?", lawyerID)
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", s)
	}
	if term := c.Query("q"); term != "" {
		q = q.Where("name ILIKE ?", "%"+term+"%")
	}

	var rows []models.CRMClient
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if rows == nil {
		rows = []models.CRMClient{}
	}
	return c.JSON(rows)
}

// @Summary      Create CRM client
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  ClientRequest  true  "Client data"
// @Success      201  {object}  models.CRMClient
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /crm [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	var in ClientRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if in.Status == "" {
		in.Status = "Prospecção"
	}

	row := models.CRMClient{
		LawyerID:    lawyerUUID,
		Name:        in.Name,
		Type:        in.Type,
		CPFCNPJ:     in.CPFCNPJ,
		RG:          in.RG,
		Email:       in.Email,
		Phone:       in.Phone,
		Address:     in.Address,
		Profession:  in.Profession,
		CivilStatus: in.CivilStatus,
		Status:      in.Status,
		Notes:       in.Notes,
	}
	if err := h.db.Create(&row).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	h.hub.Publish(stream.Event{Table: "crm_clients", Action: stream.ActionInsert, ID: row.ID.String()}, lawyerUUID)
	return c.Status(fiber.StatusCreated).JSON(row)
}

type ClientUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=200"`
	CPFCNPJ     *string `json:"cpf_cnpj" validate:"omitempty,max=20"`
	RG          *string `json:"rg" validate:"omitempty,max=20"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=30"`
	Address     *string `json:"address" validate:"omitempty,max=300"`
	Profession  *string `json:"profession" validate:"omitempty,max=100"`
	CivilStatus *string `json:"civil_status" validate:"omitempty,max=30"`
	Status      *string `json:"status" validate:"omitempty,oneof=Prospecção Ativo Inativo Arquivado"`
	Notes       *string `json:"notes" validate:"omitempty,max=4000"`
}

// @Summary      Update CRM client
// @Tags         crm
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "client id (uuid)"
// @Param        payload  body  ClientUpdateRequest  true  "Fields to change"
// @Success      200  {object}  models.CRMClient
// @Failure      404  {object}  models.ErrorResponse
// @Router       /crm/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	row, err := h.findOwned(c.Params("id"), lawyerUUID)
	if err != nil {
		return err
	}

	var in ClientUpdateRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	updates := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}
	set("name", in.Name)
	set("cpf_cnpj", in.CPFCNPJ)
	set("rg", in.RG)
	set("email", in.Email)
	set("phone", in.Phone)
	set("address", in.Address)
	set("profession", in.Profession)
	set("civil_status", in.CivilStatus)
	set("status", in.Status)
	set("notes", in.Notes)

	if len(updates) > 0 {
		if err := h.db.Model(row).Updates(updates).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}

	h.hub.Publish(stream.Event{Table: "crm_clients", Action: stream.ActionUpdate, ID: row.ID.String()}, lawyerUUID)
	return c.JSON(row)
}

// @Summary      Delete CRM client
// @Tags         crm
// @Security     BearerAuth
// @Param        id  path  string  true  "client id (uuid)"
// @Success      204  "no content"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /crm/{id} [delete]
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
	h.hub.Publish(stream.Event{Table: "crm_clients", Action: stream.ActionDelete, ID: row.ID.String()}, lawyerUUID)
	return c.SendStatus(fiber.StatusNoContent)
}

// @Summary      Score client risk
// @Description  Runs the AI risk assessment over the client record and persists the score
// @Tags         crm
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "client id (uuid)"
// @Success      200  {object}  map[string]any  "risk_score, conversion_probability"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /crm/{id}/risk [post]
func (h *Handler) ScoreRisk(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	row, err := h.findOwned(c.Params("id"), lawyerUUID)
	if err != nil {
		return err
	}

	res := h.ai.AssessRisk(c.Context(), row.Name, row.Status, row.Notes)
	if err := h.db.Model(row).Update("risk_score", res.RiskScore).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	h.hub.Publish(stream.Event{Table: "crm_clients", Action: stream.ActionUpdate, ID: row.ID.String()}, lawyerUUID)
	return c.JSON(fiber.Map{
		"risk_score":             res.RiskScore,
		"conversion_probability": res.ConversionProbability,
	})
}

func (h *Handler) findOwned(id string, lawyerID uuid.UUID) (*models.CRMClient, error) {
	clientUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid client id")
	}
	var row models.CRMClient
	if err := h.db.First(&row, "id = ? AND lawyer_id = ?", clientUUID, lawyerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	return &row, nil
}
