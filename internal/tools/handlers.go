package tools

import (
	"github.com/gofiber/fiber/v2"

	"github.com/socialjuris/socialjuris-backend/internal/ai"
	"github.com/socialjuris/socialjuris-backend/internal/cases"
	"github.com/socialjuris/socialjuris-backend/pkg/validation"
)

// Handler serves the stateless AI tool screens. Nothing here touches the
// database; every response is safe to retry.
type Handler struct {
	ai *ai.Service
}

func NewHandler(svc *ai.Service) *Handler {
	return &Handler{ai: svc}
}

/* ============================= Case analysis ============================ */

type AnalyzeRequest struct {
	Description string `json:"description" validate:"required,min=10,max=8000"`
}

// @Summary      Analyze case description
// @Description  AI triage for pre-filling case creation; includes the computed publication price
// @Tags         tools
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  AnalyzeRequest  true  "Free-text description"
// @Success      200  {object}  map[string]any  "area, title, summary, complexity, price"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /cases/analyze [post]
func (h *Handler) AnalyzeCase(c *fiber.Ctx) error {
	var in AnalyzeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	res := h.ai.AnalyzeCase(c.Context(), in.Description)
	return c.JSON(fiber.Map{
		"area":       res.Area,
		"title":      res.Title,
		"summary":    res.Summary,
		"complexity": res.Complexity,
		"price":      cases.PriceForComplexity(res.Complexity),
	})
}

/* ================================ Intake ================================ */

type IntakeRequest struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

// @Summary      Guided intake diagnosis
// @Tags         tools
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  IntakeRequest  true  "Question/answer pairs"
// @Success      200  {object}  ai.IntakeDiagnosis
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /tools/intake [post]
func (h *Handler) Intake(c *fiber.Ctx) error {
	var in IntakeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	return c.JSON(h.ai.DiagnoseIntake(c.Context(), in.Answers))
}

/* ============================= Jurisprudence ============================ */

type JurisprudenceRequest struct {
	Query string `json:"query" validate:"required,min=3,max=500"`
}

// @Summary      Jurisprudence search
// @Description  Synthesized precedent summaries; an empty list means no hits
// @Tags         tools
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  JurisprudenceRequest  true  "Search query"
// @Success      200  {array}  ai.JurisprudenceHit
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /tools/jurisprudence [post]
func (h *Handler) Jurisprudence(c *fiber.Ctx) error {
	var in JurisprudenceRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	return c.JSON(h.ai.SearchJurisprudence(c.Context(), in.Query))
}

/* ================================ Drafts ================================ */

type DraftRequest struct {
	Type          string `json:"type" validate:"required,max=100"`
	ClientName    string `json:"client_name" validate:"omitempty,max=200"`
	OpposingParty string `json:"opposing_party" validate:"omitempty,max=200"`
	Facts         string `json:"facts" validate:"required,min=10,max=8000"`
	Tone          string `json:"tone" validate:"omitempty,oneof=Formal Conciliador Enérgico"`
}

// @Summary      Generate legal draft
// @Tags         tools
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  DraftRequest  true  "Draft parameters"
// @Success      200  {object}  map[string]string  "content"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /tools/draft [post]
func (h *Handler) Draft(c *fiber.Ctx) error {
	var in DraftRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	content := h.ai.Draft(c.Context(), ai.DraftRequest{
		Type:          in.Type,
		ClientName:    in.ClientName,
		OpposingParty: in.OpposingParty,
		Facts:         in.Facts,
		Tone:          in.Tone,
	})
	return c.JSON(fiber.Map{"content": content})
}
