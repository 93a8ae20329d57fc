package cases

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/notify"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
	"github.com/socialjuris/socialjuris-backend/pkg/sanitize"
	"github.com/socialjuris/socialjuris-backend/pkg/validation"
)

// ===== DTOs =====

type CreateCaseRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"required,max=4000"`
	Area        string `json:"area" validate:"required,max=40"`
	City        string `json:"city" validate:"omitempty,max=80"`
	UF          string `json:"uf" validate:"omitempty,uf"`
	Complexity  string `json:"complexity" validate:"omitempty,oneof=Baixa Média Alta"`
}

type HireRequest struct {
	LawyerID string `json:"lawyer_id" validate:"required,uuid"`
}

type CloseRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// CaseView is a Case with the interested-lawyer join denormalized in, the
// shape the dashboards consume.
type CaseView struct {
	models.Case
	InterestedLawyers []models.User `json:"interested_lawyers"`
}

type Handler struct {
	db       *gorm.DB
	hub      *stream.Hub
	notifier *notify.Notifier
}

func NewHandler(db *gorm.DB, hub *stream.Hub, notifier *notify.Notifier) *Handler {
	return &Handler{db: db, hub: hub, notifier: notifier}
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

// participants returns the users who own the case conversation.
func participants(cs *models.Case) []uuid.UUID {
	ids := []uuid.UUID{cs.ClientID}
	if cs.LawyerID != nil {
		ids = append(ids, *cs.LawyerID)
	}
	return ids
}

// publishCase emits a change event for the case row. OPEN cases broadcast
// (every lawyer's marketplace mirror holds them); engaged cases go to the
// participants only.
func (h *Handler) publishCase(cs *models.Case, action stream.Action) {
	evt := stream.Event{Table: "cases", Action: action, ID: cs.ID.String()}
	if cs.Status == models.CaseOpen {
		h.hub.Publish(evt)
		return
	}
	h.hub.Publish(evt, participants(cs)...)
}

/* =============================== Create ================================= */

// @Summary      Create case
// @Description  Client publishes a new case; the fee comes from the complexity tier
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateCaseRequest  true  "Case payload"
// @Success      201  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	clientUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	complexity := in.Complexity
	if complexity == "" {
		complexity = "Média"
	}
	price := PriceForComplexity(complexity)

	cs := models.Case{
		ClientID:    clientUUID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Area:        strings.TrimSpace(in.Area),
		City:        strings.TrimSpace(in.City),
		UF:          strings.ToUpper(strings.TrimSpace(in.UF)),
		Status:      models.CaseOpen,
		Complexity:  complexity,
		Price:       price,
		// Payment capture is external; the fee is considered settled here.
		IsPaid: true,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cs).Error; err != nil {
			return err
		}
		msg := models.Message{
			CaseID:   cs.ID,
			SenderID: clientUUID,
			Content:  fmt.Sprintf("Caso criado com sucesso. Taxa de publicação (R$ %.2f) confirmada.", price),
			Type:     models.MessageSystem,
		}
		return tx.Create(&msg).Error
	})
	if err != nil {
		return fiber.ErrInternalServerError
	}

	h.publishCase(&cs, stream.ActionInsert)
	return c.Status(fiber.StatusCreated).JSON(cs)
}

/* ================================ List ================================== */

// @Summary      List cases
// @Description  Role-scoped mirror: clients see their own cases, lawyers see open cases plus their engagements, admins see all
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  CaseView
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	role := auth.MustRole(c)

	q := h.db.Model(&models.Case{})
	switch models.Role(role) {
	case models.RoleClient:
		q = q.Where("client_id = ?", userID)
	case models.RoleLawyer:
		q = q.Where("status = ? OR lawyer_id = ?", models.CaseOpen, userID)
	case models.RoleAdmin:
		// all cases
	default:
		return fiber.ErrForbidden
	}

	var list []models.Case
	if err := q.
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC") }).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	views, err := h.attachInterests(list)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(views)
}

// attachInterests joins case_interests to profiles per case. Interests whose
// profile no longer resolves are dropped, not surfaced as errors.
func (h *Handler) attachInterests(list []models.Case) ([]CaseView, error) {
	views := make([]CaseView, 0, len(list))
	if len(list) == 0 {
		return views, nil
	}

	caseIDs := make([]uuid.UUID, 0, len(list))
	for _, cs := range list {
		caseIDs = append(caseIDs, cs.ID)
	}

	var interests []models.CaseInterest
	if err := h.db.Where("case_id IN ?", caseIDs).Find(&interests).Error; err != nil {
		return nil, err
	}

	lawyerIDs := make([]uuid.UUID, 0, len(interests))
	for _, in := range interests {
		lawyerIDs = append(lawyerIDs, in.LawyerID)
	}

	profiles := map[uuid.UUID]models.User{}
	if len(lawyerIDs) > 0 {
		var users []models.User
		if err := h.db.Where("id IN ?", lawyerIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			profiles[u.ID] = u
		}
	}

	byCase := map[uuid.UUID][]models.User{}
	for _, in := range interests {
		if u, ok := profiles[in.LawyerID]; ok {
			byCase[in.CaseID] = append(byCase[in.CaseID], u)
		}
	}

	for _, cs := range list {
		if cs.Messages == nil {
			cs.Messages = []models.Message{}
		}
		lawyers := byCase[cs.ID]
		if lawyers == nil {
			lawyers = []models.User{}
		}
		views = append(views, CaseView{Case: cs, InterestedLawyers: lawyers})
	}
	return views, nil
}

/* =============================== Detail ================================= */

// @Summary      Case detail
// @Description  Owner, assigned lawyer, admin, or (while OPEN) any lawyer
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "case id (uuid)"
// @Success      200  {object}  CaseView
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) GetDetail(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	role := auth.MustRole(c)
	id := c.Params("id")

	var cs models.Case
	err := h.db.
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp ASC") }).
		First(&cs, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	allowed := role == string(models.RoleAdmin) ||
		cs.ClientID.String() == userID ||
		(cs.LawyerID != nil && cs.LawyerID.String() == userID) ||
		(role == string(models.RoleLawyer) && cs.Status == models.CaseOpen)
	if !allowed {
		return fiber.ErrForbidden
	}

	views, err := h.attachInterests([]models.Case{cs})
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(views[0])
}

/* ============================= Marketplace ============================== */

type MarketCaseItem struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Area          string    `json:"area"`
	City          string    `json:"city"`
	UF            string    `json:"uf"`
	Complexity    string    `json:"complexity"`
	CreatedAt     time.Time `json:"created_at"`
	Preview       string    `json:"preview"`
	HasMyInterest bool      `json:"has_my_interest"`
}

type PageMarketCases struct {
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Total    int64            `json:"total"`
	Pages    int              `json:"pages"`
	Items    []MarketCaseItem `json:"items"`
}

// @Summary      Marketplace (anonymized)
// @Description  Lawyer browses OPEN cases with PII-redacted previews
// @Tags         marketplace
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        area      query string false "area"
// @Param        uf        query string false "state code"
// @Success      200  {object}  PageMarketCases
// @Failure      401  {object}  models.ErrorResponse
// @Router       /marketplace [get]
func (h *Handler) Marketplace(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)
	page, size := parsePage(c)
	area := strings.TrimSpace(c.Query("area"))
	uf := strings.ToUpper(strings.TrimSpace(c.Query("uf")))

	dbq := h.db.Model(&models.Case{}).Where("status = ?", models.CaseOpen)
	if area != "" {
		dbq = dbq.Where("area = ?", area)
	}
	if uf != "" {
		dbq = dbq.Where("uf = ?", uf)
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var list []models.Case
	if err := dbq.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	// One IN query instead of per-case lookups for the my-interest flags.
	caseIDs := make([]uuid.UUID, 0, len(list))
	for _, cs := range list {
		caseIDs = append(caseIDs, cs.ID)
	}
	interestedMap := map[uuid.UUID]bool{}
	if len(caseIDs) > 0 {
		var ids []uuid.UUID
		if err := h.db.
			Model(&models.CaseInterest{}).
			Where("lawyer_id = ? AND case_id IN ?", lawyerID, caseIDs).
			Pluck("case_id", &ids).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		for _, id := range ids {
			interestedMap[id] = true
		}
	}

	items := make([]MarketCaseItem, 0, len(list))
	for _, cs := range list {
		items = append(items, MarketCaseItem{
			ID:            cs.ID,
			Title:         cs.Title,
			Area:          cs.Area,
			City:          cs.City,
			UF:            cs.UF,
			Complexity:    cs.Complexity,
			CreatedAt:     cs.CreatedAt,
			Preview:       sanitize.Summary(sanitize.RedactPII(cs.Description), 240),
			HasMyInterest: interestedMap[cs.ID],
		})
	}

	return c.JSON(PageMarketCases{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items,
	})
}

/* ================================ Hire ================================== */

// @Summary      Hire a lawyer
// @Description  Sole OPEN→ACTIVE transition; the lawyer must hold a recorded interest. Idempotent on repeat calls with the same lawyer.
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "case id (uuid)"
// @Param        payload  body  HireRequest  true  "Chosen lawyer"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /cases/{id}/hire [post]
func (h *Handler) Hire(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	caseID := c.Params("id")
	if _, err := uuid.Parse(caseID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}

	var in HireRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	lawyerID, _ := uuid.Parse(in.LawyerID)

	var cs models.Case
	already := false
	notifyLawyer := func() {}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cs, "id = ?", caseID).Error; err != nil {
			return err
		}
		if cs.ClientID.String() != clientID {
			return fiber.ErrForbidden
		}

		// Repeat call with the same winner: report success, change nothing.
		if cs.Status == models.CaseActive && cs.LawyerID != nil && *cs.LawyerID == lawyerID {
			already = true
			return nil
		}
		if cs.Status != models.CaseOpen {
			return fiber.NewError(fiber.StatusConflict, "case is not open")
		}

		var cnt int64
		if err := tx.Model(&models.CaseInterest{}).
			Where("case_id = ? AND lawyer_id = ?", cs.ID, lawyerID).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt == 0 {
			return fiber.NewError(fiber.StatusConflict, "lawyer has not expressed interest in this case")
		}

		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).
			Updates(map[string]any{
				"lawyer_id": lawyerID,
				"status":    models.CaseActive,
			}).Error; err != nil {
			return err
		}
		cs.LawyerID = &lawyerID
		cs.Status = models.CaseActive

		greeting := models.Message{
			CaseID:   cs.ID,
			SenderID: lawyerID,
			Content:  "Olá, agradeço a oportunidade. Vamos resolver seu caso!",
			Type:     models.MessageSystem,
		}
		if err := tx.Create(&greeting).Error; err != nil {
			return err
		}

		// The row commits with the hire; the event goes out after.
		notifyLawyer = h.notifier.SendTx(tx, lawyerID,
			"Proposta Aceita!",
			"O cliente escolheu você para o caso. O chat está liberado.",
			models.NotifySuccess)
		return nil
	})
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return fe
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if !already {
		notifyLawyer()
		// Broadcast: the case leaves every lawyer's marketplace mirror.
		h.hub.Publish(stream.Event{Table: "cases", Action: stream.ActionUpdate, ID: cs.ID.String()})
	}
	return c.JSON(fiber.Map{"ok": true, "status": cs.Status, "lawyer_id": lawyerID, "already": already})
}

/* ================================ Close ================================= */

// @Summary      Close case
// @Description  Sole ACTIVE→CLOSED transition; records the client's feedback
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string        true  "case id (uuid)"
// @Param        payload  body  CloseRequest  true  "Feedback"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /cases/{id}/close [post]
func (h *Handler) Close(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	caseID := c.Params("id")
	if _, err := uuid.Parse(caseID); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}

	var in CloseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cs models.Case
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cs, "id = ?", caseID).Error; err != nil {
			return err
		}
		if cs.ClientID.String() != clientID {
			return fiber.ErrForbidden
		}
		if cs.Status != models.CaseActive {
			return fiber.NewError(fiber.StatusConflict, "case is not active")
		}

		if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).
			Updates(map[string]any{
				"status":           models.CaseClosed,
				"feedback_rating":  in.Rating,
				"feedback_comment": strings.TrimSpace(in.Comment),
			}).Error; err != nil {
			return err
		}
		cs.Status = models.CaseClosed
		return nil
	})
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			return fe
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	h.publishCase(&cs, stream.ActionUpdate)
	return c.JSON(fiber.Map{"ok": true, "status": cs.Status})
}
