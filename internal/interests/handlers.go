package interests

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/notify"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
)

// InterestCost is the fixed credit debit for expressing interest in a case.
const InterestCost = 5

type Handler struct {
	db       *gorm.DB
	hub      *stream.Hub
	notifier *notify.Notifier
}

func NewHandler(db *gorm.DB, hub *stream.Hub, notifier *notify.Notifier) *Handler {
	return &Handler{db: db, hub: hub, notifier: notifier}
}

/* ============================ Express interest ========================== */

// @Summary      Express interest
// @Description  Debits 5 credits and records the interest in one transaction; the case's client is notified
// @Tags         interests
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "case id (uuid)"
// @Success      201  {object}  map[string]any  "debited, balance"
// @Failure      402  {object}  models.ErrorResponse  "insufficient balance"
// @Failure      409  {object}  models.ErrorResponse  "already interested / case not open"
// @Router       /cases/{id}/interest [post]
func (h *Handler) Express(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	caseID := c.Params("id")
	caseUUID, err := uuid.Parse(caseID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid case id")
	}

	// Cheap pre-check so an underfunded lawyer is rejected before any write.
	var lawyer models.User
	if err := h.db.First(&lawyer, "id = ?", lawyerUUID).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	if lawyer.Balance < InterestCost {
		return fiber.NewError(fiber.StatusPaymentRequired, "insufficient balance")
	}

	var (
		cs           models.Case
		newBalance   int
		interest     models.CaseInterest
		notifyClient func()
	)

	// Debit and insert commit together or not at all: no compensating
	// rollback, no crash window between the two writes.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cs, "id = ?", caseUUID).Error; err != nil {
			return err
		}
		if cs.Status != models.CaseOpen {
			return fiber.NewError(fiber.StatusConflict, "case is not open")
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&lawyer, "id = ?", lawyerUUID).Error; err != nil {
			return err
		}
		if lawyer.Balance < InterestCost {
			return fiber.NewError(fiber.StatusPaymentRequired, "insufficient balance")
		}
		newBalance = lawyer.Balance - InterestCost

		if err := tx.Model(&models.User{}).Where("id = ?", lawyerUUID).
			Update("balance", newBalance).Error; err != nil {
			return err
		}

		interest = models.CaseInterest{CaseID: caseUUID, LawyerID: lawyerUUID}
		if err := tx.Create(&interest).Error; err != nil {
			// Unique (case_id, lawyer_id) index: at most one interest per pair.
			if strings.Contains(err.Error(), "idx_case_lawyer_interest") ||
				strings.Contains(err.Error(), "duplicate key") {
				return fiber.NewError(fiber.StatusConflict, "interest already recorded for this case")
			}
			return err
		}

		// The row commits with the interest; the event goes out after.
		notifyClient = h.notifier.SendTx(tx, cs.ClientID,
			"Nova Proposta",
			fmt.Sprintf("O Dr(a). %s manifestou interesse no seu caso.", lawyer.Name),
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

	notifyClient()
	h.hub.Publish(stream.Event{Table: "case_interests", Action: stream.ActionInsert, ID: interest.ID.String()})
	h.hub.Publish(stream.Event{Table: "profiles", Action: stream.ActionUpdate, ID: lawyerUUID.String()}, lawyerUUID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"debited": InterestCost,
		"balance": newBalance,
	})
}

/* =============================== My interests =========================== */

// @Summary      List my interests
// @Tags         interests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.CaseInterest
// @Router       /interests/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)

	var rows []models.CaseInterest
	if err := h.db.Where("lawyer_id = ?", lawyerID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if rows == nil {
		rows = []models.CaseInterest{}
	}
	return c.JSON(rows)
}
