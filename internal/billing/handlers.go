package billing

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
	"github.com/socialjuris/socialjuris-backend/pkg/validation"
)

// PremiumBonus is granted once, on the upgrade that sets the premium flag.
const PremiumBonus = 20

type Handler struct {
	db       *gorm.DB
	hub      *stream.Hub
	notifier *notify.Notifier
}

func NewHandler(db *gorm.DB, hub *stream.Hub, notifier *notify.Notifier) *Handler {
	return &Handler{db: db, hub: hub, notifier: notifier}
}

/* ============================ Purchase credits ========================== */

type PurchaseRequest struct {
	Amount int `json:"amount" validate:"required,gte=1,lte=10000"`
	// External payment id; retried calls with the same reference credit once.
	Reference string `json:"reference" validate:"omitempty,max=120"`
}

// @Summary      Purchase credits
// @Description  Adds credits to the lawyer's balance; payment capture happens externally
// @Tags         billing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  PurchaseRequest  true  "Amount and optional payment reference"
// @Success      200  {object}  map[string]any  "balance"
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /credits/purchase [post]
func (h *Handler) PurchaseCredits(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	var in PurchaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var newBalance int
	credited := true

	err = h.db.Transaction(func(tx *gorm.DB) error {
		topup := models.CreditTopUp{LawyerID: lawyerUUID, Amount: in.Amount}
		if ref := strings.TrimSpace(in.Reference); ref != "" {
			topup.Reference = &ref
		}
		// ON CONFLICT DO NOTHING keeps the transaction usable on a replay;
		// a raised unique violation would abort it and doom the commit.
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&topup)
		if res.Error != nil {
			return res.Error
		}
		if topup.Reference != nil && res.RowsAffected == 0 {
			// Same reference already credited: idempotent replay.
			credited = false
			return nil
		}

		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&u, "id = ?", lawyerUUID).Error; err != nil {
			return err
		}
		newBalance = u.Balance + in.Amount
		return tx.Model(&models.User{}).Where("id = ?", lawyerUUID).
			Update("balance", newBalance).Error
	})
	if err != nil {
		return fiber.ErrInternalServerError
	}

	if !credited {
		var u models.User
		if err := h.db.First(&u, "id = ?", lawyerUUID).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		return c.JSON(fiber.Map{"ok": true, "balance": u.Balance, "credited": false})
	}

	h.hub.Publish(stream.Event{Table: "profiles", Action: stream.ActionUpdate, ID: lawyerUUID.String()}, lawyerUUID)
	return c.JSON(fiber.Map{"ok": true, "balance": newBalance, "credited": true})
}

/* =========================== Subscribe premium ========================== */

// @Summary      Subscribe premium
// @Description  Sets the premium flag and grants the one-time bonus; repeat calls change nothing
// @Tags         billing
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /premium/subscribe [post]
func (h *Handler) SubscribePremium(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	upgraded := false
	var newBalance int

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&u, "id = ?", lawyerUUID).Error; err != nil {
			return err
		}
		if u.IsPremium {
			newBalance = u.Balance
			return nil
		}
		upgraded = true
		newBalance = u.Balance + PremiumBonus
		return tx.Model(&models.User{}).Where("id = ?", lawyerUUID).
			Updates(map[string]any{
				"is_premium": true,
				"balance":    newBalance,
			}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrUnauthorized
		}
		return fiber.ErrInternalServerError
	}

	if upgraded {
		h.notifier.Send(lawyerUUID,
			"Bem-vindo ao SocialJuris PRO",
			fmt.Sprintf("Premium liberado + %d Juris bônus!", PremiumBonus),
			models.NotifySuccess)
		h.hub.Publish(stream.Event{Table: "profiles", Action: stream.ActionUpdate, ID: lawyerUUID.String()}, lawyerUUID)
	}
	return c.JSON(fiber.Map{"ok": true, "is_premium": true, "balance": newBalance})
}

/* ============================= Admin toggles ============================ */

type FlagRequest struct {
	Status *bool `json:"status" validate:"required"`
}

// @Summary      Set lawyer verification (admin)
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "user id (uuid)"
// @Param        payload  body  FlagRequest  true  "New status"
// @Success      200  {object}  map[string]bool
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/users/{id}/verification [patch]
func (h *Handler) SetVerification(c *fiber.Ctx) error {
	return h.setFlag(c, "verified", func(userID uuid.UUID, status bool) {
		if status {
			h.notifier.Send(userID, "Perfil Verificado", "Sua conta foi aprovada.", models.NotifySuccess)
		} else {
			h.notifier.Send(userID, "Verificação Suspensa", "Seu acesso foi temporariamente suspenso.", models.NotifyWarning)
		}
	})
}

// @Summary      Set premium flag (admin)
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "user id (uuid)"
// @Param        payload  body  FlagRequest  true  "New status"
// @Success      200  {object}  map[string]bool
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/users/{id}/premium [patch]
func (h *Handler) SetPremium(c *fiber.Ctx) error {
	return h.setFlag(c, "is_premium", nil)
}

func (h *Handler) setFlag(c *fiber.Ctx, column string, notifyFn func(uuid.UUID, bool)) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	var in FlagRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	res := h.db.Model(&models.User{}).Where("id = ?", userID).Update(column, *in.Status)
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}

	if notifyFn != nil {
		notifyFn(userID, *in.Status)
	}
	h.hub.Publish(stream.Event{Table: "profiles", Action: stream.ActionUpdate, ID: userID.String()})
	return c.JSON(fiber.Map{"ok": true})
}
