package documents

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/ai"
	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/storage"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
)

type Handler struct {
	db  *gorm.DB
	hub *stream.Hub
	sb  *storage.Supabase
	ai  *ai.Service
}

func NewHandler(db *gorm.DB, hub *stream.Hub, sb *storage.Supabase, svc *ai.Service) *Handler {
	return &Handler{db: db, hub: hub, sb: sb, ai: svc}
}

// @Summary      List documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        q     query  string  false  "name search"
// @Param        type  query  string  false  "document type"
// @Success      200  {array}  models.Document
// @Router       /documents [get]
func (h *Handler) List(c *fiber.Ctx) error {
	lawyerID := auth.MustUserID(c)

	q := h.db.Where("lawyer_id = ?", lawyerID)
	if term := c.Query("q"); term != "" {
		q = q.Where("name ILIKE ?", "%"+term+"%")
	}
	if t := c.Query("type"); t != "" {
		q = q.Where("type = ?", t)
	}
	if cid := c.Query("client_id"); cid != "" {
		q = q.Where("client_id = ?", cid)
	}

	var rows []models.Document
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if rows == nil {
		rows = []models.Document{}
	}
	return c.JSON(rows)
}

// Upload godoc
// @Summary      Upload document (PDF/PNG/DOCX)
// @Description  Stores the file and its record; type and tags are inferred by AI when omitted
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file       formData  file    true   "PDF/PNG/DOCX, max 10MB"
// @Param        type       formData  string  false  "document type"
// @Param        tags       formData  string  false  "comma-separated tags"
// @Param        client_id  formData  string  false  "linked CRM client (uuid)"
// @Success      201  {object}  models.Document
// @Failure      400  {object}  models.ErrorResponse
// @Router       /documents [post]
func (h *Handler) Upload(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required (use key: file)")
	}
	if fh.Size <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty file")
	}
	if fh.Size > 10*1024*1024 {
		return fiber.NewError(fiber.StatusBadRequest, "max 10MB per file")
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	switch ct {
	case "application/pdf", "image/png",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		// ok
	default:
		return fiber.NewError(fiber.StatusBadRequest, "only PDF, PNG or DOCX are allowed")
	}

	docType := strings.TrimSpace(c.FormValue("type"))
	tags := strings.TrimSpace(c.FormValue("tags"))
	if docType == "" || tags == "" {
		inferred := h.ai.AutoTag(c.Context(), fh.Filename)
		if docType == "" {
			docType = inferred.Type
		}
		if tags == "" {
			tags = strings.Join(inferred.Tags, ",")
		}
	}

	var clientID *uuid.UUID
	if raw := c.FormValue("client_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid client id")
		}
		var cnt int64
		if err := h.db.Model(&models.CRMClient{}).
			Where("id = ? AND lawyer_id = ?", parsed, lawyerUUID).
			Count(&cnt).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		if cnt == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "unknown client id")
		}
		clientID = &parsed
	}

	key := ""
	if h.sb.Enabled() {
		f, err := fh.Open()
		if err != nil {
			return fiber.ErrInternalServerError
		}
		defer f.Close()

		key = h.sb.MakeObjectKey(lawyerUUID.String(), fh.Filename)
		if err := h.sb.Upload(key, f, ct, fh.Size); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "storage upload failed")
		}
	}

	// A re-upload of the same name becomes the next version.
	var version int64
	if err := h.db.Model(&models.Document{}).
		Where("lawyer_id = ? AND name = ?", lawyerUUID, fh.Filename).
		Count(&version).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	rec := models.Document{
		LawyerID: lawyerUUID,
		ClientID: clientID,
		Name:     fh.Filename,
		Type:     docType,
		Tags:     tags,
		Version:  int(version) + 1,
		Size:     humanSize(fh.Size),
		Key:      key,
	}
	if err := h.db.Create(&rec).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	h.hub.Publish(stream.Event{Table: "documents", Action: stream.ActionInsert, ID: rec.ID.String()}, lawyerUUID)
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// @Summary      Get signed URL
// @Description  Owner obtains a short-lived download link for the stored object
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "document id (uuid)"
// @Success      200  {object}  map[string]any  "url, expires_in, now"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id}/signed-url [get]
func (h *Handler) SignedDownloadURL(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	rec, err := h.findOwned(c.Params("id"), lawyerUUID)
	if err != nil {
		return err
	}
	if rec.Key == "" || !h.sb.Enabled() {
		return fiber.NewError(fiber.StatusConflict, "document has no stored object")
	}

	url, err := h.sb.SignedURL(rec.Key, 60) // seconds
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"url": url, "expires_in": 60, "now": time.Now().UTC()})
}

// @Summary      Delete document
// @Tags         documents
// @Security     BearerAuth
// @Param        id  path  string  true  "document id (uuid)"
// @Success      204  "no content"
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	lawyerUUID, err := auth.ParseUserID(c)
	if err != nil {
		return err
	}
	rec, err := h.findOwned(c.Params("id"), lawyerUUID)
	if err != nil {
		return err
	}

	if rec.Key != "" && h.sb.Enabled() {
		// Best effort; the record wins over a dangling object.
		_ = h.sb.Delete(rec.Key)
	}
	if err := h.db.Delete(rec).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	h.hub.Publish(stream.Event{Table: "documents", Action: stream.ActionDelete, ID: rec.ID.String()}, lawyerUUID)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) findOwned(id string, lawyerID uuid.UUID) (*models.Document, error) {
	docUUID, err := uuid.Parse(id)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid document id")
	}
	var rec models.Document
	if err := h.db.First(&rec, "id = ? AND lawyer_id = ?", docUUID, lawyerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}
		return nil, fiber.ErrInternalServerError
	}
	return &rec, nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
