package documents

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/ai"
	"github.com/socialjuris/socialjuris-backend/internal/storage"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.CRMClient{}, &models.Document{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	documents,
	crm_clients,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

// newTestApp wires the handler with storage unconfigured and the AI
// generator disabled, so uploads stay record-only with fallback tags.
func newTestApp(db *gorm.DB, lawyerID uuid.UUID) *fiber.App {
	h := NewHandler(db, stream.NewHub(),
		storage.NewSupabase("", "", ""), ai.NewService(ai.Disabled{}))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", lawyerID.String())
		c.Locals("role", string(models.RoleLawyer))
		return c.Next()
	})
	app.Get("/api/documents", h.List)
	app.Post("/api/documents", h.Upload)
	app.Delete("/api/documents/:id", h.Delete)
	return app
}

func seedLawyer(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Create(&models.User{
		ID: id, Email: "l_" + id.String()[:8] + "@x.com",
		PasswordHash: "x", Role: models.RoleLawyer,
	}).Error; err != nil {
		t.Fatal(err)
	}
	return id
}

func multipartPDF(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	hdr.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

// With no type/tags given, the upload falls back to the default AI tags and
// still records the document even though storage is unconfigured.
func Test_Upload_FallbackTags_NoStorage(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedLawyer(t, db)
	app := newTestApp(db, lawyerID)

	body, ct := multipartPDF(t, "contrato_locacao.pdf", []byte("%PDF-1.4 fake"), nil)
	req := httptest.NewRequest("POST", "/api/documents", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var rec models.Document
	_ = json.NewDecoder(resp.Body).Decode(&rec)
	if rec.Type != "Outros" || rec.Tags != "Documento" {
		t.Fatalf("fallback tags missing: type=%q tags=%q", rec.Type, rec.Tags)
	}
	if rec.Version != 1 {
		t.Fatalf("version %d, want 1", rec.Version)
	}
	if rec.Size == "" {
		t.Fatal("size should be formatted")
	}
}

// Explicit type and tags are kept verbatim; re-uploading the same name bumps
// the version.
func Test_Upload_ExplicitFields_And_Versioning(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedLawyer(t, db)
	app := newTestApp(db, lawyerID)

	upload := func() models.Document {
		body, ct := multipartPDF(t, "peticao.pdf", []byte("%PDF-1.4 fake"),
			map[string]string{"type": "Peticao", "tags": "Trabalhista,Urgente"})
		req := httptest.NewRequest("POST", "/api/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 201 {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var rec models.Document
		_ = json.NewDecoder(resp.Body).Decode(&rec)
		return rec
	}

	first := upload()
	if first.Type != "Peticao" || first.Tags != "Trabalhista,Urgente" {
		t.Fatalf("explicit fields lost: %+v", first)
	}
	second := upload()
	if second.Version != 2 {
		t.Fatalf("version %d, want 2", second.Version)
	}
}

// Linking a CRM client only works for the uploader's own client; someone
// else's client id is refused before anything is written.
func Test_Upload_ClientLink_ScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedLawyer(t, db)
	otherID := seedLawyer(t, db)

	mine := models.CRMClient{LawyerID: lawyerID, Name: "Ana", Type: "PF", Status: "Ativo"}
	theirs := models.CRMClient{LawyerID: otherID, Name: "Beto", Type: "PF", Status: "Ativo"}
	if err := db.Create(&mine).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&theirs).Error; err != nil {
		t.Fatal(err)
	}

	app := newTestApp(db, lawyerID)

	upload := func(clientID string) (int, models.Document) {
		body, ct := multipartPDF(t, "procuracao.pdf", []byte("%PDF-1.4 fake"),
			map[string]string{"type": "Procuracao", "tags": "Civel", "client_id": clientID})
		req := httptest.NewRequest("POST", "/api/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		var rec models.Document
		_ = json.NewDecoder(resp.Body).Decode(&rec)
		return resp.StatusCode, rec
	}

	status, rec := upload(mine.ID.String())
	if status != 201 {
		t.Fatalf("own client: status %d", status)
	}
	if rec.ClientID == nil || *rec.ClientID != mine.ID {
		t.Fatalf("client link missing: %+v", rec.ClientID)
	}

	if status, _ := upload(theirs.ID.String()); status != 400 {
		t.Fatalf("foreign client: status %d, want 400", status)
	}

	var cnt int64
	db.Model(&models.Document{}).Where("lawyer_id = ?", lawyerID).Count(&cnt)
	if cnt != 1 {
		t.Fatalf("documents %d, want 1", cnt)
	}
}

// Another lawyer's document id is invisible: delete answers 404, not 403,
// and the row survives.
func Test_Delete_ScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	owner := seedLawyer(t, db)
	intruder := seedLawyer(t, db)

	doc := models.Document{LawyerID: owner, Name: "seg.pdf", Type: "Outros", Version: 1}
	if err := db.Create(&doc).Error; err != nil {
		t.Fatal(err)
	}

	app := newTestApp(db, intruder)
	req := httptest.NewRequest("DELETE", "/api/documents/"+doc.ID.String(), nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}

	var cnt int64
	db.Model(&models.Document{}).Where("id = ?", doc.ID).Count(&cnt)
	if cnt != 1 {
		t.Fatal("document must survive")
	}
}
