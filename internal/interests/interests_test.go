package interests

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/notify"
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
	if err := db.AutoMigrate(
		&models.User{}, &models.Case{}, &models.Message{}, &models.CaseInterest{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	notifications,
	case_interests,
	messages,
	cases,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

func injectAuth(userID uuid.UUID, role string) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		c.Locals("role", role)
		return c.Next()
	}
}

func newTestApp(db *gorm.DB, lawyerID uuid.UUID) *fiber.App {
	app, _ := newTestAppWithHub(db, lawyerID)
	return app
}

func newTestAppWithHub(db *gorm.DB, lawyerID uuid.UUID) (*fiber.App, *stream.Hub) {
	hub := stream.NewHub()
	h := NewHandler(db, hub, notify.New(db, hub))

	app := fiber.New()
	app.Use(injectAuth(lawyerID, string(models.RoleLawyer)))
	app.Get("/api/interests/mine", h.ListMine)
	app.Post("/api/cases/:id/interest", h.Express)
	return app, hub
}

// seed inserts a client, a lawyer with the given balance, and an OPEN case.
func seed(t *testing.T, db *gorm.DB, balance int) (clientID, lawyerID, caseID uuid.UUID) {
	t.Helper()
	clientID, lawyerID, caseID = uuid.New(), uuid.New(), uuid.New()

	if err := db.Create(&models.User{
		ID: clientID, Email: "c_" + clientID.String()[:8] + "@x.com",
		PasswordHash: "x", Role: models.RoleClient, Name: "Ana",
	}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.User{
		ID: lawyerID, Email: "l_" + lawyerID.String()[:8] + "@x.com",
		PasswordHash: "x", Role: models.RoleLawyer, Name: "Dr. Lima",
		Balance: balance, Verified: true,
	}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Case{
		ID: caseID, ClientID: clientID, Title: "Caso", Area: "Cível",
		Status: models.CaseOpen, Complexity: "Média", Price: 4.00, IsPaid: true,
	}).Error; err != nil {
		t.Fatal(err)
	}
	return
}

func express(t *testing.T, app *fiber.App, caseID uuid.UUID) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/cases/"+caseID.String()+"/interest", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

// An underfunded lawyer is rejected with 402 and nothing is written.
func Test_Express_InsufficientBalance_NoWrites(t *testing.T) {
	db := openTestDB(t)
	_, lawyerID, caseID := seed(t, db, 3)

	app := newTestApp(db, lawyerID)
	status, _ := express(t, app, caseID)
	if status != 402 {
		t.Fatalf("status %d, want 402", status)
	}

	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Balance != 3 {
		t.Fatalf("balance changed: %d", u.Balance)
	}
	var cnt int64
	db.Model(&models.CaseInterest{}).Where("case_id = ?", caseID).Count(&cnt)
	if cnt != 0 {
		t.Fatal("interest row must not exist")
	}
}

// Success debits exactly 5 credits, records the interest, and notifies the
// case's client in the same transaction.
func Test_Express_DebitsAndNotifies(t *testing.T) {
	db := openTestDB(t)
	clientID, lawyerID, caseID := seed(t, db, 10)

	app := newTestApp(db, lawyerID)
	status, body := express(t, app, caseID)
	if status != 201 {
		t.Fatalf("status %d, want 201", status)
	}
	if body["debited"].(float64) != 5 || body["balance"].(float64) != 5 {
		t.Fatalf("unexpected body: %v", body)
	}

	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Balance != 5 {
		t.Fatalf("balance %d, want 5", u.Balance)
	}

	var cnt int64
	db.Model(&models.CaseInterest{}).
		Where("case_id = ? AND lawyer_id = ?", caseID, lawyerID).Count(&cnt)
	if cnt != 1 {
		t.Fatalf("interest rows %d, want 1", cnt)
	}

	var n models.Notification
	if err := db.First(&n, "user_id = ?", clientID).Error; err != nil {
		t.Fatalf("client notification missing: %v", err)
	}
	if n.Title != "Nova Proposta" {
		t.Fatalf("title %q", n.Title)
	}
}

// A duplicate interest is refused with 409 and the debit rolls back; the
// balance reflects exactly one paid interest.
func Test_Express_Duplicate_RollsBackDebit(t *testing.T) {
	db := openTestDB(t)
	_, lawyerID, caseID := seed(t, db, 20)

	app := newTestApp(db, lawyerID)
	if status, _ := express(t, app, caseID); status != 201 {
		t.Fatalf("first express status %d", status)
	}
	if status, _ := express(t, app, caseID); status != 409 {
		t.Fatalf("second express status %d, want 409", status)
	}

	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Balance != 15 {
		t.Fatalf("balance %d, want 15 (one debit only)", u.Balance)
	}
	var cnt int64
	db.Model(&models.CaseInterest{}).Where("case_id = ?", caseID).Count(&cnt)
	if cnt != 1 {
		t.Fatalf("interest rows %d, want 1", cnt)
	}
}

// Stream events trail the commit: a successful express delivers the client
// their notification event, while a rolled-back duplicate delivers nothing.
func Test_Express_PublishesOnlyAfterCommit(t *testing.T) {
	db := openTestDB(t)
	clientID, lawyerID, caseID := seed(t, db, 20)

	app, hub := newTestAppWithHub(db, lawyerID)
	events, unsubscribe := hub.Subscribe(clientID)
	defer unsubscribe()

	if status, _ := express(t, app, caseID); status != 201 {
		t.Fatalf("first express status %d", status)
	}

	sawNotification := false
	for done := false; !done; {
		select {
		case evt := <-events:
			if evt.Table == "notifications" && evt.Action == stream.ActionInsert {
				sawNotification = true
			}
		case <-time.After(100 * time.Millisecond):
			done = true
		}
	}
	if !sawNotification {
		t.Fatal("client never received the notification event")
	}

	if status, _ := express(t, app, caseID); status != 409 {
		t.Fatal("duplicate express should be refused")
	}
	select {
	case evt := <-events:
		t.Fatalf("rolled-back mutation leaked event %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

// A case that already moved past OPEN no longer accepts interest.
func Test_Express_CaseNotOpen(t *testing.T) {
	db := openTestDB(t)
	_, lawyerID, caseID := seed(t, db, 20)
	if err := db.Model(&models.Case{}).Where("id = ?", caseID).
		Update("status", models.CaseActive).Error; err != nil {
		t.Fatal(err)
	}

	app := newTestApp(db, lawyerID)
	status, _ := express(t, app, caseID)
	if status != 409 {
		t.Fatalf("status %d, want 409", status)
	}

	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Balance != 20 {
		t.Fatalf("balance changed: %d", u.Balance)
	}
}
