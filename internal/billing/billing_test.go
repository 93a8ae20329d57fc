package billing

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

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
	if err := db.AutoMigrate(&models.User{}, &models.Notification{}, &models.CreditTopUp{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	credit_top_ups,
	notifications,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

func newTestApp(db *gorm.DB, userID uuid.UUID, role models.Role) *fiber.App {
	hub := stream.NewHub()
	h := NewHandler(db, hub, notify.New(db, hub))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		c.Locals("role", string(role))
		return c.Next()
	})
	app.Post("/api/credits/purchase", h.PurchaseCredits)
	app.Post("/api/premium/subscribe", h.SubscribePremium)
	app.Patch("/api/admin/users/:id/verification", h.SetVerification)
	app.Patch("/api/admin/users/:id/premium", h.SetPremium)
	return app
}

func seedLawyer(t *testing.T, db *gorm.DB, balance int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Create(&models.User{
		ID: id, Email: "l_" + id.String()[:8] + "@x.com",
		PasswordHash: "x", Role: models.RoleLawyer, Name: "Dr. Costa",
		Balance: balance,
	}).Error; err != nil {
		t.Fatal(err)
	}
	return id
}

func post(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// Replaying a purchase with the same payment reference credits only once.
func Test_Purchase_ReferenceIdempotent(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedLawyer(t, db, 0)
	app := newTestApp(db, lawyerID, models.RoleLawyer)

	body := `{"amount":30,"reference":"pay_abc123"}`
	status, out := post(t, app, "POST", "/api/credits/purchase", body)
	if status != 200 || out["credited"] != true {
		t.Fatalf("first purchase: status %d, body %v", status, out)
	}

	status, out = post(t, app, "POST", "/api/credits/purchase", body)
	if status != 200 || out["credited"] != false {
		t.Fatalf("replay: status %d, body %v", status, out)
	}

	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Balance != 30 {
		t.Fatalf("balance %d, want 30", u.Balance)
	}

	var topups int64
	if err := db.Model(&models.CreditTopUp{}).
		Where("lawyer_id = ?", lawyerID).Count(&topups).Error; err != nil {
		t.Fatal(err)
	}
	if topups != 1 {
		t.Fatalf("top-up rows %d, want 1", topups)
	}
}

// Purchases without a reference always credit.
func Test_Purchase_NoReference_AlwaysCredits(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedLawyer(t, db, 0)
	app := newTestApp(db, lawyerID, models.RoleLawyer)

	for i := 0; i < 2; i++ {
		if status, _ := post(t, app, "POST", "/api/credits/purchase", `{"amount":10}`); status != 200 {
			t.Fatalf("status %d", status)
		}
	}

	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if u.Balance != 20 {
		t.Fatalf("balance %d, want 20", u.Balance)
	}
}

// The premium bonus lands exactly once; a second subscribe changes nothing.
func Test_SubscribePremium_BonusOnce(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedLawyer(t, db, 5)
	app := newTestApp(db, lawyerID, models.RoleLawyer)

	status, out := post(t, app, "POST", "/api/premium/subscribe", "")
	if status != 200 || out["balance"].(float64) != 25 {
		t.Fatalf("first subscribe: status %d, body %v", status, out)
	}

	status, out = post(t, app, "POST", "/api/premium/subscribe", "")
	if status != 200 || out["balance"].(float64) != 25 {
		t.Fatalf("repeat subscribe: status %d, body %v", status, out)
	}

	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if !u.IsPremium || u.Balance != 25 {
		t.Fatalf("premium=%v balance=%d", u.IsPremium, u.Balance)
	}

	var cnt int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND title = ?", lawyerID, "Bem-vindo ao SocialJuris PRO").Count(&cnt)
	if cnt != 1 {
		t.Fatalf("welcome notifications %d, want 1", cnt)
	}
}

// Flipping verification notifies the lawyer with the matching tone.
func Test_SetVerification_Notifies(t *testing.T) {
	db := openTestDB(t)
	adminID := uuid.New()
	if err := db.Create(&models.User{
		ID: adminID, Email: "a_" + adminID.String()[:8] + "@x.com",
		PasswordHash: "x", Role: models.RoleAdmin,
	}).Error; err != nil {
		t.Fatal(err)
	}
	lawyerID := seedLawyer(t, db, 0)
	app := newTestApp(db, adminID, models.RoleAdmin)

	status, _ := post(t, app, "PATCH", "/api/admin/users/"+lawyerID.String()+"/verification", `{"status":true}`)
	if status != 200 {
		t.Fatalf("status %d", status)
	}
	var u models.User
	if err := db.First(&u, "id = ?", lawyerID).Error; err != nil {
		t.Fatal(err)
	}
	if !u.Verified {
		t.Fatal("lawyer not verified")
	}
	var n models.Notification
	if err := db.First(&n, "user_id = ?", lawyerID).Error; err != nil {
		t.Fatalf("notification missing: %v", err)
	}
	if n.Title != "Perfil Verificado" || n.Type != models.NotifySuccess {
		t.Fatalf("notification %q/%s", n.Title, n.Type)
	}

	status, _ = post(t, app, "PATCH", "/api/admin/users/"+lawyerID.String()+"/verification", `{"status":false}`)
	if status != 200 {
		t.Fatalf("status %d", status)
	}
	var warn models.Notification
	if err := db.First(&warn, "user_id = ? AND title = ?", lawyerID, "Verificação Suspensa").Error; err != nil {
		t.Fatalf("suspension notification missing: %v", err)
	}
	if warn.Type != models.NotifyWarning {
		t.Fatalf("type %s, want warning", warn.Type)
	}
}
