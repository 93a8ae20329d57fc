package auth

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

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
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE").Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

func newTestApp(db *gorm.DB, adminEmail string, autoconfirm bool) *fiber.App {
	h := NewHandler(db, stream.NewHub(), adminEmail, autoconfirm)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/signup", h.Signup)
	app.Post("/api/login", h.Login)
	return app
}

func call(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// Lawyer signups start unverified with zero balance; clients come verified.
func Test_Signup_RoleConditionalDefaults(t *testing.T) {
	db := openTestDB(t)
	app := newTestApp(db, "admin@socialjuris.com", true)

	status, out := call(t, app, "/api/signup",
		`{"role":"LAWYER","name":"Dr. Reis","email":"reis@x.com","password":"secret1","oab":"123456/SP"}`)
	if status != 201 || out["token"] == nil {
		t.Fatalf("lawyer signup: status %d, body %v", status, out)
	}

	var lawyer models.User
	if err := db.First(&lawyer, "email = ?", "reis@x.com").Error; err != nil {
		t.Fatal(err)
	}
	if lawyer.Verified || lawyer.Balance != 0 {
		t.Fatalf("lawyer defaults wrong: verified=%v balance=%d", lawyer.Verified, lawyer.Balance)
	}
	if lawyer.OAB != "123456/SP" {
		t.Fatalf("oab %q", lawyer.OAB)
	}

	status, _ = call(t, app, "/api/signup",
		`{"role":"CLIENT","name":"Ana","email":"Ana@X.com","password":"secret1"}`)
	if status != 201 {
		t.Fatalf("client signup status %d", status)
	}
	var client models.User
	if err := db.First(&client, "email = ?", "ana@x.com").Error; err != nil {
		t.Fatalf("email should be lowercased: %v", err)
	}
	if !client.Verified {
		t.Fatal("client should be auto-verified")
	}
}

func Test_Signup_DuplicateEmail_Conflict(t *testing.T) {
	db := openTestDB(t)
	app := newTestApp(db, "admin@socialjuris.com", true)

	body := `{"role":"CLIENT","name":"Ana","email":"dup@x.com","password":"secret1"}`
	if status, _ := call(t, app, "/api/signup", body); status != 201 {
		t.Fatal("first signup failed")
	}
	if status, _ := call(t, app, "/api/signup", body); status != 409 {
		t.Fatal("duplicate email should be 409")
	}
}

// Without autoconfirm the account is created pending and login is refused
// with the dedicated code.
func Test_Signup_PendingConfirmation(t *testing.T) {
	db := openTestDB(t)
	app := newTestApp(db, "admin@socialjuris.com", false)

	status, out := call(t, app, "/api/signup",
		`{"role":"CLIENT","name":"Ana","email":"pend@x.com","password":"secret1"}`)
	if status != 201 || out["pending"] != true {
		t.Fatalf("status %d, body %v", status, out)
	}

	status, out = call(t, app, "/api/login", `{"email":"pend@x.com","password":"secret1"}`)
	if status != 403 || out["code"] != "EMAIL_NOT_CONFIRMED" {
		t.Fatalf("status %d, body %v", status, out)
	}
}

func Test_Login_WrongPassword_Unauthorized(t *testing.T) {
	db := openTestDB(t)
	app := newTestApp(db, "admin@socialjuris.com", true)

	call(t, app, "/api/signup", `{"role":"CLIENT","name":"Ana","email":"login@x.com","password":"secret1"}`)
	status, _ := call(t, app, "/api/login", `{"email":"login@x.com","password":"wrong"}`)
	if status != 401 {
		t.Fatalf("status %d, want 401", status)
	}
}

// First login on the reserved admin address provisions the admin profile.
func Test_Login_BootstrapsAdmin(t *testing.T) {
	db := openTestDB(t)
	app := newTestApp(db, "admin@socialjuris.com", true)

	status, out := call(t, app, "/api/login", `{"email":"admin@socialjuris.com","password":"supersecret"}`)
	if status != 200 || out["role"] != "ADMIN" {
		t.Fatalf("status %d, body %v", status, out)
	}

	var admin models.User
	if err := db.First(&admin, "email = ?", "admin@socialjuris.com").Error; err != nil {
		t.Fatal(err)
	}
	if admin.Role != models.RoleAdmin || !admin.Verified || !admin.IsPremium {
		t.Fatalf("admin profile wrong: %+v", admin)
	}

	// Second login authenticates against the provisioned row.
	if status, _ := call(t, app, "/api/login", `{"email":"admin@socialjuris.com","password":"supersecret"}`); status != 200 {
		t.Fatal("second admin login failed")
	}
	if status, _ := call(t, app, "/api/login", `{"email":"admin@socialjuris.com","password":"other"}`); status != 401 {
		t.Fatal("wrong admin password should be 401")
	}
}

func Test_Signup_InvalidOAB_ValidationError(t *testing.T) {
	db := openTestDB(t)
	app := newTestApp(db, "admin@socialjuris.com", true)

	status, out := call(t, app, "/api/signup",
		`{"role":"LAWYER","name":"Dr. Reis","email":"oab@x.com","password":"secret1","oab":"not-an-oab"}`)
	if status != 400 {
		t.Fatalf("status %d, want 400", status)
	}
	if out["errors"] == nil {
		t.Fatalf("want field errors, got %v", out)
	}
}
