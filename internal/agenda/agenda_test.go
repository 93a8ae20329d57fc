package agenda

import (
	"context"
	"os"
	"testing"
	"time"

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
	if err := db.AutoMigrate(&models.User{}, &models.AgendaItem{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	notifications,
	agenda_items,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
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

func seedItem(t *testing.T, db *gorm.DB, lawyerID uuid.UUID, title, urgency string, due time.Time, status models.AgendaStatus) {
	t.Helper()
	if err := db.Create(&models.AgendaItem{
		LawyerID: lawyerID,
		Title:    title,
		Date:     due,
		Type:     "Judicial",
		Urgency:  urgency,
		Status:   status,
	}).Error; err != nil {
		t.Fatal(err)
	}
}

// The sweep warns once per due high-urgency item; reruns add nothing.
func Test_SweepDeadlines_WarnsOnceWithinWindow(t *testing.T) {
	db := openTestDB(t)
	lawyerID := seedLawyer(t, db)

	now := time.Now()
	seedItem(t, db, lawyerID, "Audiência trabalhista", "Alta", now.Add(24*time.Hour), models.AgendaPending)
	seedItem(t, db, lawyerID, "Prazo recursal", "Alta", now.Add(72*time.Hour), models.AgendaPending)
	seedItem(t, db, lawyerID, "Reunião interna", "Baixa", now.Add(24*time.Hour), models.AgendaPending)
	seedItem(t, db, lawyerID, "Protocolo feito", "Alta", now.Add(24*time.Hour), models.AgendaDone)

	hub := stream.NewHub()
	h := NewHandler(db, hub, notify.New(db, hub))

	for i := 0; i < 3; i++ {
		if err := h.SweepDeadlines(context.Background()); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}

	var warns []models.Notification
	if err := db.Where("user_id = ? AND title = ?", lawyerID, "Prazo Próximo!").Find(&warns).Error; err != nil {
		t.Fatal(err)
	}
	if len(warns) != 1 {
		t.Fatalf("warnings %d, want exactly 1", len(warns))
	}
	if warns[0].Type != models.NotifyWarning {
		t.Fatalf("type %s, want warning", warns[0].Type)
	}
}
