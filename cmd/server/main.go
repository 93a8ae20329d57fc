// @title           SocialJuris API
// @version         1.0
// @description     Legal marketplace API: clients post cases, lawyers spend credits to express interest, clients hire, and lawyers run their practice (CRM, documents, agenda, AI tools).
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/socialjuris/socialjuris-backend/internal/agenda"
	"github.com/socialjuris/socialjuris-backend/internal/ai"
	"github.com/socialjuris/socialjuris-backend/internal/auth"
	"github.com/socialjuris/socialjuris-backend/internal/billing"
	"github.com/socialjuris/socialjuris-backend/internal/calculations"
	"github.com/socialjuris/socialjuris-backend/internal/cases"
	"github.com/socialjuris/socialjuris-backend/internal/crm"
	"github.com/socialjuris/socialjuris-backend/internal/documents"
	"github.com/socialjuris/socialjuris-backend/internal/interests"
	"github.com/socialjuris/socialjuris-backend/internal/notify"
	"github.com/socialjuris/socialjuris-backend/internal/storage"
	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/internal/tools"
	"github.com/socialjuris/socialjuris-backend/pkg/config"
	"github.com/socialjuris/socialjuris-backend/pkg/database"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
)

func main() {
	cfg := config.Load()

	db := database.Init(cfg.DatabaseURL)
	if err := db.AutoMigrate(
		&models.User{}, &models.Case{}, &models.Message{}, &models.CaseInterest{},
		&models.Notification{}, &models.CRMClient{}, &models.Document{},
		&models.AgendaItem{}, &models.SavedCalculation{}, &models.CreditTopUp{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	ctx := context.Background()

	var gen ai.Generator = ai.Disabled{}
	if cfg.GeminiAPIKey != "" {
		gm, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GenModel)
		if err != nil {
			log.Fatal("gemini client:", err)
		}
		defer gm.Close()
		gen = gm
	} else {
		log.Println("GEMINI_API_KEY not set; AI tools serve fallback answers")
	}
	aiSvc := ai.NewService(gen)

	hub := stream.NewHub()
	notifier := notify.New(db, hub)
	sb := storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    12 * 1024 * 1024, // multipart uploads up to 10MB plus overhead
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")

	// Auth & profiles
	authH := auth.NewHandler(db, hub, cfg.AdminEmail, cfg.AuthAutoconfirm)
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Get("/me", auth.RequireAuth(), authH.Me)
	api.Patch("/me", auth.RequireAuth(), authH.UpdateProfile)
	api.Get("/users", auth.RequireAuth(), authH.ListUsers)

	// Realtime stream
	api.Get("/events", auth.RequireAuth(), stream.SSE(hub))

	// Cases & chat
	caseH := cases.NewHandler(db, hub, notifier)
	api.Get("/cases", auth.RequireAuth(), caseH.List)
	api.Post("/cases", auth.RequireAuth(), auth.RequireRole(models.RoleClient), caseH.Create)
	api.Get("/cases/:id", auth.RequireAuth(), caseH.GetDetail)
	api.Post("/cases/:id/hire", auth.RequireAuth(), auth.RequireRole(models.RoleClient), caseH.Hire)
	api.Post("/cases/:id/close", auth.RequireAuth(), auth.RequireRole(models.RoleClient), caseH.Close)
	api.Post("/cases/:id/messages", auth.RequireAuth(), caseH.SendMessage)

	// Marketplace & interests
	api.Get("/marketplace", auth.RequireAuth(), auth.RequireRole(models.RoleLawyer), caseH.Marketplace)
	interestH := interests.NewHandler(db, hub, notifier)
	api.Post("/cases/:id/interest", auth.RequireAuth(), auth.RequireRole(models.RoleLawyer), interestH.Express)
	api.Get("/interests/mine", auth.RequireAuth(), auth.RequireRole(models.RoleLawyer), interestH.ListMine)

	// Notifications
	notifH := notify.NewHandler(db, hub)
	api.Get("/notifications", auth.RequireAuth(), notifH.ListMine)
	api.Patch("/notifications/:id/read", auth.RequireAuth(), notifH.MarkRead)

	// Billing & admin toggles
	billH := billing.NewHandler(db, hub, notifier)
	api.Post("/credits/purchase", auth.RequireAuth(), auth.RequireRole(models.RoleLawyer), billH.PurchaseCredits)
	api.Post("/premium/subscribe", auth.RequireAuth(), auth.RequireRole(models.RoleLawyer), billH.SubscribePremium)
	api.Patch("/admin/users/:id/verification", auth.RequireAuth(), auth.RequireRole(models.RoleAdmin), billH.SetVerification)
	api.Patch("/admin/users/:id/premium", auth.RequireAuth(), auth.RequireRole(models.RoleAdmin), billH.SetPremium)

	// Lawyer workspace
	lawyerOnly := []fiber.Handler{auth.RequireAuth(), auth.RequireRole(models.RoleLawyer)}

	crmH := crm.NewHandler(db, hub, aiSvc)
	api.Get("/crm", append(lawyerOnly, crmH.List)...)
	api.Post("/crm", append(lawyerOnly, crmH.Create)...)
	api.Patch("/crm/:id", append(lawyerOnly, crmH.Update)...)
	api.Delete("/crm/:id", append(lawyerOnly, crmH.Delete)...)
	api.Post("/crm/:id/risk", append(lawyerOnly, crmH.ScoreRisk)...)

	docH := documents.NewHandler(db, hub, sb, aiSvc)
	api.Get("/documents", append(lawyerOnly, docH.List)...)
	api.Post("/documents", append(lawyerOnly, docH.Upload)...)
	api.Get("/documents/:id/signed-url", append(lawyerOnly, docH.SignedDownloadURL)...)
	api.Delete("/documents/:id", append(lawyerOnly, docH.Delete)...)

	agendaH := agenda.NewHandler(db, hub, notifier)
	api.Get("/agenda", append(lawyerOnly, agendaH.List)...)
	api.Post("/agenda", append(lawyerOnly, agendaH.Create)...)
	api.Patch("/agenda/:id/done", append(lawyerOnly, agendaH.MarkDone)...)
	api.Patch("/agenda/:id", append(lawyerOnly, agendaH.Update)...)
	api.Delete("/agenda/:id", append(lawyerOnly, agendaH.Delete)...)

	calcH := calculations.NewHandler(db, hub, aiSvc)
	api.Get("/calculations", append(lawyerOnly, calcH.List)...)
	api.Post("/calculations", append(lawyerOnly, calcH.Save)...)
	api.Post("/calculations/run", append(lawyerOnly, calcH.Run)...)

	// Stateless AI tools
	toolsH := tools.NewHandler(aiSvc)
	api.Post("/cases/analyze", auth.RequireAuth(), auth.RequireRole(models.RoleClient), toolsH.AnalyzeCase)
	api.Post("/tools/intake", auth.RequireAuth(), toolsH.Intake)
	api.Post("/tools/jurisprudence", append(lawyerOnly, toolsH.Jurisprudence)...)
	api.Post("/tools/draft", append(lawyerOnly, toolsH.Draft)...)

	go agendaH.RunDeadlineSweeper(ctx, time.Hour)

	log.Println("Server running on :" + cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
