package auth

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/socialjuris/socialjuris-backend/internal/stream"
	"github.com/socialjuris/socialjuris-backend/pkg/models"
	"github.com/socialjuris/socialjuris-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup
type SignupRequest struct {
	Role     string `json:"role" validate:"required,oneof=CLIENT LAWYER"`
	Name     string `json:"name" validate:"required,min=2,max=80"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	// Optional for lawyers
	OAB         string `json:"oab" validate:"omitempty,oab"`
	Specialties string `json:"specialties" validate:"omitempty,max=200"`
	Phone       string `json:"phone" validate:"omitempty,max=30"`
	Bio         string `json:"bio" validate:"omitempty,max=1000"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Request body for PATCH /me. Email and role are immutable through this path.
type UpdateProfileRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=80"`
	Phone       *string `json:"phone" validate:"omitempty,max=30"`
	Bio         *string `json:"bio" validate:"omitempty,max=1000"`
	OAB         *string `json:"oab" validate:"omitempty,oab"`
	Specialties *string `json:"specialties" validate:"omitempty,max=200"`
}

// Standard auth response
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db          *gorm.DB
	hub         *stream.Hub
	adminEmail  string
	autoconfirm bool
}

func NewHandler(db *gorm.DB, hub *stream.Hub, adminEmail string, autoconfirm bool) *Handler {
	return &Handler{db: db, hub: hub, adminEmail: adminEmail, autoconfirm: autoconfirm}
}

func avatarFor(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a new user (client or lawyer) with role-conditional defaults
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	// Normalize email
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)

	// Lawyers start unverified with zero balance; clients are auto-verified.
	u := models.User{
		Email:          in.Email,
		PasswordHash:   string(hash),
		Role:           models.Role(in.Role),
		Name:           in.Name,
		Avatar:         avatarFor(in.Name),
		Verified:       in.Role == string(models.RoleClient),
		Phone:          in.Phone,
		Bio:            in.Bio,
		EmailConfirmed: h.autoconfirm,
	}
	if u.Role == models.RoleLawyer {
		u.OAB = strings.ToUpper(strings.TrimSpace(in.OAB))
		u.Specialties = strings.TrimSpace(in.Specialties)
	}
	if err := h.db.Create(&u).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	h.hub.Publish(stream.Event{Table: "profiles", Action: stream.ActionInsert, ID: u.ID.String()})

	if !u.EmailConfirmed {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"pending": true,
			"message": "pending email confirmation",
		})
	}

	token, _ := IssueToken(u.ID.String(), string(u.Role))
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT; the reserved admin email is provisioned on first login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Failure      403      {object}  models.ErrorResponse  "email not confirmed"
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	err := h.db.Where("email = ?", in.Email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && in.Email == h.adminEmail {
		// Bootstrap convenience: first login on the reserved address
		// provisions the admin profile instead of failing.
		u, err = h.provisionAdmin(in.Password)
	}
	if err != nil {
		return fiber.ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}

	if !u.EmailConfirmed {
		return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse{
			Error:   true,
			Message: "email not confirmed",
			Code:    "EMAIL_NOT_CONFIRMED",
		})
	}

	token, _ := IssueToken(u.ID.String(), string(u.Role))
	return c.JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

func (h *Handler) provisionAdmin(password string) (models.User, error) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	u := models.User{
		Email:          h.adminEmail,
		PasswordHash:   string(hash),
		Role:           models.RoleAdmin,
		Name:           "Administrador",
		Avatar:         avatarFor("Admin"),
		Verified:       true,
		IsPremium:      true,
		EmailConfirmed: true,
		CreatedAt:      time.Now(),
	}
	if err := h.db.Create(&u).Error; err != nil {
		return models.User{}, err
	}
	h.hub.Publish(stream.Event{Table: "profiles", Action: stream.ActionInsert, ID: u.ID.String()})
	return u, nil
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	var u models.User
	if err := h.db.First(&u, "id = ?", MustUserID(c)).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	return c.JSON(u)
}

// @Summary      Update profile
// @Description  Partial update of name/phone/bio/oab/specialties; email is immutable here
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  UpdateProfileRequest  true  "Fields to update"
// @Success      200  {object}  models.User
// @Failure      400  {object}  models.ValidationErrorResponse
// @Router       /me [patch]
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	var in UpdateProfileRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Bio != nil {
		updates["bio"] = strings.TrimSpace(*in.Bio)
	}
	if in.OAB != nil {
		updates["oab"] = strings.ToUpper(strings.TrimSpace(*in.OAB))
	}
	if in.Specialties != nil {
		updates["specialties"] = strings.TrimSpace(*in.Specialties)
	}

	userID := MustUserID(c)
	if len(updates) > 0 {
		if err := h.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		h.hub.Publish(stream.Event{Table: "profiles", Action: stream.ActionUpdate, ID: userID})
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", userID).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(u)
}

/* ============================== Directory =============================== */

// @Summary      User directory
// @Description  All profiles, for directory and admin views
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.User
// @Router       /users [get]
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := h.db.Order("created_at DESC").Find(&users).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if users == nil {
		users = []models.User{}
	}
	return c.JSON(users)
}

// ParseUserID converts the context user ID or reports a 401.
func ParseUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(MustUserID(c))
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return id, nil
}
