package controller

import (
	"log"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskory/models"
	"taskory/utils"
)

type AuthController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAuthController(db *gorm.DB, logger *log.Logger) *AuthController {
	return &AuthController{
		DB:     db,
		Logger: logger,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a new account. The very first account becomes the
// admin; everyone after self-registers with a non-admin role.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
	}

	var count int64
	if err := ac.DB.Model(&models.User{}).Count(&count).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
	}

	role := req.Role
	switch {
	case count == 0:
		// bootstrap account
		role = models.RoleAdmin
	case role == models.RoleAdmin:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Cannot self-register as admin", nil)
	case role == "":
		role = models.RoleDeveloper
	}

	// Check if user already exists
	var existingUser models.User
	if err := ac.DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Email already registered", nil)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to hash password", err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         req.Name,
		Role:         role,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create user", err)
	}

	token, err := utils.GenerateSessionToken(ac.DB, &user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate token", err)
	}
	setSessionCookie(c, token)

	utils.LogEvent("user_registered", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	})

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, User: &user})
}

// Login checks credentials and issues a fresh session token.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	// Find user
	var user models.User
	if err := ac.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}

	token, err := utils.GenerateSessionToken(ac.DB, &user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate token", err)
	}
	setSessionCookie(c, token)

	return c.JSON(AuthResponse{Token: token, User: &user})
}

// Logout deletes the session row behind the presented token, revoking it.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	if jti, ok := c.Locals("sessionToken").(string); ok && jti != "" {
		if err := ac.DB.Unscoped().Where("token = ?", jti).Delete(&models.Session{}).Error; err != nil {
			ac.Logger.Printf("Failed to delete session: %v", err)
		}
	}
	c.ClearCookie("session_token")
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me returns the authenticated account.
func (ac *AuthController) Me(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	return c.JSON(utils.SuccessResponse(user))
}

// ListUsers returns the account directory for assignee and lead pickers.
func (ac *AuthController) ListUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := ac.DB.Order("name").Find(&users).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list users", err)
	}
	return c.JSON(utils.SuccessResponse(users))
}

func setSessionCookie(c *fiber.Ctx, token string) {
	cookie := new(fiber.Cookie)
	cookie.Name = "session_token"
	cookie.Value = token
	cookie.Expires = time.Now().Add(models.SessionTTL)
	cookie.HTTPOnly = true
	cookie.Secure = true
	cookie.SameSite = "Lax"
	c.Cookie(cookie)
}
