package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/cloudnetiq/planport/app/models"
	"github.com/cloudnetiq/planport/app/repository"
	"github.com/cloudnetiq/planport/internal/pkg/session"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

const (
	AUTH_KEY      string = usercontext.SessionKeyAuth
	USER_ID       string = usercontext.SessionKeyUserID
	USER_NAME     string = usercontext.SessionKeyName
	USER_EMAIL    string = usercontext.SessionKeyEmail
	USER_IS_ADMIN string = usercontext.SessionKeyIsAdmin
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleSignup registers a new portal account and opens a session for it.
func HandleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Name, email and password are required")
	}

	repos := repository.GetGlobalRepositories()

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid account data")
	}
	if err := repos.User.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrorJSON(c, fiber.StatusConflict, "Email is already registered")
		}
		log.Printf("signup failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Could not create account")
	}

	recordAudit(c, models.AuditEntry{
		UserID:    user.ID,
		Action:    models.AuditActionUserSignup,
		TableName: "users",
		RecordID:  user.ID,
		NewValues: map[string]any{"email": user.Email, "name": user.Name},
	})

	if err := openSession(c, user); err != nil {
		log.Printf("session open after signup failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Account created but login failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    userResponse(user),
	})
}

// HandleLogin verifies credentials and opens a session. Failures are reported
// without distinguishing unknown email from wrong password.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return ErrorJSON(c, fiber.StatusBadRequest, "Email and password are required")
	}

	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorJSON(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		log.Printf("login lookup failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Login failed")
	}
	if !user.CheckPassword(req.Password) {
		return ErrorJSON(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if !user.IsActive() {
		return ErrorJSON(c, fiber.StatusForbidden, "Account is disabled")
	}

	if err := openSession(c, user); err != nil {
		log.Printf("session open failed: %v", err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Login failed")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repos.User.Update(user); err != nil {
		log.Printf("failed to update last login for user %d: %v", user.ID, err)
	}

	recordAudit(c, models.AuditEntry{
		UserID:    user.ID,
		Action:    models.AuditActionUserLogin,
		TableName: "users",
		RecordID:  user.ID,
	})

	return SuccessJSON(c, fiber.Map{"user": userResponse(user)})
}

// HandleLogout destroys the session. Logging out without one is not an error.
func HandleLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		if err := sess.Destroy(); err != nil {
			log.Printf("session destroy failed: %v", err)
		}
	}
	c.Locals(usercontext.KeyFromProtected, false)
	return SuccessJSON(c, fiber.Map{"message": "Logged out"})
}

// HandleGetMe returns the authenticated user's account.
func HandleGetMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrorJSON(c, fiber.StatusNotFound, "User not found")
		}
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load user")
	}
	return SuccessJSON(c, fiber.Map{"user": userResponse(user)})
}

// HandleIssueAPIKey generates a fresh API key for programmatic access. The raw
// secret is returned exactly once; only its hash is stored.
func HandleIssueAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	rawKey, err := user.IssueAPIKey()
	if err != nil {
		log.Printf("api key generation failed for user %d: %v", user.ID, err)
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to generate API key")
	}
	if err := repos.User.Update(user); err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to store API key")
	}

	return SuccessJSON(c, fiber.Map{
		"api_key":    rawKey,
		"prefix":     user.APIKeyPrefix,
		"created_at": formatTimePtr(user.APIKeyCreatedAt),
	})
}

// HandleRevokeAPIKey clears the stored API key.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	user.RevokeAPIKey()
	if err := repos.User.Update(user); err != nil {
		return ErrorJSON(c, fiber.StatusInternalServerError, "Failed to revoke API key")
	}
	return SuccessJSON(c, fiber.Map{"message": "API key revoked"})
}

func openSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_EMAIL, user.Email)
	sess.Set(USER_IS_ADMIN, user.IsAdmin())
	return sess.Save()
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"role":          user.Role,
		"status":        user.Status,
		"created_at":    user.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(user.LastLoginAt),
	}
}

// recordAudit writes an audit row with request metadata. Audit failures are
// logged, never surfaced to the client.
func recordAudit(c *fiber.Ctx, entry models.AuditEntry) {
	entry.IPAddress = GetClientIP(c)
	entry.UserAgent = string(c.Request().Header.UserAgent())
	if err := repository.GetGlobalRepositories().AuditLog.Record(entry); err != nil {
		log.Printf("audit write failed (%s): %v", entry.Action, err)
	}
}
