package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cloudnetiq/planport/internal/pkg/session"
	"github.com/cloudnetiq/planport/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the server-side session into a UserContext
// for every request. Identity always comes from the session cookie (or the
// API key middleware on /api/v1); client-asserted headers are never trusted.
func UserContextMiddleware(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		// On error: treat as anonymous
		setAnonymous(c)
		return c.Next()
	}

	userID := sess.Get(usercontext.SessionKeyUserID)
	if userID == nil {
		setAnonymous(c)
		return c.Next()
	}

	uid, ok := userID.(uint)
	if !ok {
		setAnonymous(c)
		return c.Next()
	}

	username, _ := sess.Get(usercontext.SessionKeyName).(string)
	email, _ := sess.Get(usercontext.SessionKeyEmail).(string)
	isAdmin, _ := sess.Get(usercontext.SessionKeyIsAdmin).(bool)

	userCtx := usercontext.UserContext{
		UserID:     uid,
		Username:   username,
		Email:      email,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	}
	c.Locals(usercontext.KeyUserContext, userCtx)

	// Legacy compatibility locals used by older handlers
	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUserID, uid)
	c.Locals(usercontext.KeyUsername, username)
	c.Locals(usercontext.KeyIsAdmin, isAdmin)

	return c.Next()
}

func setAnonymous(c *fiber.Ctx) {
	c.Locals(usercontext.KeyUserContext, usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	c.Locals(usercontext.KeyFromProtected, false)
	c.Locals(usercontext.KeyIsAdmin, false)
}
