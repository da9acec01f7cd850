package handlers

import (
	"errors"
	"strings"

	"taskmanager/internal/middleware"
	"taskmanager/internal/models"
	"taskmanager/internal/repository"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
	models.UserView
}

type profileResponse struct {
	models.UserView
	Token string `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new user.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if err := h.deps.Validate.Struct(req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, validationMessage(err))
	}

	ctx := c.UserContext()
	_, err := h.deps.Users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		h.deps.Log.Security.Warn("Signup with registered email", zap.String("email", req.Email))
		return errorResponse(c, fiber.StatusBadRequest, "User already exists")
	case !errors.Is(err, repository.ErrNotFound):
		h.deps.Log.Error.Error("Error checking existing user", zap.Error(err))
		return internalError(c)
	}

	hashed, err := h.deps.Passwords.Hash(req.Password)
	if err != nil {
		h.deps.Log.Error.Error("Error hashing password", zap.Error(err))
		return internalError(c)
	}

	user, err := h.deps.Users.Create(ctx, req.Name, req.Email, hashed)
	if err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return errorResponse(c, fiber.StatusBadRequest, "User already exists")
		}
		h.deps.Log.Error.Error("Error creating user", zap.Error(err))
		return internalError(c)
	}

	h.deps.Log.Audit.Info("User registered", zap.String("user_id", user.ID.String()))
	return c.Status(fiber.StatusCreated).JSON(user.View())
}

// Login exchanges credentials for a session token. Unknown email and wrong
// password produce the same response.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = normalizeEmail(req.Email)

	if err := h.deps.Validate.Struct(req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, validationMessage(err))
	}

	user, err := h.deps.Users.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.deps.Log.Security.Warn("Login for unknown email", zap.String("email", req.Email))
			return errorResponse(c, fiber.StatusBadRequest, "Invalid credentials")
		}
		h.deps.Log.Error.Error("Error loading user for login", zap.Error(err))
		return internalError(c)
	}

	if !h.deps.Passwords.Verify(user.Password, req.Password) {
		h.deps.Log.Security.Warn("Login with wrong password", zap.String("user_id", user.ID.String()))
		return errorResponse(c, fiber.StatusBadRequest, "Invalid credentials")
	}

	token, err := h.deps.Tokens.Issue(user.ID)
	if err != nil {
		h.deps.Log.Error.Error("Error generating token", zap.Error(err))
		return internalError(c)
	}

	h.deps.Log.Audit.Info("Login success", zap.String("user_id", user.ID.String()))
	return c.JSON(loginResponse{Token: token, UserView: user.View()})
}

// TokenIsValid answers with a bare boolean; invalid tokens are not errors.
func (h *Handler) TokenIsValid(c *fiber.Ctx) error {
	token := c.Get(middleware.TokenHeader)
	if token == "" {
		return c.JSON(false)
	}

	userID, err := h.deps.Tokens.Verify(token)
	if err != nil {
		return c.JSON(false)
	}

	if _, err := h.deps.Users.GetByID(c.UserContext(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(false)
		}
		h.deps.Log.Error.Error("Error checking token user", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(true)
}

// Profile returns the caller and echoes the token back.
func (h *Handler) Profile(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, "User not found")
	}

	user, err := h.deps.Users.GetByID(c.UserContext(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorResponse(c, fiber.StatusUnauthorized, "User not found")
		}
		h.deps.Log.Error.Error("Error loading profile", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(profileResponse{UserView: user.View(), Token: identity.Token})
}
