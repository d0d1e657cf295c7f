package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lanternhall/dinner-show-booking/internal/repository"
	"github.com/lanternhall/dinner-show-booking/internal/utils"
)

// AuthHandler serves staff authentication.  Customers never log in;
// the only accounts on the system belong to backoffice staff, so the
// handler is deliberately small: a login endpoint issuing a short
// lived access token, plus staff account creation for managers.
type AuthHandler struct {
	Staff      *repository.StaffRepo // staff account storage
	JWTSecret  string                // secret used to sign access tokens
	AccessTTL  time.Duration         // lifetime of issued tokens
	BcryptCost int                   // cost used when hashing new passwords
}

// NewAuthHandler wires an AuthHandler with its dependencies.
func NewAuthHandler(staff *repository.StaffRepo, secret string, accessTTL time.Duration, bcryptCost int) *AuthHandler {
	return &AuthHandler{Staff: staff, JWTSecret: secret, AccessTTL: accessTTL, BcryptCost: bcryptCost}
}

// loginRequest is the JSON body accepted by Login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a staff member and returns a signed JWT.  Both
// unknown emails and wrong passwords produce the same 401 response so
// the endpoint does not leak which accounts exist.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	user, err := h.Staff.GetByEmail(c.Request().Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if !utils.VerifyPassword(user.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := utils.NewAccessToken(h.JWTSecret, user.ID, user.Role, h.AccessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issue failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"expires_in":   int(h.AccessTTL / time.Second),
		"role":         user.Role,
	})
}

// createStaffRequest is the JSON body accepted by CreateStaff.
type createStaffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateStaff provisions a new staff account.  The route is guarded
// by the MANAGER role in the router; the handler only validates the
// payload and stores the bcrypt hash.
func (h *AuthHandler) CreateStaff(c echo.Context) error {
	var req createStaffRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role != "STAFF" && role != "MANAGER" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be STAFF or MANAGER"})
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash failed"})
	}
	id, err := h.Staff.Create(c.Request().Context(), email, hash, role)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "email": email, "role": role})
}
