package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

// RegisterRoutes mounts the authentication endpoints. They are public: the
// session guard protects everything else.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/auth/status", h.Status)
	g.POST("/auth/setup", h.Setup)
	g.POST("/auth/login", h.Login)
	g.POST("/auth/logout", h.Logout)
}

type passwordRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Status(c.Request().Context()))
}

func (h *Handler) Setup(c echo.Context) error {
	var req struct {
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Password != req.PasswordConfirm {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	token, err := h.svc.Setup(c.Request().Context(), req.Password, h.now())
	switch {
	case errors.Is(err, ErrPasswordTooShort):
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	case errors.Is(err, ErrAlreadyConfigured):
		return echo.NewHTTPError(http.StatusConflict, "master password already configured")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) Login(c echo.Context) error {
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, err := h.svc.Login(c.Request().Context(), req.Password, h.now())
	switch {
	case errors.Is(err, ErrNotConfigured):
		return echo.NewHTTPError(http.StatusConflict, "master password not configured")
	case errors.Is(err, ErrInvalidPassword):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) Logout(c echo.Context) error {
	h.svc.Logout()
	return c.NoContent(http.StatusNoContent)
}
