package settings

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/settings", h.List)
	api.GET("/settings/:key", h.Get)
	api.PUT("/settings/:key", h.Set)
	api.POST("/settings/location", h.SetLocation)
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.All(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []Setting{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	key := c.Param("key")
	value, err := h.svc.Get(c.Request().Context(), key)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "setting not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Setting{Key: key, Value: value})
}

func (h *Handler) Set(c echo.Context) error {
	var body struct {
		Value string `json:"value"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	key := c.Param("key")
	if err := h.svc.Set(c.Request().Context(), key, body.Value); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, Setting{Key: key, Value: body.Value})
}

func (h *Handler) SetLocation(c echo.Context) error {
	var body struct {
		Address string `json:"address"`
		City    string `json:"city"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Address == "" || body.City == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "address and city are required")
	}

	point, err := h.svc.SetLocation(c.Request().Context(), body.Address, body.City)
	if errors.Is(err, ErrAddressNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "address could not be resolved")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"address": body.Address,
		"city":    body.City,
		"lat":     point.Lat,
		"lon":     point.Lon,
	})
}
