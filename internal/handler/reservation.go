package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Jinnapat/jod-rod-matching-service/internal/apperror"
	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
	"github.com/Jinnapat/jod-rod-matching-service/internal/model"
)

// ReservationService is the orchestrator surface exposed over HTTP.
type ReservationService interface {
	Reserve(ctx context.Context, userID int64, parkingLotID string) (string, error)
	Confirm(ctx context.Context, reservationID string) error
	GetReservations(ctx context.Context) ([]model.Reservation, error)
	GetReservationsByParkingLotID(ctx context.Context, parkingLotID string) ([]model.Reservation, error)
	GetReservationByID(ctx context.Context, id string) (*model.Reservation, error)
	GetActiveReservationsByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	GetActiveReservationsByParkingLot(ctx context.Context, parkingLotID string) ([]model.Reservation, error)
	CountActiveReservations(ctx context.Context, parkingLotID string) (int, error)
	WithUsernames(ctx context.Context, ds []model.ReservationDetail) []model.ReservationDetail
	WithLotNames(ctx context.Context, ds []model.ReservationDetail) []model.ReservationDetail
}

// ReservationHandler serves the reservation endpoints.  Error responses are
// {"error": message} with the status taken from the apperror kind.
type ReservationHandler struct {
	svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

// userIDParam accepts a JSON number or a numeric string.
type userIDParam int64

func (u *userIDParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*u = userIDParam(n)
	return nil
}

type createReservationRequest struct {
	UserID       *userIDParam `json:"userId"`
	ParkingLotID string       `json:"parkingLotId"`
}

// CreateReservation handles POST /createReservation.  It returns 201 with
// the new reservation id.
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	var body createReservationRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId must be an integer and parkingLotId a string"})
	}
	if body.UserID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId is required"})
	}
	id, err := h.svc.Reserve(c.Request().Context(), int64(*body.UserID), strings.TrimSpace(body.ParkingLotID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// ConfirmReservation handles POST /confirmReservation.
func (h *ReservationHandler) ConfirmReservation(c echo.Context) error {
	var body struct {
		ReservationID string `json:"reservationId"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.svc.Confirm(c.Request().Context(), strings.TrimSpace(body.ReservationID)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetReservations handles GET /getReservations, labelled with usernames.
func (h *ReservationHandler) GetReservations(c echo.Context) error {
	ctx := c.Request().Context()
	rs, err := h.svc.GetReservations(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.svc.WithUsernames(ctx, model.Details(rs)))
}

func (h *ReservationHandler) GetReservationsByParkingLotID(c echo.Context) error {
	ctx := c.Request().Context()
	rs, err := h.svc.GetReservationsByParkingLotID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.svc.WithUsernames(ctx, model.Details(rs)))
}

func (h *ReservationHandler) GetReservationByID(c echo.Context) error {
	ctx := c.Request().Context()
	res, err := h.svc.GetReservationByID(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := h.svc.WithLotNames(ctx, []model.ReservationDetail{{Reservation: *res}})
	return c.JSON(http.StatusOK, out[0])
}

func (h *ReservationHandler) GetActiveReservationsByUser(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx := c.Request().Context()
	rs, err := h.svc.GetActiveReservationsByUser(ctx, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.svc.WithLotNames(ctx, model.Details(rs)))
}

func (h *ReservationHandler) GetActiveReservationsByParkingLot(c echo.Context) error {
	ctx := c.Request().Context()
	rs, err := h.svc.GetActiveReservationsByParkingLot(ctx, c.Param("parkingLotId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.svc.WithUsernames(ctx, model.Details(rs)))
}

// CountActiveReservations handles GET /countActiveReservations/:parkingLotId.
func (h *ReservationHandler) CountActiveReservations(c echo.Context) error {
	n, err := h.svc.CountActiveReservations(c.Request().Context(), c.Param("parkingLotId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

func respondError(c echo.Context, err error) error {
	status := apperror.Status(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, echo.Map{"error": apperror.Message(err)})
}
