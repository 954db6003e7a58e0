package booking

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Nganga02/nexus/app/echoServer/jwtx"
	bs "github.com/Nganga02/nexus/service/booking"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc bs.Service
	V   *validator.Validate
	Log *slog.Logger
}

func statusFor(code bs.ErrCode) int {
	switch code {
	case bs.ErrDateRangeInvalid, bs.ErrCheckInPast, bs.ErrGuestsRequired:
		return http.StatusBadRequest
	case bs.ErrGuestNotFound, bs.ErrPropertyNotFound, bs.ErrBookingNotFound:
		return http.StatusNotFound
	case bs.ErrPropertyUnavailable, bs.ErrCancellationNotAllowed, bs.ErrBookingNotUpdatable:
		return http.StatusConflict
	case bs.ErrNotGuest:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// POST /v1/bookings
func (h *Controller) Create(c echo.Context) error {
	var req CreateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	checkIn, _ := time.Parse("2006-01-02", req.CheckIn)
	checkOut, _ := time.Parse("2006-01-02", req.CheckOut)

	b, err := h.Svc.Create(c.Request().Context(), req.PropertyID, req.GuestIDs, checkIn, checkOut)
	if err != nil {
		code := bs.Code(err)
		if code == "" {
			h.Log.Error("booking create", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
		return c.JSON(statusFor(code), echo.Map{"message": string(code)})
	}
	return c.JSON(http.StatusCreated, b)
}

// PATCH /v1/bookings/:id
func (h *Controller) Update(c echo.Context) error {
	var req UpdateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	if (req.CheckIn == nil) != (req.CheckOut == nil) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "check_in and check_out must be given together"})
	}

	var newRange *bs.DateRange
	if req.CheckIn != nil {
		ci, _ := time.Parse("2006-01-02", *req.CheckIn)
		co, _ := time.Parse("2006-01-02", *req.CheckOut)
		newRange = &bs.DateRange{CheckIn: ci, CheckOut: co}
	}

	b, err := h.Svc.Update(c.Request().Context(), c.Param("id"), newRange, req.GuestIDs)
	if err != nil {
		code := bs.Code(err)
		if code == "" {
			h.Log.Error("booking update", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
		return c.JSON(statusFor(code), echo.Map{"message": string(code)})
	}
	return c.JSON(http.StatusOK, b)
}

// POST /v1/bookings/:id/cancel
func (h *Controller) Cancel(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	b, err := h.Svc.Cancel(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		code := bs.Code(err)
		if code == "" {
			h.Log.Error("booking cancel", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
		return c.JSON(statusFor(code), echo.Map{"message": string(code)})
	}
	return c.JSON(http.StatusOK, b)
}

// GET /v1/bookings/:id
func (h *Controller) Detail(c echo.Context) error {
	b, err := h.Svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if bs.Code(err) == bs.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
		}
		h.Log.Error("booking detail", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, b)
}

// GET /v1/properties/:id/availability?check_in=YYYY-MM-DD&check_out=YYYY-MM-DD
func (h *Controller) Availability(c echo.Context) error {
	checkIn, err := time.Parse("2006-01-02", c.QueryParam("check_in"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "check_in must be YYYY-MM-DD"})
	}
	checkOut, err := time.Parse("2006-01-02", c.QueryParam("check_out"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "check_out must be YYYY-MM-DD"})
	}

	ok, err := h.Svc.IsAvailable(c.Request().Context(), c.Param("id"), checkIn, checkOut)
	if err != nil {
		code := bs.Code(err)
		if code == "" {
			h.Log.Error("availability check", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
		return c.JSON(statusFor(code), echo.Map{"message": string(code)})
	}
	return c.JSON(http.StatusOK, echo.Map{"available": ok})
}

// GET /v1/bookings
func (h *Controller) MyBookings(c echo.Context) error {
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	rows, err := h.Svc.ListByGuest(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("booking list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
