package payment

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/Nganga02/nexus/app/echoServer/jwtx"
	callbacksvc "github.com/Nganga02/nexus/service/callback"
	ps "github.com/Nganga02/nexus/service/payment"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc ps.Service
	Cb  callbacksvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

func statusFor(code ps.ErrCode) int {
	switch code {
	case ps.ErrInvalidAmount, ps.ErrAmountExceedsBalance:
		return http.StatusBadRequest
	case ps.ErrPayerNotGuest:
		return http.StatusForbidden
	case ps.ErrBookingNotFound, ps.ErrPaymentNotFound:
		return http.StatusNotFound
	case ps.ErrBookingNotPayable, ps.ErrTokenAlreadyAssigned, ps.ErrDuplicateToken:
		return http.StatusConflict
	case ps.ErrPushFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// POST /v1/payments
func (h *Controller) Create(c echo.Context) error {
	var req CreatePaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, err := jwtx.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	out, err := h.Svc.Create(c.Request().Context(), req.BookingID, uid, req.AmountCents, req.PaymentMethod)
	if err != nil {
		code := ps.Code(err)
		if code == "" {
			h.Log.Error("payment create", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
		h.Log.Warn("payment create rejected", "code", string(code), "booking_id", req.BookingID)
		return c.JSON(statusFor(code), echo.Map{"message": string(code)})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment":          out.Payment,
		"customer_message": out.CustomerMessage,
	})
}

// GET /v1/payments/:id
func (h *Controller) Detail(c echo.Context) error {
	p, err := h.Svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if ps.Code(err) == ps.ErrPaymentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "payment not found"})
		}
		h.Log.Error("payment detail", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, p)
}

// POST /v1/payments/mpesa/callback
//
// Always acknowledges any payload that reaches us: a non-2xx answer only
// makes the gateway resend, and genuine failures are handled by the worker,
// out of band of this response.
func (h *Controller) HandleMpesaCallback(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.Log.Error("read callback body", "err", err)
		return c.JSON(http.StatusOK, echo.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
	}

	if err := h.Cb.HandleCallback(c.Request().Context(), raw); err != nil {
		if callbacksvc.Code(err) == callbacksvc.ErrMalformed {
			// Anomaly already recorded by the service; stop the resend storm.
			return c.JSON(http.StatusOK, echo.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
		}
		// Enqueue failed: this one we do want redelivered.
		h.Log.Error("callback enqueue", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
}
