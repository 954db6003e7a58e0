package echoServer

import (
	"net/http"

	"github.com/Nganga02/nexus/app/echoServer/controller/booking"
	"github.com/Nganga02/nexus/app/echoServer/controller/payment"
	"github.com/Nganga02/nexus/app/echoServer/controller/property"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

type C struct {
	Property  *property.Controller
	Booking   *booking.Controller
	Payment   *payment.Controller
	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Public: the gateway does not authenticate with us, correlation happens
	// on the CheckoutRequestID inside the payload.
	pub := e.Group("/v1")
	pub.POST("/payments/mpesa/callback", c.Payment.HandleMpesaCallback)

	// Auth
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),
	}))

	// Properties
	auth.GET("/properties", c.Property.List)
	auth.POST("/properties", c.Property.Create)
	auth.GET("/properties/:id", c.Property.Detail)
	auth.PATCH("/properties/:id", c.Property.UpdatePrice)
	auth.DELETE("/properties/:id", c.Property.Delete)
	auth.GET("/properties/:id/availability", c.Booking.Availability)

	// Bookings
	auth.GET("/bookings", c.Booking.MyBookings)
	auth.POST("/bookings", c.Booking.Create)
	auth.GET("/bookings/:id", c.Booking.Detail)
	auth.PATCH("/bookings/:id", c.Booking.Update)
	auth.POST("/bookings/:id/cancel", c.Booking.Cancel)

	// Payments
	auth.POST("/payments", c.Payment.Create)
	auth.GET("/payments/:id", c.Payment.Detail)
}
