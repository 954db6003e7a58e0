// Package main nexus booking API.
//
// @title           Nexus Booking API
// @version         1.0
// @description     Property bookings with M-Pesa STK push payments.
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nganga02/nexus/app/echoServer"
	bookingctrl "github.com/Nganga02/nexus/app/echoServer/controller/booking"
	paymentctrl "github.com/Nganga02/nexus/app/echoServer/controller/payment"
	propertyctrl "github.com/Nganga02/nexus/app/echoServer/controller/property"
	"github.com/Nganga02/nexus/app/echoServer/validation"
	"github.com/Nganga02/nexus/config"
	bookingrepo "github.com/Nganga02/nexus/repository/booking"
	callbackrepo "github.com/Nganga02/nexus/repository/callback"
	mpesarepo "github.com/Nganga02/nexus/repository/mpesa"
	notifyrepo "github.com/Nganga02/nexus/repository/notify"
	paymentrepo "github.com/Nganga02/nexus/repository/payment"
	propertyrepo "github.com/Nganga02/nexus/repository/property"
	userrepo "github.com/Nganga02/nexus/repository/user"
	bookingsvc "github.com/Nganga02/nexus/service/booking"
	callbacksvc "github.com/Nganga02/nexus/service/callback"
	paymentsvc "github.com/Nganga02/nexus/service/payment"
	propertysvc "github.com/Nganga02/nexus/service/property"
	"github.com/Nganga02/nexus/util/database"
	"github.com/Nganga02/nexus/util/redisx"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB: pgx pool
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// repos
	ur := userrepo.New(db)
	pr := propertyrepo.New(db)
	br := bookingrepo.New(db)
	payr := paymentrepo.New(db)
	cbr := callbackrepo.New(db)
	gateway := mpesarepo.NewHTTP(mpesarepo.Config{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.MpesaShortCode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
	})
	notifier := notifyrepo.NewHTTP(cfg.NotifierURL, cfg.NotifierKey)

	// services
	prs := propertysvc.New(pr)
	bks := bookingsvc.New(db.Pool, br, ur)
	pys := paymentsvc.New(db.Pool, payr, br, bks, gateway, ur)
	cbs := callbacksvc.New(cbr, redisx.NewDedup(rdb), log)

	// callback workers
	worker := callbacksvc.NewWorker(cbr, pys, ur, notifier, log)
	for i := 0; i < cfg.CallbackWorkers; i++ {
		go worker.Run(ctx)
	}

	// controllers
	v := validator.New()
	propertyC := &propertyctrl.Controller{Svc: prs, V: v, Log: log}
	bookingC := &bookingctrl.Controller{Svc: bks, V: v, Log: log}
	paymentC := &paymentctrl.Controller{Svc: pys, Cb: cbs, V: v, Log: log}

	// echo
	e := echo.New()
	e.HideBanner = true
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	echoServer.Register(e, echoServer.C{
		Property:  propertyC,
		Booking:   bookingC,
		Payment:   paymentC,
		JWTSecret: cfg.JWTSecret,
	})

	go func() {
		log.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
