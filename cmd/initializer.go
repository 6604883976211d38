package main

import (
	"database/sql"
	"log"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"naimuPay/internal/config"
	"naimuPay/internal/dbutil"
	"naimuPay/internal/events"
	"naimuPay/internal/handlers"
	"naimuPay/internal/invoices"
	"naimuPay/internal/repositories"
	"naimuPay/internal/services"
	"naimuPay/internal/ws"
	"naimuPay/utils"
)

type application struct {
	errorLog *log.Logger
	infoLog  *log.Logger

	tokens *utils.Manager
	bus    *events.Bus

	paymentRequestRepo   *repositories.PaymentRequestRepository
	storeRepo            *repositories.StoreRepository
	paymentRequestSvc    *services.PaymentRequestService
	invoiceService       *invoices.Service
	paymentRequestHandle *handlers.PaymentRequestHandler
	invoiceHandler       *handlers.InvoiceHandler
	hub                  *ws.PaymentRequestHub

	stopHub func()
}

type appDeps struct {
	cfg      config.Config
	db       *sql.DB
	dialect  dbutil.Dialect
	redis    *redis.Client
	infoLog  *log.Logger
	errorLog *log.Logger
	slog     *slog.Logger
}

func initializeApp(d appDeps) (*application, error) {
	logger := logAdapter{info: d.infoLog, err: d.errorLog}

	tokens, err := utils.NewManager(d.cfg.Auth.JWTSigningKey)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(logger, d.cfg.EventBuffer)

	invoiceCfg := invoices.Config{
		InvoiceTTL:      d.cfg.InvoiceTTL(),
		CheckoutBaseURL: d.cfg.Invoices.CheckoutBaseURL,
		CallbackSecret:  d.cfg.Invoices.CallbackSecret,
	}
	if err := invoiceCfg.Validate(); err != nil {
		return nil, err
	}
	invoiceService := invoices.NewService(invoices.NewSQLStore(d.db, d.dialect), bus, logger, invoiceCfg)

	paymentRequestRepo := repositories.NewPaymentRequestRepository(d.db, d.dialect)
	storeRepo := repositories.NewStoreRepository(d.db, d.dialect)

	var locker services.PayLocker = services.NewLocalLocker()
	if d.redis != nil {
		locker = services.NewRedisLocker(d.redis, d.cfg.PayLockTTL())
	}

	paymentRequestSvc := &services.PaymentRequestService{
		Store:      paymentRequestRepo,
		Stores:     storeRepo,
		Invoices:   invoiceService,
		Currencies: services.NewCurrencyTable(nil),
		Events:     bus,
		Locker:     locker,
		Logger:     d.slog,
		BaseURL:    d.cfg.Server.PublicBaseURL,
	}

	hub := ws.NewPaymentRequestHub(logger)

	return &application{
		errorLog:             d.errorLog,
		infoLog:              d.infoLog,
		tokens:               tokens,
		bus:                  bus,
		paymentRequestRepo:   paymentRequestRepo,
		storeRepo:            storeRepo,
		paymentRequestSvc:    paymentRequestSvc,
		invoiceService:       invoiceService,
		paymentRequestHandle: handlers.NewPaymentRequestHandler(paymentRequestSvc, invoiceService.CheckoutURL, d.errorLog),
		invoiceHandler:       handlers.NewInvoiceHandler(invoiceService, d.errorLog),
		hub:                  hub,
		stopHub:              hub.Listen(bus),
	}, nil
}

func (app *application) close() {
	if app.stopHub != nil {
		app.stopHub()
	}
	app.bus.Close()
}
