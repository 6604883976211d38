package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	ownerMiddleware := standardMiddleware.Append(app.requireOwner)

	mux := pat.New()

	h := app.paymentRequestHandle

	// Payment requests. Fixed paths are registered before ":id" patterns.
	mux.Get("/payment-requests", ownerMiddleware.ThenFunc(h.List))
	mux.Get("/payment-requests/edit", ownerMiddleware.ThenFunc(h.EditForm))
	mux.Post("/payment-requests/edit", ownerMiddleware.ThenFunc(h.Save))
	mux.Get("/payment-requests/edit/:id", ownerMiddleware.ThenFunc(h.EditForm))
	mux.Post("/payment-requests/edit/:id", ownerMiddleware.ThenFunc(h.Save))
	mux.Get("/payment-requests/:id/pay", standardMiddleware.ThenFunc(h.Pay))
	mux.Get("/payment-requests/:id/cancel", ownerMiddleware.ThenFunc(h.Cancel))
	mux.Get("/payment-requests/:id/clone", ownerMiddleware.ThenFunc(h.Clone))
	mux.Get("/payment-requests/:id/archive", ownerMiddleware.ThenFunc(h.ToggleArchive))
	mux.Get("/payment-requests/:id", standardMiddleware.ThenFunc(h.View))

	// Realtime
	mux.Get("/ws/payment-requests/:id", alice.New(app.recoverPanic, app.logRequest).ThenFunc(app.hub.ServeWS))

	// Invoices
	mux.Post("/invoices/callback", standardMiddleware.ThenFunc(app.invoiceHandler.Callback))
	mux.Get("/invoices/:id", standardMiddleware.ThenFunc(app.invoiceHandler.Get))

	return mux
}
