package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/aryankhatri/food-ordering-platform/internal/api/middleware"
	appErrors "github.com/aryankhatri/food-ordering-platform/internal/errors"
	"github.com/aryankhatri/food-ordering-platform/internal/models"
	service "github.com/aryankhatri/food-ordering-platform/internal/services"
	"github.com/aryankhatri/food-ordering-platform/internal/utils"
	"github.com/aryankhatri/food-ordering-platform/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
	validator       *validator.Validate
}

func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService, validator: validator.New()}
}

// Confirm finalizes a paid checkout session into an order. Safe to retry: a
// replay with the same session returns the already created order with
// reused=true.
func (h *CheckoutHandler) Confirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		actor := middleware.ActorFromContext(r.Context())

		var req models.FinalizeCheckoutRequest

		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		result, err := h.checkoutService.FinalizeCheckout(r.Context(), *actor.UserID, req.SessionID)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, result)
	}
}

// Webhook is the gateway's asynchronous path into checkout finalization. The
// duplicate-order and duplicate-payment guards make it safe for this and
// Confirm to race on the same session.
func (h *CheckoutHandler) Webhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			response.Error(w, appErrors.BadRequestError("Failed to read request body"))
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			response.Error(w, appErrors.BadRequestError("Stripe signature is required"))
			return
		}

		result, err := h.checkoutService.ProcessWebhook(r.Context(), payload, signature)
		if err != nil {
			logger.Error("Failed to process checkout webhook", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		if result != nil {
			logger.Info("Checkout webhook processed", slog.String("order_id", result.OrderID.String()), slog.Bool("reused", result.Reused))
		}

		response.Success(w, http.StatusOK, map[string]bool{"received": true})
	}
}
