package handlers

import (
	"net/http"

	"github.com/aryankhatri/food-ordering-platform/internal/api/middleware"
	appErrors "github.com/aryankhatri/food-ordering-platform/internal/errors"
	"github.com/aryankhatri/food-ordering-platform/internal/models"
	service "github.com/aryankhatri/food-ordering-platform/internal/services"
	"github.com/aryankhatri/food-ordering-platform/internal/utils"
	"github.com/aryankhatri/food-ordering-platform/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

// CartHandler exposes the cart over HTTP. The actor (user id or guest token)
// comes from the middleware, never from the request body, so one client can
// never touch another client's cart.
type CartHandler struct {
	cartService  *service.CartService
	mergeService *service.MergeService
	validator    *validator.Validate
}

func NewCartHandler(cartService *service.CartService, mergeService *service.MergeService) *CartHandler {
	return &CartHandler{
		cartService:  cartService,
		mergeService: mergeService,
		validator:    validator.New(),
	}
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		actor := middleware.ActorFromContext(r.Context())

		snapshot, err := h.cartService.GetCart(r.Context(), actor)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, snapshot)
	}
}

func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		actor := middleware.ActorFromContext(r.Context())

		if actor.UserID == nil && actor.GuestToken == "" {
			response.Error(w, appErrors.BadRequestError("A session is required to add items"))
			return
		}

		var req models.AddItemRequest

		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		snapshot, err := h.cartService.AddItem(r.Context(), actor, &req)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, snapshot)
	}
}

func (h *CartHandler) UpdateQuantity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		actor := middleware.ActorFromContext(r.Context())

		var req models.SetItemQuantityRequest

		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		snapshot, err := h.cartService.UpdateQuantity(r.Context(), actor, &req)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, snapshot)
	}
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		actor := middleware.ActorFromContext(r.Context())

		if err := h.cartService.ClearCart(r.Context(), actor); err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, map[string]bool{"cleared": true})
	}
}

// MergeCart runs after login: the Bearer token names the user, the guest
// cookie names the cart to fold in. No body is needed.
func (h *CartHandler) MergeCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		actor := middleware.ActorFromContext(r.Context())

		err := h.mergeService.MergeGuestCartIntoUserCart(r.Context(), *actor.UserID, actor.GuestToken)
		if err != nil {
			response.Error(w, err)
			return
		}

		snapshot, err := h.cartService.GetCart(r.Context(), models.Actor{UserID: actor.UserID})
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, snapshot)
	}
}
