package handler

import (
	"context"
	"net/http"

	"github.com/mcoot/gamelobby/internal/api/middleware"
	"github.com/mcoot/gamelobby/internal/api/request"
	"github.com/mcoot/gamelobby/internal/api/response"
	"github.com/mcoot/gamelobby/internal/model"
)

// AccountService is the identity operations the account endpoints need
type AccountService interface {
	Register(ctx context.Context, username, password string) (*model.Account, error)
	Login(ctx context.Context, username, password string) (string, *model.Account, error)
	GetAccount(ctx context.Context, id model.UserID) (*model.Account, error)
}

// AccountHandler handles account endpoints
type AccountHandler struct {
	accounts AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
	}
}

// Register handles POST /api/v1/accounts/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	account, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AccountFromModel(account))
}

// Login handles POST /api/v1/accounts/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("username and password are required"))
		return
	}

	token, account, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponse{
		Token:   token,
		Account: response.AccountFromModel(account),
	})
}

// GetMe handles GET /api/v1/accounts/me
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.MustGetUserID(r.Context())

	account, err := h.accounts.GetAccount(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Me{
		UserID:   string(account.ID),
		Username: account.Username,
	})
}
