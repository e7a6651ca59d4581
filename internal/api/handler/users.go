package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/bananaclick/internal/api/middleware"
	"github.com/mcoot/bananaclick/internal/api/request"
	"github.com/mcoot/bananaclick/internal/api/response"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/accounts"
	"github.com/mcoot/bananaclick/internal/services/auth"
)

// Ranker computes leaderboard snapshots
type Ranker interface {
	ComputeTop(ctx context.Context, n int) (model.RankingSnapshot, error)
}

// UserHandler handles account endpoints
type UserHandler struct {
	accounts *accounts.Service
	ranking  Ranker
	topN     int
}

// NewUserHandler creates a new user handler
func NewUserHandler(accountService *accounts.Service, ranking Ranker, topN int) *UserHandler {
	return &UserHandler{
		accounts: accountService,
		ranking:  ranking,
		topN:     topN,
	}
}

// Me handles GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())
	response.JSON(w, http.StatusOK, response.UserFromModel(account))
}

// Rankings handles GET /api/users/rankings
func (h *UserHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.ranking.ComputeTop(r.Context(), h.topN)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, model.RankingPayloads(snapshot))
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UsersFromModel(list))
}

// Active handles GET /api/users/active
func (h *UserHandler) Active(w http.ResponseWriter, r *http.Request) {
	list, err := h.accounts.ListActive(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UsersFromModel(list))
}

// Get handles GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Get(r.Context(), accountID(r))
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(account))
}

// Create handles POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	var role model.Role
	if req.Role != "" {
		parsed, err := model.ParseRole(req.Role)
		if err != nil {
			WriteError(w, err)
			return
		}
		role = parsed
	}

	account, err := h.accounts.Create(r.Context(), auth.NewAccountInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.UserMessage{
		Message: "User created successfully",
		User:    response.UserFromModel(account),
	})
}

// Update handles PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	in := accounts.UpdateInput{
		Username: req.Username,
		Email:    req.Email,
		Blocked:  req.IsBlocked,
	}
	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			WriteError(w, err)
			return
		}
		in.Role = &role
	}

	account, err := h.accounts.Update(r.Context(), accountID(r), in)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserMessage{
		Message: "User updated successfully",
		User:    response.UserFromModel(account),
	})
}

// Delete handles DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Delete(r.Context(), accountID(r)); err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Message{Message: "User deleted successfully"})
}

// Block handles PATCH /api/users/{id}/block
func (h *UserHandler) Block(w http.ResponseWriter, r *http.Request) {
	var req request.BlockUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.IsBlocked == nil {
		WriteError(w, NewInvalidRequestError("isBlocked field is required"))
		return
	}

	account, err := h.accounts.SetBlocked(r.Context(), accountID(r), *req.IsBlocked)
	if err != nil {
		WriteError(w, err)
		return
	}

	msg := "User unblocked successfully"
	if account.Blocked {
		msg = "User blocked successfully"
	}
	response.JSON(w, http.StatusOK, response.UserMessage{
		Message: msg,
		User:    response.UserFromModel(account),
	})
}

func accountID(r *http.Request) model.AccountID {
	return model.AccountID(mux.Vars(r)["id"])
}
