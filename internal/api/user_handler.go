package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/stack-api/internal/api/shared"
	"github.com/phrazzld/stack-api/internal/service"
	"github.com/phrazzld/stack-api/internal/store"
)

// UserHandler handles the /users endpoints.
type UserHandler struct {
	users  service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With(slog.String("component", "user_handler")),
	}
}

// List handles GET /users/.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := paginationParams(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}

	users, count, err := h.users.ListUsers(r.Context(), skip, limit)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	resp := UsersPublic{Data: make([]UserPublic, 0, len(users)), Count: count}
	for _, u := range users {
		resp.Data = append(resp.Data, userToPublic(u))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Create handles POST /users/.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserCreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	user, err := h.users.CreateUser(r.Context(), service.UserCreate{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		IsActive:    isActive,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			shared.RespondWithError(w, r, http.StatusBadRequest,
				"The user with this email already exists in the system.")
			return
		}
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
}

// UpdateMe handles PATCH /users/me.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req UserUpdateMeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.UpdateMe(r.Context(), current.ID, service.UserUpdateMe{
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			shared.RespondWithError(w, r, http.StatusConflict, "User with this email already exists")
			return
		}
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
}

// UpdatePassword handles PATCH /users/me/password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req UpdatePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.users.UpdatePassword(r.Context(), current.ID, req.CurrentPassword, req.NewPassword); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

// DeleteMe handles DELETE /users/me.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.users.DeleteMe(r.Context(), current); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

// Signup handles POST /users/signup.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req UserRegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), service.UserCreate{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			shared.RespondWithError(w, r, http.StatusBadRequest,
				"The user with this email already exists in the system")
			return
		}
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
}

// Activate handles POST /users/activate.
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Activate(r.Context(), req.Token)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
}

// Get handles GET /users/{id}. Users may read themselves; anyone else
// requires a superuser.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}
	if id == current.ID {
		shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(current))
		return
	}
	if !current.IsSuperuser {
		shared.RespondWithError(w, r, http.StatusForbidden, "The user doesn't have enough privileges")
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "User not found")
			return
		}
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
}

// Update handles PATCH /users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UserUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.UpdateUser(r.Context(), id, service.UserUpdate{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		IsActive:    req.IsActive,
		IsSuperuser: req.IsSuperuser,
	})
	switch {
	case err == nil:
		shared.RespondWithJSON(w, r, http.StatusOK, userToPublic(user))
	case errors.Is(err, store.ErrUserNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "The user with this id does not exist in the system")
	case errors.Is(err, store.ErrEmailExists):
		shared.RespondWithError(w, r, http.StatusConflict, "User with this email already exists")
	default:
		HandleAPIError(w, r, err)
	}
}

// Delete handles DELETE /users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	current, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := handlePathUUID(w, r, "id")
	if !ok {
		return
	}

	err := h.users.DeleteUser(r.Context(), current, id)
	switch {
	case err == nil:
		shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
	case errors.Is(err, store.ErrUserNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "User not found")
	default:
		HandleAPIError(w, r, err)
	}
}
