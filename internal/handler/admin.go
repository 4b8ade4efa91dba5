package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hems/examhall/internal/exam"
	"github.com/hems/examhall/internal/handler/views"
	appI18n "github.com/hems/examhall/internal/i18n"
	"github.com/hems/examhall/internal/model"
	"github.com/hems/examhall/internal/store"
)

// userInput is the admin form for a new account. Student accounts also
// get a student profile.
type userInput struct {
	Username    string         `json:"username" validate:"required,min=3,max=64"`
	DisplayName string         `json:"display_name" validate:"max=100"`
	Password    string         `json:"password" validate:"required,min=8,max=72"`
	Role        model.UserRole `json:"role" validate:"required,oneof=student coordinator admin"`
	FullName    string         `json:"full_name" validate:"required_if=Role student,max=200"`
	Email       string         `json:"email" validate:"omitempty,email"`
	Department  string         `json:"department" validate:"max=200"`
	YearOfStudy int            `json:"year_of_study" validate:"gte=0,lte=10"`
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, msg string) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, users)
		return
	}
	h.render(w, r, http.StatusOK, views.AdminUsersPage(users, msg, nil))
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, "")
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in userInput
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		in = userInput{
			Username:    strings.TrimSpace(r.FormValue("username")),
			DisplayName: strings.TrimSpace(r.FormValue("display_name")),
			Password:    r.FormValue("password"),
			Role:        model.UserRole(r.FormValue("role")),
			FullName:    strings.TrimSpace(r.FormValue("full_name")),
			Email:       strings.TrimSpace(r.FormValue("email")),
			Department:  strings.TrimSpace(r.FormValue("department")),
			YearOfStudy: formInt(r, "year_of_study"),
		}
	}
	if err := exam.Validate(in); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.store.GetUserByUsername(ctx, in.Username); err == nil {
		h.fail(w, r, &exam.ValidationError{Fields: map[string]string{"username": "already taken"}})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, err)
		return
	}

	cost := h.config.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		h.fail(w, r, fmt.Errorf("hash password: %w", err))
		return
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
		if in.FullName != "" {
			in.DisplayName = in.FullName
		}
	}

	id, err := h.store.CreateUser(ctx, model.User{
		Username:     in.Username,
		DisplayName:  in.DisplayName,
		PasswordHash: string(hash),
		Role:         in.Role,
		Active:       true,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if in.Role == model.UserRoleStudent {
		_, err := h.store.CreateStudent(ctx, model.Student{
			UserID:      id,
			FullName:    in.FullName,
			Email:       in.Email,
			Department:  in.Department,
			YearOfStudy: in.YearOfStudy,
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.logActivity(ctx, actor(r).ID, model.ActivityAdmin, "Created User: "+in.Username, r)
	done(w, r, "/admin/users", http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if id == actor(r).ID {
		h.fail(w, r, fmt.Errorf("deactivate own account: %w", exam.ErrForbidden))
		return
	}
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		h.fail(w, r, err)
		return
	}
	h.logActivity(r.Context(), actor(r).ID, model.ActivityAdmin, fmt.Sprintf("Toggled User: %d", id), r)
	done(w, r, "/admin/users", http.StatusOK, nil)
}

func (h *Handler) handleGradePending(w http.ResponseWriter, r *http.Request) {
	n, err := h.exams.GradePending(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]int{"graded": n})
		return
	}
	h.renderUsers(w, r, appI18n.Tp(r.Context(), "GradedCount", n))
}
