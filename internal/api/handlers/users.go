// users.go — обработчики информации о текущем пользователе.
package handlers

import (
	"net/http"
)

// UserHandler — обработчики запросов о текущем пользователе.
type UserHandler struct{}

// NewUserHandler создаёт обработчик пользователей.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// groupsResponse — ответ со списком групп вызывающего.
type groupsResponse struct {
	Groups []string `json:"groups"`
}

// Groups — GET /api/v1/users/me/groups. Возвращает группы из токена.
func (h *UserHandler) Groups(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	groups := caller.Groups
	if groups == nil {
		groups = []string{}
	}
	writeJSON(w, http.StatusOK, groupsResponse{Groups: groups})
}
