package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"groundchat/internal/state"
)

// DebugHandler exposes the state manager's per-chat view for operators:
// profile, recency window and follow-up cache.
type DebugHandler struct {
	State *state.Manager
}

func (h *DebugHandler) Register(g *echo.Group) {
	g.GET("/chats", h.chats)
	g.GET("/chats/:id", h.chat)
	g.DELETE("/chats/:id/followup", h.clearFollowUp)
}

func (h *DebugHandler) chats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"chats": h.State.Chats()})
}

func (h *DebugHandler) chat(c echo.Context) error {
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chat id")
	}
	profile, window, followUp, err := h.State.Snapshot(c.Request().Context(), chatID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"profile":   profile,
		"window":    window,
		"follow_up": followUp,
	})
}

func (h *DebugHandler) clearFollowUp(c echo.Context) error {
	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chat id")
	}
	h.State.ClearFollowUp(chatID)
	return c.NoContent(http.StatusNoContent)
}
