package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Dan9191/loan-control/internal/utils"
)

const flashCookie = "flash"

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (h *Handler) setFlash(w http.ResponseWriter, category, message string) {
	data, err := json.Marshal(Flash{Category: category, Message: message})
	if err != nil {
		h.log.Errorf("Failed to encode flash: %v", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    utils.Sign(string(data), h.cfg.SessionSecret),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash cookie. Unsigned or tampered values
// are dropped.
func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	value, err := utils.Verify(cookie.Value, h.cfg.SessionSecret)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal([]byte(value), &f); err != nil {
		return nil
	}
	return &f
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message, target string) {
	h.setFlash(w, "danger", message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) succeed(w http.ResponseWriter, r *http.Request, message, target string) {
	h.setFlash(w, "success", message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
