package handler

import (
	"io"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/auth"
	"github.com/xenking/coffee-shop/internal/domain/profile"
)

const fullNameField = "full_name"

// updateProfile handles the JSON form of the update: {"full_name":"…"}.
func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, s *auth.Session) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	var name string
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		if key != fullNameField {
			return d.Skip()
		}
		v, err := d.Str()
		name = v
		return err
	}); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.profiles.UpdateName(r.Context(), s.UserID, name); err != nil {
		writeError(w, http.StatusBadRequest, profileMessage(r, err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("ok", func(e *jx.Encoder) { e.Bool(true) })
		})
	})
}

// updateProfileForm handles the browser form post and answers with
// redirects only.
func (h *Handler) updateProfileForm(w http.ResponseWriter, r *http.Request) {
	s, r, err := h.authenticate(r)
	if errors.Is(err, auth.ErrUnauthorized) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err != nil {
		zctx.From(r.Context()).Error("Session lookup failed", zap.Error(err))
		http.Redirect(w, r, "/profile?error="+url.QueryEscape("could not verify session"), http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/profile?error="+url.QueryEscape("invalid form"), http.StatusSeeOther)
		return
	}

	if err := h.profiles.UpdateName(r.Context(), s.UserID, r.PostForm.Get(fullNameField)); err != nil {
		if errors.Is(err, profile.ErrEmptyName) {
			http.Redirect(w, r, "/profile?error=empty", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/profile?error="+url.QueryEscape(profileMessage(r, err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/profile?updated=1", http.StatusSeeOther)
}

// profileMessage returns the user-facing text for a failed update. Storage
// details are logged, not shown.
func profileMessage(r *http.Request, err error) string {
	switch {
	case errors.Is(err, profile.ErrEmptyName), errors.Is(err, profile.ErrNameTooLong):
		return err.Error()
	default:
		zctx.From(r.Context()).Error("Profile update failed", zap.Error(err))
		return "could not save profile"
	}
}
