package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nrkitap/adboard/internal/domain"
	"github.com/nrkitap/adboard/internal/photostore"
	"github.com/nrkitap/adboard/internal/service"
)

// cardView decorates a submission for the public index.
type cardView struct {
	*domain.Submission
	ThumbURL string
	Unlocked bool
}

// formData refills the submission form after a validation failure.
type formData struct {
	Kind        string
	Title       string
	Price       string
	Phone       string
	Description string
}

type indexData struct {
	Cards   []*cardView
	Form    formData
	Error   string
	Message string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, indexData{
		Error:   r.URL.Query().Get("err"),
		Message: r.URL.Query().Get("msg"),
	})
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, data indexData) {
	subs, err := s.service.List(r.Context(), s.opts.MaxListings)
	if err != nil {
		http.Error(w, "failed to load listings", http.StatusInternalServerError)
		s.logger.Error("list submissions failed", "error", err)
		return
	}

	sess := s.sessions.FromRequest(r)
	cards := make([]*cardView, 0, len(subs))
	for _, sub := range subs {
		card := &cardView{
			Submission: sub,
			Unlocked:   sess.Admin || sess.HasUnlocked(sub.ID),
		}
		if len(sub.Photos) > 0 {
			card.ThumbURL = "/uploads/" + sub.ID + "/" + url.PathEscape(sub.Photos[0])
		}
		cards = append(cards, card)
	}
	data.Cards = cards

	s.renderPage(w, status, data, "base.html", "pages/index.html")
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			// Plain form post: a buy ad has no file input.
			if perr := r.ParseForm(); perr != nil {
				http.Error(w, "malformed form", http.StatusBadRequest)
				return
			}
		} else {
			s.renderIndex(w, r, http.StatusBadRequest, indexData{
				Error: "upload too large or malformed",
				Form:  readForm(r),
			})
			return
		}
	}

	in := service.NewSubmission{
		Kind:        domain.Kind(strings.ToLower(strings.TrimSpace(r.FormValue("kind")))),
		Title:       r.FormValue("title"),
		Price:       r.FormValue("price"),
		Phone:       r.FormValue("phone"),
		Description: r.FormValue("description"),
	}
	if in.Kind == domain.KindSell && r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["photos"] {
			if fh.Filename == "" {
				continue
			}
			in.Photos = append(in.Photos, service.PhotoFile{
				Name: fh.Filename,
				Size: fh.Size,
				Open: func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}

	sub, err := s.service.Create(r.Context(), in)
	if err != nil {
		if service.IsValidation(err) {
			s.renderIndex(w, r, http.StatusBadRequest, indexData{
				Error: err.Error(),
				Form:  readForm(r),
			})
			return
		}
		http.Error(w, "failed to save submission", http.StatusInternalServerError)
		s.logger.Error("create submission failed", "error", err)
		return
	}

	http.Redirect(w, r, "/thanks/"+sub.ID, http.StatusSeeOther)
}

func readForm(r *http.Request) formData {
	return formData{
		Kind:        r.FormValue("kind"),
		Title:       r.FormValue("title"),
		Price:       r.FormValue("price"),
		Phone:       r.FormValue("phone"),
		Description: r.FormValue("description"),
	}
}

func (s *Server) handleThanks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sub, err := s.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load submission", http.StatusInternalServerError)
		s.logger.Error("get submission failed", "id", id, "error", err)
		return
	}
	if sub == nil {
		http.NotFound(w, r)
		return
	}

	photos, err := s.photos.List(r.Context(), id)
	if err != nil {
		s.logger.Error("list photos failed", "id", id, "error", err)
	}

	s.renderPage(w, http.StatusOK, map[string]any{
		"ID":     sub.ID,
		"Kind":   sub.Kind,
		"Photos": photos,
	}, "base.html", "pages/thanks.html")
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sub, err := s.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load submission", http.StatusInternalServerError)
		s.logger.Error("get submission failed", "id", id, "error", err)
		return
	}
	if sub == nil {
		http.NotFound(w, r)
		return
	}

	ok, err := s.service.Unlock(r.Context(), id, strings.TrimSpace(r.FormValue("password")))
	if err != nil {
		http.Error(w, "failed to check password", http.StatusInternalServerError)
		s.logger.Error("unlock failed", "id", id, "error", err)
		return
	}
	if !ok {
		http.Redirect(w, r, "/?err="+url.QueryEscape("wrong password"), http.StatusSeeOther)
		return
	}

	sess := s.sessions.FromRequest(r)
	sess.AddUnlocked(id)
	if err := s.sessions.Write(w, sess); err != nil {
		http.Error(w, "failed to save session", http.StatusInternalServerError)
		s.logger.Error("write session failed", "error", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file := r.PathValue("file")

	sub, err := s.service.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load submission", http.StatusInternalServerError)
		s.logger.Error("get submission failed", "id", id, "error", err)
		return
	}
	if sub == nil {
		http.NotFound(w, r)
		return
	}

	// Locked cards keep their photos private until unlocked.
	if sub.Locked() {
		sess := s.sessions.FromRequest(r)
		if !sess.Admin && !sess.HasUnlocked(id) {
			http.Error(w, "card is locked", http.StatusForbidden)
			return
		}
	}

	rc, mimeType, err := s.photos.Open(r.Context(), id, file)
	if err != nil {
		if errors.Is(err, photostore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to open photo", http.StatusInternalServerError)
		s.logger.Error("open photo failed", "id", id, "file", file, "error", err)
		return
	}
	defer closeWithLog(rc, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("write photo failed", "id", id, "file", file, "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.Error("write health response failed", "error", err)
	}
}
