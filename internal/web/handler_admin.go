package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nrkitap/adboard/internal/domain"
	"github.com/nrkitap/adboard/internal/service"
)

func (s *Server) handleAdminLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, map[string]any{
		"Error": r.URL.Query().Get("err"),
	}, "base.html", "pages/admin_login.html")
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.AdminEnabled() {
		s.renderPage(w, http.StatusForbidden, map[string]any{
			"Error": "ADMIN_KEY is not configured",
		}, "base.html", "pages/admin_login.html")
		return
	}

	key := strings.TrimSpace(r.FormValue("key"))
	if !s.sessions.VerifyAdminKey(key) {
		s.renderPage(w, http.StatusUnauthorized, map[string]any{
			"Error": "wrong key",
		}, "base.html", "pages/admin_login.html")
		return
	}

	sess := s.sessions.FromRequest(r)
	sess.Admin = true
	if err := s.sessions.Write(w, sess); err != nil {
		http.Error(w, "failed to save session", http.StatusInternalServerError)
		s.logger.Error("write session failed", "error", err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(r)
	sess.Admin = false
	if err := s.sessions.Write(w, sess); err != nil {
		s.logger.Error("write session failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAdminIndex(w http.ResponseWriter, r *http.Request) {
	subs, err := s.service.List(r.Context(), 0)
	if err != nil {
		http.Error(w, "failed to load submissions", http.StatusInternalServerError)
		s.logger.Error("list submissions failed", "error", err)
		return
	}

	s.renderPage(w, http.StatusOK, map[string]any{
		"Submissions": subs,
		"Message":     r.URL.Query().Get("msg"),
	}, "base.html", "pages/admin_index.html")
}

func (s *Server) handleAdminNew(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, nil, "base.html", "pages/admin_new.html")
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	in := service.NewSubmission{
		Kind:        domain.Kind(strings.ToLower(strings.TrimSpace(r.FormValue("kind")))),
		Title:       r.FormValue("title"),
		Price:       r.FormValue("price"),
		Phone:       r.FormValue("phone"),
		Description: r.FormValue("description"),
		Password:    r.FormValue("password"),
	}
	if in.Kind == "" {
		in.Kind = domain.KindSell
	}
	if r.MultipartForm != nil {
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
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to create card", http.StatusInternalServerError)
		s.logger.Error("admin create failed", "error", err)
		return
	}

	http.Redirect(w, r, "/admin/edit/"+sub.ID, http.StatusSeeOther)
}

func (s *Server) handleAdminEdit(w http.ResponseWriter, r *http.Request) {
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
		"Submission": sub,
		"Photos":     photos,
		"Message":    r.URL.Query().Get("msg"),
	}, "base.html", "pages/admin_edit.html")
}

func (s *Server) handleAdminSave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.service.Update(r.Context(), id,
		r.FormValue("title"),
		r.FormValue("price"),
		r.FormValue("phone"),
		r.FormValue("description"),
		r.FormValue("password"),
	); err != nil {
		http.Error(w, "failed to save card", http.StatusInternalServerError)
		s.logger.Error("admin save failed", "id", id, "error", err)
		return
	}

	http.Redirect(w, r, "/admin/edit/"+id+"?msg="+url.QueryEscape("saved"), http.StatusSeeOther)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.service.Delete(r.Context(), id); err != nil {
		http.Error(w, "failed to delete card", http.StatusInternalServerError)
		s.logger.Error("admin delete failed", "id", id, "error", err)
		return
	}

	http.Redirect(w, r, "/admin?msg="+url.QueryEscape("deleted "+id), http.StatusSeeOther)
}

func (s *Server) handleAdminUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	var photos []service.PhotoFile
	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["photos"] {
			if fh.Filename == "" {
				continue
			}
			photos = append(photos, service.PhotoFile{
				Name: fh.Filename,
				Size: fh.Size,
				Open: func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}

	n, err := s.service.AddPhotos(r.Context(), id, photos)
	if err != nil {
		if service.IsValidation(err) {
			http.Redirect(w, r, "/admin/edit/"+id+"?msg="+url.QueryEscape(err.Error()), http.StatusSeeOther)
			return
		}
		http.Error(w, "failed to store photos", http.StatusInternalServerError)
		s.logger.Error("admin upload failed", "id", id, "error", err)
		return
	}

	s.logger.Info("admin uploaded photos", "id", id, "count", n)
	http.Redirect(w, r, "/admin/edit/"+id, http.StatusSeeOther)
}

func (s *Server) handleAdminPhotoDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	file := r.PathValue("file")

	if err := s.service.RemovePhoto(r.Context(), id, file); err != nil {
		http.Error(w, "failed to delete photo", http.StatusInternalServerError)
		s.logger.Error("admin photo delete failed", "id", id, "file", file, "error", err)
		return
	}

	http.Redirect(w, r, "/admin/edit/"+id, http.StatusSeeOther)
}

func (s *Server) handleAdminCSV(w http.ResponseWriter, r *http.Request) {
	rc, err := s.service.ExportCSV(r.Context())
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(rc, "csv export", s.logger)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="submissions.csv"`)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("write csv export failed", "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
