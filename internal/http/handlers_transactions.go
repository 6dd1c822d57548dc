package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"expenex/internal/core"
	"expenex/internal/log"
	"expenex/internal/pages"
)

type formView struct {
	Heading string
	Action  string
	Submit  string
	State   pages.FormState
}

func listPath(kind core.Kind) string { return "/" + string(kind) }

func (s *Server) handleList(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		st, err := s.workspaces.For(sess.ID).List(kind).Load(r.Context(), sess)
		if s.unauthorized(w, r, sess, err) {
			return
		}
		s.renderPage(w, r, http.StatusOK, "list", kind.Title(), listPath(kind), st)
	}
}

// handleListPartial re-renders the list fragment; ?retry=1 comes from the
// retry button of the failed state.
func (s *Server) handleListPartial(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		page := s.workspaces.For(sess.ID).List(kind)

		var (
			st  pages.ListState
			err error
		)
		if r.URL.Query().Get("retry") != "" {
			st, err = page.Retry(r.Context(), sess)
		} else {
			st, err = page.Load(r.Context(), sess)
		}
		if s.unauthorized(w, r, sess, err) {
			return
		}
		s.renderPartial(w, r, NewHTMXResponse(), "transaction_list", st)
	}
}

func (s *Server) handleDelete(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		id := chi.URLParam(r, "id")

		st, err := s.workspaces.For(sess.ID).List(kind).Delete(r.Context(), sess, id)
		if s.unauthorized(w, r, sess, err) {
			return
		}

		// Notice is only set when the delete itself failed; a failed reload
		// after a successful delete still counts as deleted.
		deleted := st.Notice == ""
		if deleted {
			s.appMetrics.deleted.Add(1)
		}
		if !isHTMX(r) {
			http.Redirect(w, r, listPath(kind), http.StatusSeeOther)
			return
		}

		b := NewHTMXResponse()
		if deleted {
			b.TriggerTransactionDeleted(kind, id).
				TriggerSuccessNotification(kind.Title() + " deleted successfully")
		} else {
			b.TriggerErrorNotification(st.Notice)
		}
		s.renderPartial(w, r, b, "transaction_list", st)
	}
}

func createView(kind core.Kind, st pages.FormState) formView {
	return formView{
		Heading: "Add " + kind.Title(),
		Action:  "/create-" + string(kind),
		Submit:  "Save",
		State:   st,
	}
}

func editView(kind core.Kind, id string, st pages.FormState) formView {
	return formView{
		Heading: "Edit " + kind.Title(),
		Action:  "/edit-" + string(kind) + "/" + id,
		Submit:  "Update",
		State:   st,
	}
}

func (s *Server) handleCreateForm(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		st := s.workspaces.For(sess.ID).Create(kind).Blank()
		s.renderPage(w, r, http.StatusOK, "form", "Add "+kind.Title(), listPath(kind), createView(kind, st))
	}
}

func (s *Server) handleCreate(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			BadRequestError("Invalid request format").Write(w)
			return
		}
		sess := currentSession(r)
		in := ParseFormInput(kind, r.PostForm)

		st, tx, err := s.workspaces.For(sess.ID).Create(kind).Submit(r.Context(), sess, in)
		if s.unauthorized(w, r, sess, err) {
			return
		}
		if err != nil {
			s.renderPage(w, r, statusFor(err), "form", "Add "+kind.Title(), listPath(kind), createView(kind, st))
			return
		}

		s.appMetrics.created.Add(1)
		log.FromContext(r.Context()).DebugContext(r.Context(), "Redirecting after create",
			log.FieldKind, string(kind),
			log.FieldTransactionID, tx.ID)
		http.Redirect(w, r, listPath(kind), http.StatusSeeOther)
	}
}

func (s *Server) handleEditForm(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		id := chi.URLParam(r, "id")

		st, err := s.workspaces.For(sess.ID).Edit(kind).Load(r.Context(), sess, id)
		if s.unauthorized(w, r, sess, err) {
			return
		}
		status := http.StatusOK
		if err != nil {
			status = statusFor(err)
		}
		s.renderPage(w, r, status, "form", "Edit "+kind.Title(), listPath(kind), editView(kind, id, st))
	}
}

func (s *Server) handleEdit(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			BadRequestError("Invalid request format").Write(w)
			return
		}
		sess := currentSession(r)
		id := chi.URLParam(r, "id")
		in := ParseFormInput(kind, r.PostForm)

		st, _, err := s.workspaces.For(sess.ID).Edit(kind).Submit(r.Context(), sess, id, in)
		if s.unauthorized(w, r, sess, err) {
			return
		}
		if err != nil {
			s.renderPage(w, r, statusFor(err), "form", "Edit "+kind.Title(), listPath(kind), editView(kind, id, st))
			return
		}

		s.appMetrics.updated.Add(1)
		http.Redirect(w, r, listPath(kind), http.StatusSeeOther)
	}
}
