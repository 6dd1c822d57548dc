package http

import (
	"net/http"

	"expenex/internal/core"
	"expenex/internal/pages"
)

type dashboardView struct {
	State   pages.DashboardState
	Presets []core.RangePreset
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	st, err := s.workspaces.For(sess.ID).Dashboard.Refresh(r.Context(), sess)
	if s.unauthorized(w, r, sess, err) {
		return
	}
	s.renderPage(w, r, http.StatusOK, "dashboard", "Dashboard", "/dashboard",
		dashboardView{State: st, Presets: core.Presets()})
}

// handleDashboardSummary applies a range change and renders the summary
// fragment. Custom bounds are applied individually when only one was sent.
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	rq, err := ParseRangeQuery(r.URL.Query())
	if err != nil {
		BadRequestError("Unknown date range").Write(w)
		return
	}

	ctx := r.Context()
	sess := currentSession(r)
	d := s.workspaces.For(sess.ID).Dashboard

	var st pages.DashboardState
	switch {
	case !rq.Set:
		st, err = d.Refresh(ctx, sess)
	case rq.Preset != core.RangeCustom:
		st, err = d.Select(ctx, sess, rq.Preset)
	case rq.HasStart && rq.HasEnd:
		st, err = d.SetCustom(ctx, sess, rq.Start, rq.End)
	case rq.HasStart:
		st, err = d.SetCustomStart(ctx, sess, rq.Start)
	case rq.HasEnd:
		st, err = d.SetCustomEnd(ctx, sess, rq.End)
	default:
		st, err = d.Select(ctx, sess, core.RangeCustom)
	}
	if s.unauthorized(w, r, sess, err) {
		return
	}
	s.renderPartial(w, r, NewHTMXResponse(), "dashboard_summary",
		dashboardView{State: st, Presets: core.Presets()})
}
