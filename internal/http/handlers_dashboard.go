package http

import (
	"context"
	"html/template"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"moneta/internal/core"
	applog "moneta/internal/log"
)

const recentTransactions = 5

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return core.FormatCurrency(m.Cents) },
	"title": title,
}

type rangeOption struct {
	Value    string
	Label    string
	Selected bool
}

func rangeOptions(selected string) []rangeOption {
	opts := []rangeOption{
		{Value: core.RangeAll, Label: "All time"},
		{Value: core.RangeWeek, Label: "Last 7 days"},
		{Value: core.RangeMonth, Label: "Last month"},
		{Value: core.RangeQuarter, Label: "Last 3 months"},
		{Value: core.RangeYear, Label: "Last year"},
	}
	if selected == "" {
		selected = core.RangeAll
	}
	for i := range opts {
		opts[i].Selected = opts[i].Value == selected
	}
	return opts
}

type dashboardData struct {
	Stats      core.Stats
	Recent     []core.Transaction
	Totals     []core.CategoryTotal
	Categories []core.Category
	Today      string
}

// loadDashboard fetches the dashboard sections concurrently.
func (s *Server) loadDashboard(ctx context.Context) (dashboardData, error) {
	data := dashboardData{Today: s.today().String()}
	all := core.Filter{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.cachedStats(gctx, all)
		data.Stats = stats
		return err
	})
	g.Go(func() error {
		recent, err := s.svc.Transactions.List(gctx, core.Filter{Limit: recentTransactions})
		data.Recent = recent
		return err
	})
	g.Go(func() error {
		totals, err := s.cachedCategoryTotals(gctx, all)
		data.Totals = totals
		return err
	})
	g.Go(func() error {
		cats, err := s.svc.Transactions.Categories(gctx, "")
		data.Categories = cats
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboardData{}, err
	}
	return data, nil
}

// handleDashboard renders the main dashboard page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := s.loadDashboard(ctx)
	if err != nil {
		s.events.LogError(ctx, "Dashboard load failed", err, applog.OpRender, applog.ErrorTypeDatabase, applog.NewFields())
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "index.html", data)
}

type transactionsPageData struct {
	Transactions []core.Transaction
	Stats        core.Stats
	Type         string
	Ranges       []rangeOption
}

// handleTransactionsPage renders the filterable transaction list.
func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	f, err := ParseFilter(r.URL.Query(), s.cfg.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data := transactionsPageData{
		Type:   string(f.Type),
		Ranges: rangeOptions(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("range")))),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.svc.Transactions.List(gctx, f)
		data.Transactions = txs
		return err
	})
	g.Go(func() error {
		stats, err := s.cachedStats(gctx, core.Filter{Type: f.Type, Range: f.Range})
		data.Stats = stats
		return err
	})
	if err := g.Wait(); err != nil {
		s.events.LogError(ctx, "Transactions page load failed", err, applog.OpList, applog.ErrorTypeDatabase, applog.NewFields())
		http.Error(w, "failed to load transactions", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "transactions.html", data)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err.Error(),
			"template", name)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// handleStats returns totals for the filtered transactions.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	f, err := ParseFilter(r.URL.Query(), s.cfg.Now())
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	stats, err := s.cachedStats(r.Context(), f)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(newStatsView(stats)).Write(w)
}

// handleCategoryTotals returns per-category totals, largest first.
func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	f, err := ParseFilter(r.URL.Query(), s.cfg.Now())
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	totals, err := s.cachedCategoryTotals(r.Context(), f)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(newCategoryTotalViews(totals)).Write(w)
}
