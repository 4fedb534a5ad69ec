package http

import (
	"net/http"
	"strconv"

	"moneta/internal/core"
	applog "moneta/internal/log"
)

// handleTransactions lists (GET) or creates (POST) transactions.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

// handleTransaction reads, updates or deletes one transaction.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		t, err := s.svc.Transactions.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, applog.OpRead, err)
			return
		}
		NewResponse().JSON(newTransactionView(t)).Write(w)
	case http.MethodPut:
		s.updateTransaction(w, r, id)
	case http.MethodDelete:
		if err := s.svc.Transactions.Delete(r.Context(), id); err != nil {
			s.writeError(w, r, applog.OpDelete, err)
			return
		}
		s.invalidate()
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted",
			applog.FieldTxID, id,
			applog.FieldOperation, applog.OpDelete)
		NewResponse().
			Status(http.StatusNoContent).
			TriggerTransactionsChanged(applog.OpDelete).
			Write(w)
	default:
		MethodNotAllowedError("GET, PUT, DELETE").Write(w)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query(), s.cfg.Now())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	txs, err := s.svc.Transactions.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(newTransactionViews(txs)).Write(w)
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := ParseTransaction(NewRequestBodyParser(r), s.today())
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}

	saved, err := s.svc.Transactions.Create(r.Context(), t)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	s.invalidate()

	s.events.LogTransactionSaved(r.Context(), applog.OpCreate, saved.ID, string(saved.Type),
		saved.Amount.Cents, saved.CategoryID, saved.Date.String())

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+strconv.FormatInt(saved.ID, 10)).
		TriggerTransactionsChanged(applog.OpCreate).
		TriggerFormReset().
		TriggerSuccessNotification(title(saved.Type) + " of " + core.FormatCurrency(saved.Amount.Cents) + " saved").
		JSON(newTransactionView(saved)).
		Write(w)
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request, id int64) {
	t, err := ParseTransaction(NewRequestBodyParser(r), s.today())
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	t.ID = id

	saved, err := s.svc.Transactions.Update(r.Context(), t)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.invalidate()

	s.events.LogTransactionSaved(r.Context(), applog.OpUpdate, saved.ID, string(saved.Type),
		saved.Amount.Cents, saved.CategoryID, saved.Date.String())

	NewResponse().
		TriggerTransactionsChanged(applog.OpUpdate).
		JSON(newTransactionView(saved)).
		Write(w)
}

// handleCategories lists categories, optionally narrowed by ?type=.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	t, err := core.ParseFilterType(r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, r, applog.OpList, badRequest("invalid type %q", r.URL.Query().Get("type")))
		return
	}
	cats, err := s.svc.Transactions.Categories(r.Context(), t)
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(newCategoryViews(cats)).Write(w)
}
