package http

import (
	"net/http"

	"moneybook/internal/api"
	"moneybook/internal/core"
	"moneybook/internal/log"
	"moneybook/internal/services"
)

type transactionsView struct {
	Transactions []core.Transaction
	Categories   []core.Category
	Filter       filterForm
	Form         transactionForm
	Years        []int
	TotalIncome  core.Money
	TotalExpense core.Money
}

type transactionEditView struct {
	ID         string
	Form       transactionForm
	Categories []core.Category
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.showTransactions(w, r, http.StatusOK, newTransactionForm(s.now()), "")
}

// showTransactions renders the listing with form prefilled, used both for
// the plain page and for a rejected create.
func (s *Server) showTransactions(w http.ResponseWriter, r *http.Request, status int, form transactionForm, formErr string) {
	filter, filterView := ParseTransactionFilter(r.URL.Query(), s.now())
	txs, err := s.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		s.failed(w, r, log.OpList, err)
		return
	}
	cats, err := s.ledger.ListCategories(r.Context(), "")
	if err != nil {
		s.failed(w, r, log.OpList, err)
		return
	}
	view := transactionsView{
		Transactions: txs,
		Categories:   cats,
		Filter:       filterView,
		Form:         form,
		Years:        yearChoices(s.now().Year()),
	}
	for _, t := range txs {
		switch t.Type {
		case core.Income:
			view.TotalIncome = view.TotalIncome.Add(t.Amount)
		case core.Expense:
			view.TotalExpense = view.TotalExpense.Add(t.Amount)
		}
	}
	s.render(w, r, status, "transactions.html", pageData{
		Title:  "Transactions",
		Active: "transactions",
		Error:  formErr,
		Data:   view,
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	in, form, err := ParseTransactionForm(r.PostForm)
	if err == nil {
		_, err = s.ledger.CreateTransaction(r.Context(), in)
	}
	if err != nil {
		if s.formFailed(w, r, err) {
			return
		}
		s.showTransactions(w, r, errorStatus(err), form, userMessage(err))
		return
	}
	redirectWithFlash(w, r, "/transactions", FlashSuccess, "Transaction saved")
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		s.failed(w, r, log.OpRead, err)
		return
	}
	s.showTransactionEdit(w, r, http.StatusOK, id, transactionFormFrom(t), "")
}

func (s *Server) showTransactionEdit(w http.ResponseWriter, r *http.Request, status int, id string, form transactionForm, formErr string) {
	cats, err := s.ledger.ListCategories(r.Context(), "")
	if err != nil {
		s.failed(w, r, log.OpList, err)
		return
	}
	s.render(w, r, status, "transaction_edit.html", pageData{
		Title:  "Edit transaction",
		Active: "transactions",
		Error:  formErr,
		Data:   transactionEditView{ID: id, Form: form, Categories: cats},
	})
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	in, form, err := ParseTransactionForm(r.PostForm)
	if err == nil {
		_, err = s.ledger.UpdateTransaction(r.Context(), id, in)
	}
	if err != nil {
		if s.formFailed(w, r, err) {
			return
		}
		s.showTransactionEdit(w, r, errorStatus(err), id, form, userMessage(err))
		return
	}
	redirectWithFlash(w, r, "/transactions", FlashSuccess, "Transaction updated")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		if s.formFailed(w, r, err) {
			return
		}
		redirectWithFlash(w, r, "/transactions", FlashError, userMessage(err))
		return
	}
	redirectWithFlash(w, r, "/transactions", FlashSuccess, "Transaction deleted")
}

// formFailed handles the errors a form cannot recover from and reports
// whether the response has been written.
func (s *Server) formFailed(w http.ResponseWriter, r *http.Request, err error) bool {
	if api.IsUnauthorized(err) {
		s.signOut(w, r, api.Message(err))
		return true
	}
	if !services.IsValidation(err) && !isInputError(err) {
		s.logFor(r).WarnContext(r.Context(), "Form submission failed",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, api.StatusCode(err),
			log.FieldError, err)
	}
	return false
}

// yearChoices lists the selectable years, newest first.
func yearChoices(current int) []int {
	years := make([]int, 0, 6)
	for y := current; y > current-6; y-- {
		years = append(years, y)
	}
	return years
}
