package http

import (
	"net/http"

	"moneybook/internal/core"
	"moneybook/internal/log"
)

type categoriesView struct {
	Income  []core.Category
	Expense []core.Category
	Filter  string
	Form    categoryForm
}

type categoryEditView struct {
	ID   string
	Form categoryForm
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.showCategories(w, r, http.StatusOK, newCategoryForm(), "")
}

func (s *Server) showCategories(w http.ResponseWriter, r *http.Request, status int, form categoryForm, formErr string) {
	filter, err := core.ParseTransactionType(r.URL.Query().Get("type"))
	if err != nil {
		filter = ""
	}
	cats, err := s.ledger.ListCategories(r.Context(), filter)
	if err != nil {
		s.failed(w, r, log.OpList, err)
		return
	}
	view := categoriesView{Filter: string(filter), Form: form}
	for _, c := range cats {
		if c.Type == core.Income {
			view.Income = append(view.Income, c)
		} else {
			view.Expense = append(view.Expense, c)
		}
	}
	s.render(w, r, status, "categories.html", pageData{
		Title:  "Categories",
		Active: "categories",
		Error:  formErr,
		Data:   view,
	})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	in, form, err := ParseCategoryForm(r.PostForm)
	if err == nil {
		_, err = s.ledger.CreateCategory(r.Context(), in)
	}
	if err != nil {
		if s.formFailed(w, r, err) {
			return
		}
		s.showCategories(w, r, errorStatus(err), form, userMessage(err))
		return
	}
	redirectWithFlash(w, r, "/categories", FlashSuccess, "Category saved")
}

func (s *Server) handleEditCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.ledger.GetCategory(r.Context(), id)
	if err != nil {
		s.failed(w, r, log.OpRead, err)
		return
	}
	s.render(w, r, http.StatusOK, "category_edit.html", pageData{
		Title:  "Edit category",
		Active: "categories",
		Data:   categoryEditView{ID: id, Form: categoryFormFrom(c)},
	})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	in, form, err := ParseCategoryForm(r.PostForm)
	if err == nil {
		_, err = s.ledger.UpdateCategory(r.Context(), id, in)
	}
	if err != nil {
		if s.formFailed(w, r, err) {
			return
		}
		s.render(w, r, errorStatus(err), "category_edit.html", pageData{
			Title:  "Edit category",
			Active: "categories",
			Error:  userMessage(err),
			Data:   categoryEditView{ID: id, Form: form},
		})
		return
	}
	redirectWithFlash(w, r, "/categories", FlashSuccess, "Category updated")
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCategory(r.Context(), r.PathValue("id")); err != nil {
		if s.formFailed(w, r, err) {
			return
		}
		redirectWithFlash(w, r, "/categories", FlashError, userMessage(err))
		return
	}
	redirectWithFlash(w, r, "/categories", FlashSuccess, "Category deleted")
}
