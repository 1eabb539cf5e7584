package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ShayCichocki/tasktalk/internal/tools"
	"github.com/ShayCichocki/tasktalk/pkg/models"
)

const maxBodyBytes = 1 << 20

type createTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type deleteTodoResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListAll(r.Context())
	if err != nil {
		s.storageError(w, "list todos", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	task, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storageError(w, "get todo", err)
		return
	}
	if task == nil {
		writeDetail(w, http.StatusNotFound, "Todo not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "title is required")
		return
	}
	title, err := tools.ValidateTitle(*req.Title)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}

	task, err := s.store.Insert(r.Context(), title, req.Description)
	if err != nil {
		s.storageError(w, "create todo", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	var req updateTodoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	update := models.TaskUpdate{Description: req.Description}
	if req.Title != nil {
		title, err := tools.ValidateTitle(*req.Title)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, validationDetail(err))
			return
		}
		update.Title = &title
	}

	task, err := s.store.Update(r.Context(), id, update)
	if err != nil {
		s.storageError(w, "update todo", err)
		return
	}
	if task == nil {
		writeDetail(w, http.StatusNotFound, "Todo not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}

	task, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.storageError(w, "delete todo", err)
		return
	}
	if task == nil {
		writeDetail(w, http.StatusNotFound, "Todo not found")
		return
	}
	writeJSON(w, http.StatusOK, deleteTodoResponse{Message: "Todo deleted successfully", ID: id})
}

func (s *Server) storageError(w http.ResponseWriter, op string, err error) {
	log.Printf("[server] %s: %v", op, err)
	writeDetail(w, http.StatusInternalServerError, "Internal server error")
}

func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "todo id must be an integer")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		detail := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		writeDetail(w, http.StatusUnprocessableEntity, detail)
		return false
	}
	return true
}

func validationDetail(err error) string {
	return strings.TrimPrefix(err.Error(), tools.ErrValidation.Error()+": ")
}
