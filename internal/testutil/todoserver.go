package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"quicktodo/internal/service"
)

// TodoServer mimics the /todos REST resource of the public demo API.
// Like the demo API it never persists writes: POST echoes the body with a
// fresh ID, PATCH echoes the merged task, DELETE returns an empty object.
type TodoServer struct {
	*httptest.Server

	mu       sync.Mutex
	tasks    []service.Task
	requests []*http.Request

	// FailStatus, when non-zero, is returned for every request.
	FailStatus int
}

// NewTodoServer starts a server serving tasks. It is closed on test cleanup.
func NewTodoServer(t *testing.T, tasks ...service.Task) *TodoServer {
	t.Helper()

	s := &TodoServer{tasks: service.CloneTasks(tasks)}

	router := mux.NewRouter()
	router.Use(s.record)
	router.HandleFunc("/todos", s.list).Methods(http.MethodGet)
	router.HandleFunc("/todos", s.create).Methods(http.MethodPost)
	router.HandleFunc("/todos/{id:[0-9]+}", s.update).Methods(http.MethodPatch)
	router.HandleFunc("/todos/{id:[0-9]+}", s.delete).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Requests returns the requests received so far.
func (s *TodoServer) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request, or nil.
func (s *TodoServer) LastRequest() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func (s *TodoServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(r.Context()))
		fail := s.FailStatus
		s.mu.Unlock()

		if fail != 0 {
			http.Error(w, http.StatusText(fail), fail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *TodoServer) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	tasks := service.CloneTasks(s.tasks)
	s.mu.Unlock()

	if limit, err := strconv.Atoi(r.URL.Query().Get("_limit")); err == nil && limit >= 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *TodoServer) create(w http.ResponseWriter, r *http.Request) {
	var in service.NewTask
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	id := int64(len(s.tasks) + 191)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, service.Task{ID: id, Title: in.Title, Completed: in.Completed})
}

func (s *TodoServer) update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	var in struct {
		Completed bool `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			t.Completed = in.Completed
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeJSON(w, http.StatusOK, service.Task{ID: id, Completed: in.Completed})
}

func (s *TodoServer) delete(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct{}{})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
