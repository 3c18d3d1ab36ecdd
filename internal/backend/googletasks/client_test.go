package googletasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"quicktodo/internal/service"
)

func TestHandle_StableAndBounded(t *testing.T) {
	ids := []string{"MTIzNDU2Nzg5", "dGFzay0y", "", "a-very-long-google-task-identifier"}
	seen := make(map[int64]string)
	for _, id := range ids {
		h := Handle(id)
		if h != Handle(id) {
			t.Errorf("handle for %q is not stable", id)
		}
		if h < 0 || h > handleMask {
			t.Errorf("handle %d for %q out of range", h, id)
		}
		if prev, ok := seen[h]; ok {
			t.Errorf("collision between %q and %q", prev, id)
		}
		seen[h] = id
	}
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Get \"...\": context deadline exceeded", "request timed out"},
		{"googleapi: Error 401: Invalid Credentials", "token expired or revoked (run: quicktodo login)"},
		{"googleapi: Error 404: Not Found", "not found"},
		{"boom", "boom"},
	}
	for _, tt := range tests {
		got := wrapError(errString(tt.in))
		if got.Error() != tt.want {
			t.Errorf("wrapError(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if wrapError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestClient_ListAndDelete(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/lists/@default/tasks"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]string{
					{"id": "abc", "title": "Buy milk", "status": "needsAction"},
					{"id": "def", "title": "File taxes", "status": "completed"},
				},
			})
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client, err := NewWithHTTPClient(ctx, srv.Client(), option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}

	got, err := client.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	want := []service.Task{
		{ID: Handle("abc"), Title: "Buy milk"},
		{ID: Handle("def"), Title: "File taxes", Completed: true},
	}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := client.DeleteTask(ctx, Handle("def")); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if deleted != "def" {
		t.Errorf("expected delete of def, got %q", deleted)
	}

	if err := client.DeleteTask(ctx, 42); err == nil {
		t.Error("expected error for unknown handle")
	}
}
