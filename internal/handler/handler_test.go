package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"playmatch/matchmaster/internal/lobby"
	"playmatch/matchmaster/internal/rooms"
	"playmatch/matchmaster/internal/spawn"

	"github.com/gin-gonic/gin"
)

func recordError(write func(*gin.Context, error), err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	write(c, err)
	return w
}

func TestWriteLobbyError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&lobby.Rejection{Kind: lobby.RejectInvalid, Reason: "Invalid team"}, http.StatusBadRequest},
		{&lobby.Rejection{Kind: lobby.RejectForbidden, Reason: "No"}, http.StatusForbidden},
		{&lobby.Rejection{Kind: lobby.RejectConflict, Reason: "Busy"}, http.StatusConflict},
		{lobby.ErrLobbyNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", errNoLobby), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if w := recordError(writeLobbyError, tt.err); w.Code != tt.want {
			t.Fatalf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestWriteSpawnError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: abc", spawn.ErrTaskNotFound), http.StatusNotFound},
		{rooms.ErrRoomNotFound, http.StatusNotFound},
		{spawn.ErrInvalidCode, http.StatusForbidden},
		{fmt.Errorf("%w: expired", rooms.ErrAccessDenied), http.StatusForbidden},
		{spawn.ErrTaskState, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if w := recordError(writeSpawnError, tt.err); w.Code != tt.want {
			t.Fatalf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestPaginateSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := PaginateSlice(items, 2, 2)
	if len(page.Data) != 2 || page.Data[0] != 3 || page.Meta.TotalPages != 3 || page.Meta.TotalItems != 5 {
		t.Fatalf("page 2 = %+v", page)
	}
	last := PaginateSlice(items, 3, 2)
	if len(last.Data) != 1 || last.Data[0] != 5 {
		t.Fatalf("page 3 = %+v", last)
	}
	beyond := PaginateSlice(items, 9, 2)
	if beyond.Data == nil || len(beyond.Data) != 0 {
		t.Fatalf("page 9 = %+v", beyond)
	}
}

func TestPageParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query       string
		page, limit int
	}{
		{"", 1, defaultPageSize},
		{"?page=3&limit=20", 3, 20},
		{"?page=-1&limit=abc", 1, defaultPageSize},
		{"?limit=1000", 1, maxPageSize},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
		page, limit := pageParams(c)
		if page != tt.page || limit != tt.limit {
			t.Fatalf("%q: got %d/%d, want %d/%d", tt.query, page, limit, tt.page, tt.limit)
		}
	}
}
