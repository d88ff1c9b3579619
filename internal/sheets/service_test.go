package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_9/edit#gid=0")
	if err != nil || id != "1AbC-d_9" {
		t.Fatalf("extractSpreadsheetID() = %q, %v", id, err)
	}
	if _, err := extractSpreadsheetID("https://example.com/nothing"); err == nil {
		t.Fatalf("expected error for non-sheets URL")
	}
}

func TestParseDirectoryLine(t *testing.T) {
	got := parseDirectoryLine("UserID: 42 | First: Asha | Last:  | Username: @asha")
	want := []interface{}{"42", "Asha", "", "@asha"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
	if got := parseDirectoryLine("legacy line"); got[0] != "legacy line" || len(got) != 4 {
		t.Fatalf("legacy row = %v", got)
	}
}

type fakeSheetsAPI struct {
	mu      sync.Mutex
	calls   []string
	written [][]interface{}
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"spreadsheetId": "sheet-1",
			"sheets":        []interface{}{map[string]interface{}{"properties": map[string]interface{}{"title": "Other", "sheetId": 1}}},
		})
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		w.Write([]byte(`{"spreadsheetId":"sheet-1","replies":[{"addSheet":{"properties":{"title":"Users","sheetId":2}}}]}`))
	case strings.HasSuffix(r.URL.Path, ":clear"):
		w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	case r.Method == http.MethodPut:
		var body sheets.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.written = body.Values
		w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	default:
		http.NotFound(w, r)
	}
}

func TestExportUsersCreatesSheetAndWritesRows(t *testing.T) {
	api := &fakeSheetsAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("sheets.NewService() error = %v", err)
	}
	s := newService(svc, "sheet-1", "")
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	n, err := s.ExportUsers(context.Background(), []string{
		"UserID: 1 | First: Asha | Last: Rao | Username: @asha",
		"UserID: 2 | First: Ravi | Last:  | Username: @",
	})
	if err != nil {
		t.Fatalf("ExportUsers() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.calls) != 4 || !strings.HasSuffix(api.calls[1], ":batchUpdate") || !strings.HasSuffix(api.calls[2], ":clear") {
		t.Fatalf("calls = %v", api.calls)
	}
	if len(api.written) != 3 {
		t.Fatalf("written rows = %d, want header + 2", len(api.written))
	}
	if api.written[0][0] != "UserID" || api.written[1][0] != "1" || api.written[1][3] != "@asha" {
		t.Fatalf("written = %v", api.written)
	}
	if api.written[2][4] != "2024-05-01T12:00:00Z" {
		t.Fatalf("exported at = %v", api.written[2][4])
	}
}
