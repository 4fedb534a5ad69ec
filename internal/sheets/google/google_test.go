package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"moneta/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	testSpreadsheet = "sid"
	testSheet       = "Transactions"
	testSheetID     = 7
)

// fakeSheet serves the subset of the Sheets v4 REST API the client uses,
// backed by an in-memory grid.
type fakeSheet struct {
	mu          sync.Mutex
	rows        [][]string
	inputModes  []string
	batchCalls  int
	unsupported []string
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	base := "/v4/spreadsheets/" + testSpreadsheet
	valuesPrefix := base + "/values/" + testSheet + "!"
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && path == base:
		writeJSON(w, map[string]interface{}{
			"sheets": []interface{}{
				map[string]interface{}{"properties": map[string]interface{}{"sheetId": 3, "title": "Other"}},
				map[string]interface{}{"properties": map[string]interface{}{"sheetId": testSheetID, "title": testSheet}},
			},
		})

	case r.Method == http.MethodPost && path == base+":batchUpdate":
		f.batchCalls++
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rq := range req.Requests {
			d := rq.DeleteDimension
			if d == nil || d.Range.SheetId != testSheetID || d.Range.Dimension != "ROWS" {
				http.Error(w, "unexpected batch request", http.StatusBadRequest)
				return
			}
			f.rows = append(f.rows[:d.Range.StartIndex], f.rows[d.Range.EndIndex:]...)
		}
		writeJSON(w, map[string]interface{}{"spreadsheetId": testSpreadsheet})

	case strings.HasPrefix(path, valuesPrefix):
		f.values(w, r, strings.TrimPrefix(path, valuesPrefix))

	default:
		f.unsupported = append(f.unsupported, r.Method+" "+path)
		http.NotFound(w, r)
	}
}

func (f *fakeSheet) values(w http.ResponseWriter, r *http.Request, rng string) {
	switch {
	case r.Method == http.MethodGet && rng == "A:A":
		col := make([][]interface{}, 0, len(f.rows))
		for _, row := range f.rows {
			if len(row) == 0 {
				col = append(col, []interface{}{})
				continue
			}
			col = append(col, []interface{}{row[0]})
		}
		writeJSON(w, map[string]interface{}{"range": testSheet + "!A:A", "values": col})

	case r.Method == http.MethodPut:
		f.inputModes = append(f.inputModes, r.URL.Query().Get("valueInputOption"))
		values, ok := decodeValues(w, r)
		if !ok {
			return
		}
		if rng == "A1" {
			f.rows = values
		} else {
			var from, to int
			if _, err := fmt.Sscanf(rng, "A%d:G%d", &from, &to); err != nil || from != to || from > len(f.rows) {
				http.Error(w, "bad range "+rng, http.StatusBadRequest)
				return
			}
			f.rows[from-1] = values[0]
		}
		writeJSON(w, map[string]interface{}{"updatedRange": testSheet + "!" + rng})

	case r.Method == http.MethodPost && rng == "A:G:append":
		f.inputModes = append(f.inputModes, r.URL.Query().Get("valueInputOption"))
		values, ok := decodeValues(w, r)
		if !ok {
			return
		}
		f.rows = append(f.rows, values...)
		writeJSON(w, map[string]interface{}{"spreadsheetId": testSpreadsheet})

	case r.Method == http.MethodPost && rng == "A:G:clear":
		f.rows = nil
		writeJSON(w, map[string]interface{}{"clearedRange": testSheet + "!A:G"})

	default:
		f.unsupported = append(f.unsupported, r.Method+" values "+rng)
		http.NotFound(w, r)
	}
}

// snapshot copies the grid so tests never read it while a handler runs.
func (f *fakeSheet) snapshot() (rows [][]string, inputModes []string, batchCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows = make([][]string, len(f.rows))
	for i, row := range f.rows {
		rows[i] = append([]string(nil), row...)
	}
	return rows, append([]string(nil), f.inputModes...), f.batchCalls
}

func decodeValues(w http.ResponseWriter, r *http.Request) ([][]string, bool) {
	var vr gsheet.ValueRange
	if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		for _, v := range row {
			out[i] = append(out[i], fmt.Sprint(v))
		}
	}
	return out, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	t.Cleanup(func() {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		if len(fake.unsupported) > 0 {
			t.Errorf("unexpected requests: %v", fake.unsupported)
		}
	})
	return &Client{svc: svc, spreadsheetID: testSpreadsheet, sheetName: testSheet}, fake
}

func sheetTx(id int64, desc string) core.Transaction {
	return core.Transaction{
		ID:           id,
		Amount:       core.Money{Cents: id * 100},
		Type:         core.Expense,
		Description:  desc,
		Date:         core.NewDate(2025, 3, int(id)),
		CreatedAt:    time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		CategoryName: "Food & Dining",
	}
}

func ids(rows [][]string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row[0])
	}
	return out
}

func TestClientReplaceWritesHeaderAndRows(t *testing.T) {
	c, fake := newFakeClient(t)
	fake.rows = [][]string{{"stale"}, {"99"}}

	if err := c.Replace(context.Background(), []core.Transaction{sheetTx(1, "a"), sheetTx(2, "b")}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows, _, _ := fake.snapshot()
	if got := strings.Join(ids(rows), ","); got != "ID,1,2" {
		t.Fatalf("sheet ids = %s", got)
	}
	if got := rows[2][2]; got != "2.00" {
		t.Fatalf("amount column = %q", got)
	}
}

func TestClientUpsertUpdatesOrAppends(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()
	if err := c.Replace(ctx, []core.Transaction{sheetTx(1, "a"), sheetTx(2, "b")}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := c.Upsert(ctx, sheetTx(2, "edited")); err != nil {
		t.Fatalf("upsert existing: %v", err)
	}
	if rows, _, _ := fake.snapshot(); len(rows) != 3 || rows[2][5] != "edited" {
		t.Fatalf("existing row not updated in place: %v", rows)
	}

	if err := c.Upsert(ctx, sheetTx(3, "new")); err != nil {
		t.Fatalf("upsert new: %v", err)
	}
	rows, _, _ := fake.snapshot()
	if got := strings.Join(ids(rows), ","); got != "ID,1,2,3" {
		t.Fatalf("sheet ids = %s", got)
	}
}

func TestClientDeleteRemovesMatchingRow(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()
	if err := c.Replace(ctx, []core.Transaction{sheetTx(1, "a"), sheetTx(2, "b"), sheetTx(3, "c")}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := c.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, _, _ := fake.snapshot()
	if got := strings.Join(ids(rows), ","); got != "ID,1,3" {
		t.Fatalf("sheet ids after delete = %s", got)
	}

	if err := c.Delete(ctx, 42); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, _, calls := fake.snapshot(); calls != 1 {
		t.Fatalf("missing id should not issue a batch update, got %d calls", calls)
	}
}

func TestClientWritesValuesVerbatim(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()
	formula := `=HYPERLINK("http://example.com","x")`

	if err := c.Replace(ctx, []core.Transaction{sheetTx(1, formula)}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := c.Upsert(ctx, sheetTx(1, "+1 plain")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := c.Upsert(ctx, sheetTx(2, formula)); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, modes, _ := fake.snapshot()
	if len(modes) != 3 {
		t.Fatalf("expected 3 writes, got %v", modes)
	}
	for i, mode := range modes {
		if mode != "RAW" {
			t.Errorf("write %d used valueInputOption %q", i, mode)
		}
	}
	if got := rows[2][5]; got != formula {
		t.Fatalf("description stored as %q", got)
	}
}
