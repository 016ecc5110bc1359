package session

import (
	"errors"
	"testing"
	"time"

	"github.com/dbscope/dbscope/internal/favorites"
	"github.com/dbscope/dbscope/internal/models"
	"github.com/dbscope/dbscope/internal/protocol"
	"github.com/dbscope/dbscope/internal/rowedit"
	"github.com/dbscope/dbscope/internal/store"
)

// fakeCaller records issued calls and lets tests resolve them at any point,
// which makes races between responses and selection changes reproducible.
type pendingCall struct {
	method string
	params any
	result any
	done   func(error)
}

type fakeCaller struct {
	calls []*pendingCall
}

func (f *fakeCaller) Call(method string, params any, result any, done func(error)) {
	f.calls = append(f.calls, &pendingCall{method: method, params: params, result: result, done: done})
}

func (f *fakeCaller) byMethod(method string) []*pendingCall {
	var out []*pendingCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func resolveDatabaseList(t *testing.T, c *pendingCall, dbs ...models.DatabaseEntry) {
	t.Helper()
	resp, ok := c.result.(*protocol.DatabaseListResponse)
	if !ok {
		t.Fatalf("expected database list result, got %T", c.result)
	}
	resp.Databases = dbs
	c.done(nil)
}

func resolvePage(t *testing.T, c *pendingCall, total int) {
	t.Helper()
	resp, ok := c.result.(*protocol.GetTableDataResponse)
	if !ok {
		t.Fatalf("expected table data result, got %T", c.result)
	}
	resp.Columns = []string{"id"}
	resp.Values = [][]models.Value{{models.Bigint(1)}}
	resp.Count = 1
	resp.Total = total
	c.done(nil)
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}
}

func startedSession(t *testing.T) (*Session, *store.Store, *fakeCaller) {
	t.Helper()
	st := store.New()
	fake := &fakeCaller{}
	sess := New(st, fake, WithClock(fixedClock()))
	sess.Start()

	lists := fake.byMethod(protocol.MethodDatabaseList)
	if len(lists) != 1 {
		t.Fatalf("expected exactly one database list fetch at start, got %d", len(lists))
	}
	resolveDatabaseList(t, lists[0],
		models.DatabaseEntry{ID: 1, Name: "app", Tables: []string{"users", "orders"}},
	)
	return sess, st, fake
}

func TestStart_FetchesListThenPageAndStructure(t *testing.T) {
	_, st, fake := startedSession(t)

	state := st.Get()
	if state.SelectedDatabase != 1 || state.SelectedTable != "users" {
		t.Fatalf("expected default selection, got db=%d table=%q",
			state.SelectedDatabase, state.SelectedTable)
	}

	if got := fake.byMethod(protocol.MethodGetTableData); len(got) != 1 {
		t.Errorf("expected one page fetch after the list arrived, got %d", len(got))
	}
	if got := fake.byMethod(protocol.MethodGetTableStructure); len(got) != 1 {
		t.Errorf("expected one structure fetch after the list arrived, got %d", len(got))
	}
}

func TestNoFetchWithoutSelection(t *testing.T) {
	st := store.New()
	fake := &fakeCaller{}
	sess := New(st, fake)
	sess.Start()

	resolveDatabaseList(t, fake.byMethod(protocol.MethodDatabaseList)[0])

	if got := fake.byMethod(protocol.MethodGetTableData); len(got) != 0 {
		t.Errorf("no page fetch may be issued without a table selection, got %d", len(got))
	}
}

func TestDuplicateInflightFetchSuppressed(t *testing.T) {
	sess, _, fake := startedSession(t)

	// The page fetch for (1, users) is still pending. Further transitions
	// that leave the selection alone must not reissue it.
	sess.SetViewMode(models.ViewData)
	sess.SetViewMode(models.ViewData)

	if got := fake.byMethod(protocol.MethodGetTableData); len(got) != 1 {
		t.Errorf("expected the pending fetch to absorb re-evaluation, got %d calls", len(got))
	}
}

func TestStalePageResponseDiscarded(t *testing.T) {
	sess, st, fake := startedSession(t)

	// Selection moves on while the first page fetch is in flight.
	sess.SelectTable("orders")

	pages := fake.byMethod(protocol.MethodGetTableData)
	if len(pages) != 2 {
		t.Fatalf("expected a second fetch for the new table, got %d", len(pages))
	}

	// The late response for "users" arrives after the switch.
	resolvePage(t, pages[0], 500)

	if page := st.Get().CurrentPage; page != nil {
		t.Fatalf("late response for a superseded table must be discarded, got page for %q", page.Table)
	}

	resolvePage(t, pages[1], 7)
	page := st.Get().CurrentPage
	if page == nil || page.Table != "orders" {
		t.Fatalf("expected page for the current table, got %+v", page)
	}
}

func TestPageFetchCarriesSortAndOffset(t *testing.T) {
	sess, _, fake := startedSession(t)

	resolvePage(t, fake.byMethod(protocol.MethodGetTableData)[0], 500)
	sess.ToggleSort("id")
	resolvePage(t, fake.byMethod(protocol.MethodGetTableData)[1], 500)
	sess.ToggleSort("id") // up -> down

	pages := fake.byMethod(protocol.MethodGetTableData)
	last := pages[len(pages)-1]
	req, ok := last.params.(protocol.GetTableDataRequest)
	if !ok {
		t.Fatalf("expected table data request, got %T", last.params)
	}
	if req.Order != "id" || !req.Reverse {
		t.Errorf("expected descending sort on id, got order=%q reverse=%v", req.Order, req.Reverse)
	}
	if req.Count != models.PageSize {
		t.Errorf("expected page size %d, got %d", models.PageSize, req.Count)
	}
}

func TestFetchFailure_SurfacesErrorWithoutTightRetry(t *testing.T) {
	sess, st, fake := startedSession(t)

	pages := fake.byMethod(protocol.MethodGetTableData)
	pages[0].done(errors.New("table is locked"))

	if got := st.Get().Error; got != "table is locked" {
		t.Fatalf("expected surfaced error, got %q", got)
	}
	if got := fake.byMethod(protocol.MethodGetTableData); len(got) != 1 {
		t.Fatalf("a failed fetch must not retry on its own error transition, got %d calls", len(got))
	}

	// The next qualifying transition retries.
	sess.SetViewMode(models.ViewData)
	if got := fake.byMethod(protocol.MethodGetTableData); len(got) != 2 {
		t.Errorf("expected a retry on the next transition, got %d calls", len(got))
	}
}

func TestFetchFailureForStaleKeyIsDropped(t *testing.T) {
	sess, st, fake := startedSession(t)

	sess.SelectTable("orders")
	pages := fake.byMethod(protocol.MethodGetTableData)
	pages[0].done(errors.New("users went away"))

	if got := st.Get().Error; got != "" {
		t.Errorf("failure for a superseded selection must not surface, got %q", got)
	}
}

func TestDatabaseListFailure_RefreshRetries(t *testing.T) {
	st := store.New()
	fake := &fakeCaller{}
	sess := New(st, fake)
	sess.Start()

	fake.byMethod(protocol.MethodDatabaseList)[0].done(errors.New("connection reset"))

	state := st.Get()
	if state.Error != "connection reset" {
		t.Fatalf("expected surfaced error, got %q", state.Error)
	}
	if state.OutdatedDatabaseList {
		t.Fatal("failed list fetch must clear the outdated flag so refresh can re-arm it")
	}

	sess.Refresh()
	if got := fake.byMethod(protocol.MethodDatabaseList); len(got) != 2 {
		t.Errorf("expected refresh to reissue the list fetch, got %d calls", len(got))
	}
}

func TestTableInfoFetchedInDefinitionView(t *testing.T) {
	sess, st, fake := startedSession(t)

	// Structure resolved; info view with fresh structure issues no fetch.
	structs := fake.byMethod(protocol.MethodGetTableStructure)
	resp := structs[0].result.(*protocol.GetTableStructureResponse)
	resp.StructureColumns = []string{"column_name"}
	structs[0].done(nil)

	sess.SetViewMode(models.ViewTableInfo)
	if got := fake.byMethod(protocol.MethodGetTableInfo); len(got) != 0 {
		t.Fatalf("definition rides the structure guard, got %d calls", len(got))
	}

	// A refreshed selection makes structure stale again; now the info view
	// triggers both fetches.
	sess.SelectTable("orders")
	infos := fake.byMethod(protocol.MethodGetTableInfo)
	if len(infos) != 1 {
		t.Fatalf("expected one definition fetch, got %d", len(infos))
	}
	iresp := infos[0].result.(*protocol.GetTableInfoResponse)
	iresp.Definition = "CREATE TABLE orders (id INTEGER PRIMARY KEY)"
	infos[0].done(nil)

	if got := st.Get().TableInfo; got != "CREATE TABLE orders (id INTEGER PRIMARY KEY)" {
		t.Errorf("expected definition stored, got %q", got)
	}
}

func TestExecute_AppendsHistoryAtSubmission(t *testing.T) {
	sess, st, fake := startedSession(t)

	sess.Execute("SELECT * FROM users")
	sess.Execute("DELETE FROM users")

	execs := fake.byMethod(protocol.MethodExecute)
	if len(execs) != 2 {
		t.Fatalf("expected two executions, got %d", len(execs))
	}

	// First fails, second succeeds; both stay in history, in submission order.
	execs[0].done(errors.New("syntax error"))
	eresp := execs[1].result.(*protocol.ExecuteResponse)
	eresp.Type = models.ResultUpdateDelete
	eresp.AffectedCount = 3
	execs[1].done(nil)

	state := st.Get()
	if len(state.QueryHistory) != 2 {
		t.Fatalf("expected two history entries, got %d", len(state.QueryHistory))
	}
	if state.QueryHistory[0].Value != "SELECT * FROM users" ||
		state.QueryHistory[1].Value != "DELETE FROM users" {
		t.Errorf("history out of submission order: %+v", state.QueryHistory)
	}
	if state.QueryResult == nil || state.QueryResult.AffectedCount != 3 {
		t.Errorf("expected affected count 3, got %+v", state.QueryResult)
	}
}

func TestExecute_EmptyQueryNotRecorded(t *testing.T) {
	sess, st, fake := startedSession(t)

	sess.Execute("")

	if len(st.Get().QueryHistory) != 0 {
		t.Error("an empty submission must not enter the history")
	}
	if got := fake.byMethod(protocol.MethodExecute); len(got) != 1 {
		t.Errorf("the empty statement is still sent, got %d calls", len(got))
	}
}

func TestExecute_SelectOutcome(t *testing.T) {
	sess, st, fake := startedSession(t)

	sess.Execute("SELECT name FROM users")
	execs := fake.byMethod(protocol.MethodExecute)
	eresp := execs[0].result.(*protocol.ExecuteResponse)
	eresp.Type = models.ResultSelect
	eresp.Columns = []string{"name"}
	eresp.Values = [][]models.Value{{models.String("Ann")}}
	execs[0].done(nil)

	result := st.Get().QueryResult
	if result == nil || result.Kind != models.ResultSelect || len(result.Rows) != 1 {
		t.Fatalf("expected select result with one row, got %+v", result)
	}
}

func TestExecute_UnknownOutcomeSurfacedAsError(t *testing.T) {
	sess, st, fake := startedSession(t)

	sess.Execute("PRAGMA something")
	execs := fake.byMethod(protocol.MethodExecute)
	execs[0].result.(*protocol.ExecuteResponse).Type = "mystery"
	execs[0].done(nil)

	if st.Get().Error == "" {
		t.Error("an unrecognized outcome type must surface as an error")
	}
}

func editedState() store.State {
	s := store.NewState()
	s = store.UpdateDatabases(s, []models.DatabaseEntry{
		{ID: 1, Name: "app", Tables: []string{"users"}},
	})
	s.CurrentPage = &models.Page{
		DatabaseID: 1,
		Table:      "users",
		Columns:    []string{"id", "name"},
		Rows: [][]models.Value{
			{models.Bigint(7), models.String("Bob")},
		},
		Total:           1,
		HighlightedRows: []int{0},
	}
	s.CurrentStructure = &models.Structure{
		DatabaseID: 1,
		Table:      "users",
		Columns:    []string{"column_name", "data_type", "nullable", "default", "primary_key"},
		Rows: [][]models.Value{
			{models.String("id"), models.String("INTEGER"), models.Boolean(false), models.Null(), models.Boolean(true)},
			{models.String("name"), models.String("TEXT"), models.Boolean(true), models.Null(), models.Boolean(false)},
		},
	}
	return s
}

func strptr(s string) *string { return &s }

func TestApplyRowEdit_OptimisticPatchAndStatement(t *testing.T) {
	st := store.NewWith(editedState())
	fake := &fakeCaller{}
	sess := New(st, fake)

	sess.ApplyRowEdit(rowedit.Edit{"name": strptr("Robert")})

	page := st.Get().CurrentPage
	if got := page.Rows[0][1].Text(); got != "Robert" {
		t.Errorf("expected optimistic patch applied, got %q", got)
	}

	execs := fake.byMethod(protocol.MethodExecute)
	if len(execs) != 1 {
		t.Fatalf("expected one execute call, got %d", len(execs))
	}
	req := execs[0].params.(protocol.ExecuteRequest)
	want := `UPDATE "users" SET "name" = 'Robert' WHERE "id" = 7`
	if req.Value != want {
		t.Errorf("statement mismatch:\n got %s\nwant %s", req.Value, want)
	}
}

func TestApplyRowEdit_RemoteFailureKeepsPatch(t *testing.T) {
	st := store.NewWith(editedState())
	fake := &fakeCaller{}
	sess := New(st, fake)

	sess.ApplyRowEdit(rowedit.Edit{"name": strptr("Robert")})
	fake.byMethod(protocol.MethodExecute)[0].done(errors.New("readonly database"))

	state := st.Get()
	if state.Error != "readonly database" {
		t.Errorf("expected surfaced error, got %q", state.Error)
	}
	if got := state.CurrentPage.Rows[0][1].Text(); got != "Robert" {
		t.Errorf("the optimistic patch stays until the next refetch, got %q", got)
	}
}

func TestApplyRowEdit_NoHighlightIsNoop(t *testing.T) {
	seed := editedState()
	seed.CurrentPage.HighlightedRows = nil
	st := store.NewWith(seed)
	fake := &fakeCaller{}
	sess := New(st, fake)

	sess.ApplyRowEdit(rowedit.Edit{"name": strptr("Robert")})

	if len(fake.calls) != 0 {
		t.Errorf("edit without a highlighted row must not reach the agent, got %d calls", len(fake.calls))
	}
}

func TestToggleFavorite_Persisted(t *testing.T) {
	dir := t.TempDir()
	mgr := favorites.NewManager(dir)

	seed := store.NewState()
	seed.Query = &models.Query{Value: "SELECT 1"}
	st := store.NewWith(seed)
	sess := New(st, &fakeCaller{}, WithFavorites(mgr))

	sess.ToggleFavorite()

	saved, err := mgr.Load()
	if err != nil {
		t.Fatalf("load favorites: %v", err)
	}
	if len(saved) != 1 || saved[0] != "SELECT 1" {
		t.Fatalf("expected persisted favorite, got %v", saved)
	}

	sess.ToggleFavorite()
	saved, err = mgr.Load()
	if err != nil {
		t.Fatalf("load favorites: %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("expected favorite removed from disk, got %v", saved)
	}
}

func TestStart_LoadsPersistedFavorites(t *testing.T) {
	dir := t.TempDir()
	mgr := favorites.NewManager(dir)
	if err := mgr.Save([]string{"SELECT 1", "SELECT 2"}); err != nil {
		t.Fatalf("seed favorites: %v", err)
	}

	st := store.New()
	sess := New(st, &fakeCaller{}, WithFavorites(mgr))
	sess.Start()

	if got := st.Get().Favorites; len(got) != 2 {
		t.Errorf("expected favorites loaded at start, got %v", got)
	}
}

func TestGoToRow_TriggersRefetchAtClampedOffset(t *testing.T) {
	sess, _, fake := startedSession(t)
	resolvePage(t, fake.byMethod(protocol.MethodGetTableData)[0], 120)

	sess.GoToRow(1000)

	pages := fake.byMethod(protocol.MethodGetTableData)
	req := pages[len(pages)-1].params.(protocol.GetTableDataRequest)
	if req.Start != 70 {
		t.Errorf("expected clamped offset 70, got %d", req.Start)
	}
}
