// Package session drives the synchronization between the local view model and
// the remote agent. On every store transition it decides which resources are
// stale, issues at most one in-flight fetch per resource kind, and merges
// responses back through the store's transition functions. Responses keyed to
// a selection that has since changed are discarded.
package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbscope/dbscope/internal/favorites"
	"github.com/dbscope/dbscope/internal/history"
	"github.com/dbscope/dbscope/internal/models"
	"github.com/dbscope/dbscope/internal/protocol"
	"github.com/dbscope/dbscope/internal/rowedit"
	"github.com/dbscope/dbscope/internal/store"
)

type resourceKind int

const (
	kindDatabaseList resourceKind = iota
	kindPage
	kindStructure
	kindTableInfo
)

// fetchKey identifies the selection a fetch was issued for. Implicit
// cancellation is key-based: superseded selections simply cause the eventual
// response to fail the key comparison at merge time.
type fetchKey struct {
	databaseID int
	table      string
}

// Session owns the fetch orchestration for one connected agent.
type Session struct {
	store     *store.Store
	client    protocol.Caller
	favorites *favorites.Manager
	history   *history.Store
	log       *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	inflight map[resourceKind]fetchKey

	historySeed int
}

// Option configures a Session.
type Option func(*Session)

// WithFavorites wires persistent favorites storage.
func WithFavorites(m *favorites.Manager) Option {
	return func(s *Session) { s.favorites = m }
}

// WithHistory wires persistent query history. seed entries are loaded into
// the in-memory history at Start.
func WithHistory(h *history.Store, seed int) Option {
	return func(s *Session) {
		s.history = h
		s.historySeed = seed
	}
}

// WithLogger replaces the default no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session over st and client. Call Start to begin syncing.
func New(st *store.Store, client protocol.Caller, opts ...Option) *Session {
	s := &Session{
		store:    st,
		client:   client,
		log:      zap.NewNop(),
		now:      time.Now,
		inflight: make(map[resourceKind]fetchKey),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads persisted favorites and history into the store, subscribes the
// orchestrator and runs the first evaluation pass against the initial state.
func (s *Session) Start() {
	if s.favorites != nil {
		if favs, err := s.favorites.Load(); err != nil {
			s.log.Warn("load favorites", zap.Error(err))
		} else if len(favs) > 0 {
			s.store.Apply(func(st store.State) store.State {
				return store.SetFavorites(st, favs)
			})
		}
	}
	if s.history != nil && s.historySeed > 0 {
		if entries, err := s.history.GetRecent(s.historySeed); err != nil {
			s.log.Warn("load history", zap.Error(err))
		} else {
			// GetRecent is newest-first; replay oldest-first to keep
			// submission order.
			s.store.Apply(func(st store.State) store.State {
				for i := len(entries) - 1; i >= 0; i-- {
					st = store.AppendQueryHistory(st, models.Query{
						Value: entries[i].Query,
						Time:  entries[i].SubmittedAt.Format(store.QueryTimeFormat),
					})
				}
				return st
			})
		}
	}

	s.store.Subscribe(s.evaluate)

	// The initial state carries an outdated database list; synthesize the
	// edge so the first pass fetches it.
	cur := s.store.Get()
	prev := cur
	prev.OutdatedDatabaseList = false
	s.evaluate(cur, prev)
}

// evaluate inspects one committed transition and issues every fetch that is
// due. All triggers except the database list are level-triggered on the new
// state; the guard fields (CurrentPage, CurrentStructure) stay nil until the
// response merge, which keeps re-evaluation idempotent.
func (s *Session) evaluate(next, prev store.State) {
	if next.OutdatedDatabaseList && !prev.OutdatedDatabaseList {
		s.fetchDatabaseList()
	}
	if next.ViewMode == models.ViewData && next.CurrentPage == nil && next.HasSelection() {
		s.fetchPage(next)
	}
	if next.CurrentStructure == nil && next.HasSelection() {
		s.fetchStructure(next)
	}
	// Definition text rides the structure guard: it is refetched only when
	// structure is also stale. Giving it its own staleness flag would change
	// refresh behavior, so the coupling is kept.
	if next.ViewMode == models.ViewTableInfo && next.CurrentStructure == nil && next.HasSelection() {
		s.fetchTableInfo(next)
	}
}

// begin claims the single in-flight slot for kind. It reports false when an
// identical fetch is already outstanding.
func (s *Session) begin(kind resourceKind, key fetchKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.inflight[kind]; ok && existing == key {
		return false
	}
	s.inflight[kind] = key
	return true
}

// finish releases the slot if it is still owned by key.
func (s *Session) finish(kind resourceKind, key fetchKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.inflight[kind]; ok && existing == key {
		delete(s.inflight, kind)
	}
}

func (s *Session) fetchDatabaseList() {
	if !s.begin(kindDatabaseList, fetchKey{}) {
		return
	}
	resp := &protocol.DatabaseListResponse{}
	s.client.Call(protocol.MethodDatabaseList, struct{}{}, resp, func(err error) {
		if err != nil {
			// Clear the outdated flag so a later refresh produces a fresh
			// edge and retries. The in-flight slot is released only after
			// the error transition commits, so its own evaluation pass
			// cannot reissue the failed fetch.
			s.store.Apply(func(st store.State) store.State {
				st.OutdatedDatabaseList = false
				return store.SetError(st, err.Error())
			})
			s.finish(kindDatabaseList, fetchKey{})
			return
		}
		s.finish(kindDatabaseList, fetchKey{})
		s.store.Apply(func(st store.State) store.State {
			return store.UpdateDatabases(st, resp.Databases)
		})
	})
}

func (s *Session) fetchPage(cur store.State) {
	key := fetchKey{databaseID: cur.SelectedDatabase, table: cur.SelectedTable}
	if !s.begin(kindPage, key) {
		return
	}

	req := protocol.GetTableDataRequest{
		DatabaseID: key.databaseID,
		Table:      key.table,
		Start:      cur.PageRowNumber,
		Count:      models.PageSize,
	}
	if cur.CurrentSort != nil {
		req.Order = cur.CurrentSort.Key
		req.Reverse = cur.CurrentSort.Reversed()
	}

	resp := &protocol.GetTableDataResponse{}
	s.client.Call(protocol.MethodGetTableData, req, resp, func(err error) {
		if err != nil {
			s.setErrorFor(key, err)
			s.finish(kindPage, key)
			return
		}
		s.finish(kindPage, key)
		page := &models.Page{
			DatabaseID:      key.databaseID,
			Table:           key.table,
			Columns:         resp.Columns,
			Rows:            resp.Values,
			Start:           resp.Start,
			Count:           resp.Count,
			Total:           resp.Total,
			HighlightedRows: []int{},
		}
		s.store.Apply(func(st store.State) store.State {
			return store.MergePage(st, page)
		})
	})
}

func (s *Session) fetchStructure(cur store.State) {
	key := fetchKey{databaseID: cur.SelectedDatabase, table: cur.SelectedTable}
	if !s.begin(kindStructure, key) {
		return
	}

	req := protocol.GetTableStructureRequest{DatabaseID: key.databaseID, Table: key.table}
	resp := &protocol.GetTableStructureResponse{}
	s.client.Call(protocol.MethodGetTableStructure, req, resp, func(err error) {
		if err != nil {
			s.setErrorFor(key, err)
			s.finish(kindStructure, key)
			return
		}
		s.finish(kindStructure, key)
		structure := &models.Structure{
			DatabaseID:     key.databaseID,
			Table:          key.table,
			Columns:        resp.StructureColumns,
			Rows:           resp.StructureValues,
			IndexesColumns: resp.IndexesColumns,
			IndexesValues:  resp.IndexesValues,
		}
		s.store.Apply(func(st store.State) store.State {
			return store.MergeStructure(st, structure)
		})
	})
}

func (s *Session) fetchTableInfo(cur store.State) {
	key := fetchKey{databaseID: cur.SelectedDatabase, table: cur.SelectedTable}
	if !s.begin(kindTableInfo, key) {
		return
	}

	req := protocol.GetTableInfoRequest{DatabaseID: key.databaseID, Table: key.table}
	resp := &protocol.GetTableInfoResponse{}
	s.client.Call(protocol.MethodGetTableInfo, req, resp, func(err error) {
		if err != nil {
			s.setErrorFor(key, err)
			s.finish(kindTableInfo, key)
			return
		}
		s.finish(kindTableInfo, key)
		s.store.Apply(func(st store.State) store.State {
			return store.SetTableInfo(st, key.databaseID, key.table, resp.Definition)
		})
	})
}

// setErrorFor surfaces a fetch failure, unless the selection has moved on, in
// which case the failure belongs to a stale key and is only logged.
func (s *Session) setErrorFor(key fetchKey, err error) {
	s.store.Apply(func(st store.State) store.State {
		if !st.SelectionMatches(key.databaseID, key.table) {
			s.log.Debug("dropping error for stale fetch",
				zap.Int("database", key.databaseID),
				zap.String("table", key.table),
				zap.Error(err))
			return st
		}
		return store.SetError(st, err.Error())
	})
}

// Execute submits queryText against the selected database. The query is
// appended to the session history at submission, before the outcome is known.
func (s *Session) Execute(queryText string) {
	cur := s.store.Get()
	databaseID := cur.SelectedDatabase
	databaseName := ""
	if db, ok := cur.DatabaseByID(databaseID); ok {
		databaseName = db.Name
	}

	submitted := s.now()
	if queryText != "" {
		entry := models.Query{Value: queryText, Time: submitted.Format(store.QueryTimeFormat)}
		s.store.Apply(func(st store.State) store.State {
			st = store.AppendQueryHistory(st, entry)
			st.Query = &models.Query{Value: queryText, Time: entry.Time}
			return st
		})
	}

	start := time.Now()
	resp := &protocol.ExecuteResponse{}
	s.client.Call(protocol.MethodExecute, protocol.ExecuteRequest{
		DatabaseID: databaseID,
		Value:      queryText,
	}, resp, func(err error) {
		elapsed := time.Since(start)
		if s.history != nil && queryText != "" {
			if herr := s.history.Add(history.Entry{
				DatabaseName: databaseName,
				Query:        queryText,
				Duration:     elapsed,
			}); herr != nil {
				s.log.Warn("persist history", zap.Error(herr))
			}
		}
		if err != nil {
			s.store.Apply(func(st store.State) store.State {
				return store.SetError(st, err.Error())
			})
			return
		}

		result, cerr := resultFromResponse(resp)
		if cerr != nil {
			s.store.Apply(func(st store.State) store.State {
				return store.SetError(st, cerr.Error())
			})
			return
		}
		s.store.Apply(func(st store.State) store.State {
			return store.SetQueryResult(st, result, elapsed)
		})
	})
}

func resultFromResponse(resp *protocol.ExecuteResponse) (*models.QueryResult, error) {
	switch resp.Type {
	case models.ResultSelect:
		return &models.QueryResult{
			Kind:            models.ResultSelect,
			Columns:         resp.Columns,
			Rows:            resp.Values,
			HighlightedRows: []int{},
		}, nil
	case models.ResultInsert:
		return &models.QueryResult{Kind: models.ResultInsert, InsertedID: resp.InsertedID}, nil
	case models.ResultUpdateDelete:
		return &models.QueryResult{Kind: models.ResultUpdateDelete, AffectedCount: resp.AffectedCount}, nil
	default:
		return nil, fmt.Errorf("unknown execution outcome %q", resp.Type)
	}
}

// ApplyRowEdit builds a primary-key-scoped UPDATE for edit against the
// highlighted row, patches the local page optimistically and submits the
// statement to the agent. Metadata-shape failures abort the edit without
// touching the store's error surface.
func (s *Session) ApplyRowEdit(edit rowedit.Edit) {
	cur := s.store.Get()
	stmt, err := rowedit.Build(cur.CurrentPage, cur.CurrentStructure, edit, s.log)
	if err != nil {
		s.log.Error("row edit aborted", zap.Error(err))
		return
	}
	if stmt == nil {
		return
	}

	databaseID, table := cur.SelectedDatabase, cur.SelectedTable
	s.store.Apply(func(st store.State) store.State {
		return store.PatchPageRow(st, databaseID, table, stmt.Row, stmt.Patches)
	})

	resp := &protocol.ExecuteResponse{}
	s.client.Call(protocol.MethodExecute, protocol.ExecuteRequest{
		DatabaseID: databaseID,
		Value:      stmt.SQL,
	}, resp, func(err error) {
		if err != nil {
			// The optimistic patch stays; the next page refetch reconciles
			// with the authoritative remote state.
			s.setErrorFor(fetchKey{databaseID: databaseID, table: table}, err)
		}
	})
}

// ToggleFavorite toggles the current query buffer in the favorites list and
// rewrites the persisted copy.
func (s *Session) ToggleFavorite() {
	s.store.Apply(store.ToggleFavorite)
	if s.favorites != nil {
		if err := s.favorites.Save(s.store.Get().Favorites); err != nil {
			s.log.Warn("persist favorites", zap.Error(err))
		}
	}
}

// The remaining methods are thin command wrappers the presentation layer
// calls; each applies one pure transition.

func (s *Session) SelectDatabase(id int) {
	s.store.Apply(func(st store.State) store.State { return store.SelectDatabase(st, id) })
}

func (s *Session) SelectTable(name string) {
	s.store.Apply(func(st store.State) store.State { return store.SelectTable(st, name) })
}

func (s *Session) SetViewMode(mode models.ViewMode) {
	s.store.Apply(func(st store.State) store.State { return store.SetViewMode(st, mode) })
}

func (s *Session) NextPage() {
	s.store.Apply(store.NextPage)
}

func (s *Session) PreviousPage() {
	s.store.Apply(store.PreviousPage)
}

func (s *Session) GoToRow(row int) {
	s.store.Apply(func(st store.State) store.State { return store.GoToRow(st, row) })
}

// ToggleSort cycles the sort for key: ascending, then descending, then none.
// Sorting a different column starts ascending again.
func (s *Session) ToggleSort(key string) {
	s.store.Apply(func(st store.State) store.State {
		var order *models.SortOrder
		switch {
		case st.CurrentSort == nil || st.CurrentSort.Key != key:
			order = &models.SortOrder{Key: key, Direction: models.SortUp}
		case st.CurrentSort.Direction == models.SortUp:
			order = &models.SortOrder{Key: key, Direction: models.SortDown}
		default:
			order = nil
		}
		return store.SortBy(st, order)
	})
}

func (s *Session) Refresh() {
	s.store.Apply(store.Refresh)
}

func (s *Session) SetQuery(text string) {
	now := s.now()
	s.store.Apply(func(st store.State) store.State { return store.SetQuery(st, text, now) })
}

func (s *Session) HighlightRows(rows []int) {
	s.store.Apply(func(st store.State) store.State { return store.SetHighlightedRows(st, rows) })
}
