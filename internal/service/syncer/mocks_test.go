package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
	"github.com/vertextoedge/sharepoint-list-sync/internal/service/reconciler"
)

// mockStore is an in-memory entity, lock and run store
type mockStore struct {
	mu       sync.Mutex
	entities map[string]*domain.Entity
	nextID   int64
	locks    map[string]string
	runs     []*domain.SyncRun

	upsertErr   error
	upsertCalls int
	writes      int
}

func newMockStore() *mockStore {
	return &mockStore{
		entities: make(map[string]*domain.Entity),
		locks:    make(map[string]string),
	}
}

func (m *mockStore) entity(entityType, externalID string) *domain.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entities[entityType+"/"+externalID]
}

func (m *mockStore) GetEntity(ctx context.Context, id int64) (*domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetEntityByExternalID(ctx context.Context, entityType, externalID string) (*domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entities[entityType+"/"+externalID], nil
}

func (m *mockStore) FindEntityByAttribute(ctx context.Context, entityType, attribute, value string) (*domain.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Entity
	for _, e := range m.entities {
		if e.Type == entityType && e.Attributes[attribute] == value && (best == nil || e.ID > best.ID) {
			best = e
		}
	}
	return best, nil
}

func (m *mockStore) UpsertEntity(ctx context.Context, entityType, externalID string, attrs map[string]string) (*domain.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	key := entityType + "/" + externalID
	if e, ok := m.entities[key]; ok {
		changed := domain.DiffAttributes(e.Attributes, attrs)
		if len(changed) == 0 {
			return &domain.UpsertResult{LocalID: e.ID, Action: domain.ActionUnchanged}, nil
		}
		m.writes++
		e.Attributes = domain.MergeAttributes(e.Attributes, attrs)
		return &domain.UpsertResult{LocalID: e.ID, Action: domain.ActionUpdated, ChangedKeys: changed}, nil
	}
	m.writes++
	m.nextID++
	m.entities[key] = &domain.Entity{
		ID:         m.nextID,
		Type:       entityType,
		ExternalID: externalID,
		Attributes: domain.MergeAttributes(nil, attrs),
	}
	return &domain.UpsertResult{LocalID: m.nextID, Action: domain.ActionCreated}, nil
}

func (m *mockStore) MergeAttributes(ctx context.Context, id int64, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.ID == id {
			m.writes++
			e.Attributes = domain.MergeAttributes(e.Attributes, attrs)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeleteEntity(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entities {
		if e.ID == id {
			delete(m.entities, k)
		}
	}
	return nil
}

func (m *mockStore) DeleteEntitiesByType(ctx context.Context, entityType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entities {
		if e.Type == entityType {
			delete(m.entities, k)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) CountEntities(ctx context.Context, entityType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entities {
		if entityType == "" || e.Type == entityType {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.locks[name]; ok && held != owner {
		return false, nil
	}
	m.locks[name] = owner
	return true, nil
}

func (m *mockStore) RefreshLock(ctx context.Context, name, owner string, ttl time.Duration) error {
	return nil
}

func (m *mockStore) ReleaseLock(ctx context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[name] == owner {
		delete(m.locks, name)
	}
	return nil
}

func (m *mockStore) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *mockStore) SaveRun(ctx context.Context, run *domain.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs = append(m.runs, &cp)
	return nil
}

func (m *mockStore) ListRuns(ctx context.Context, entityType string, limit int) ([]*domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SyncRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if entityType == "" || m.runs[i].EntityType == entityType {
			out = append(out, m.runs[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

// mockLists serves fixed records per list name
type mockLists struct {
	mu          sync.Mutex
	ids         map[string]string
	items       map[string][]domain.ExternalRecord
	resolveErr  error
	fetchErr    error
	resolves    int
	lastFields  []string
	onFetchDone func()
}

func newMockLists() *mockLists {
	return &mockLists{
		ids:   make(map[string]string),
		items: make(map[string][]domain.ExternalRecord),
	}
}

func (m *mockLists) add(listName string, records ...domain.ExternalRecord) {
	id := "list-" + listName
	m.ids[listName] = id
	m.items[id] = append(m.items[id], records...)
}

func (m *mockLists) GetLists(ctx context.Context) ([]port.RemoteList, error) {
	return nil, nil
}

func (m *mockLists) ResolveListID(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolves++
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	id, ok := m.ids[name]
	if !ok {
		return "", &domain.ListResolutionError{ListName: name}
	}
	return id, nil
}

func (m *mockLists) FetchItems(ctx context.Context, listID string, fields []string) ([]domain.ExternalRecord, error) {
	m.mu.Lock()
	m.lastFields = fields
	err := m.fetchErr
	items := m.items[listID]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if m.onFetchDone != nil {
		m.onFetchDone()
	}
	return items, nil
}

// mockMedia records reconcile requests and fails per slot
type mockMedia struct {
	mu       sync.Mutex
	requests []reconciler.MediaRequest
	errs     map[string]error
}

func (m *mockMedia) Reconcile(ctx context.Context, req reconciler.MediaRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err := m.errs[req.Slot]; err != nil {
		return 0, err
	}
	return int64(len(m.requests)), nil
}

func record(id string, fields map[string]domain.Value) domain.ExternalRecord {
	return domain.ExternalRecord{ID: id, Fields: fields}
}

