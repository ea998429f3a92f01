package reconciler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// mockStore is an in-memory entity and asset store
type mockStore struct {
	mu        sync.Mutex
	entities  map[string]*domain.Entity
	nextID    int64
	assets    map[int64]*domain.MediaAsset
	nextAsset int64
	bindings  map[string]*domain.MediaBinding

	upsertErr      error
	createAssetErr error
	bindErr        error
	upsertCalls    int
}

func newMockStore() *mockStore {
	return &mockStore{
		entities: make(map[string]*domain.Entity),
		assets:   make(map[int64]*domain.MediaAsset),
		bindings: make(map[string]*domain.MediaBinding),
	}
}

func bindingKey(entityID int64, slot string) string {
	return fmt.Sprintf("%d|%s", entityID, slot)
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
		e.Attributes = domain.MergeAttributes(e.Attributes, attrs)
		return &domain.UpsertResult{LocalID: e.ID, Action: domain.ActionUpdated, ChangedKeys: changed}, nil
	}
	m.nextID++
	e := &domain.Entity{
		ID:         m.nextID,
		Type:       entityType,
		ExternalID: externalID,
		Attributes: domain.MergeAttributes(nil, attrs),
	}
	m.entities[key] = e
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &domain.UpsertResult{LocalID: e.ID, Action: domain.ActionCreated, ChangedKeys: keys}, nil
}

func (m *mockStore) MergeAttributes(ctx context.Context, id int64, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.ID == id {
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
	for k, b := range m.bindings {
		if b.EntityID == id {
			delete(m.bindings, k)
		}
	}
	return nil
}

func (m *mockStore) DeleteEntitiesByType(ctx context.Context, entityType string) (int, error) {
	return 0, nil
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

func (m *mockStore) CreateAsset(ctx context.Context, asset *domain.MediaAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createAssetErr != nil {
		return m.createAssetErr
	}
	m.nextAsset++
	asset.ID = m.nextAsset
	m.assets[asset.ID] = asset
	return nil
}

// addAsset inserts an asset with a fixed id
func (m *mockStore) addAsset(id int64, filename string) *domain.MediaAsset {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &domain.MediaAsset{ID: id, Filename: filename, StoragePath: filename, MimeType: domain.MimeTypeFor(filename), CreatedAt: time.Now()}
	m.assets[id] = a
	if id > m.nextAsset {
		m.nextAsset = id
	}
	return a
}

func (m *mockStore) GetAsset(ctx context.Context, id int64) (*domain.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assets[id], nil
}

func (m *mockStore) FindAssetCandidates(ctx context.Context, stem string) ([]*domain.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.MediaAsset
	for _, a := range m.assets {
		if strings.Contains(strings.ToLower(a.Filename), strings.ToLower(stem)) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockStore) CountAssets(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets), nil
}

func (m *mockStore) ListOrphanAssets(ctx context.Context) ([]*domain.MediaAsset, error) {
	return nil, nil
}

func (m *mockStore) GetBinding(ctx context.Context, entityID int64, slot string) (*domain.MediaBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindings[bindingKey(entityID, slot)], nil
}

func (m *mockStore) BindAsset(ctx context.Context, entityID int64, slot string, assetID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bindErr != nil {
		return m.bindErr
	}
	m.bindings[bindingKey(entityID, slot)] = &domain.MediaBinding{EntityID: entityID, Slot: slot, AssetID: assetID}
	return nil
}

// mockStorage is an in-memory blob store
type mockStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
	puts  int
}

func newMockStorage() *mockStorage {
	return &mockStorage{blobs: make(map[string][]byte)}
}

func (m *mockStorage) Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, int64, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.blobs[name] = data
	return name, int64(len(data)), nil
}

func (m *mockStorage) Exists(ctx context.Context, storagePath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[storagePath]
	return ok, nil
}

func (m *mockStorage) Delete(ctx context.Context, storagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, storagePath)
	return nil
}

func (m *mockStorage) CleanOldTempFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

func (m *mockStorage) add(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = []byte("blob")
}

// mockDrive serves folder listings and file content
type mockDrive struct {
	children      map[string][]port.DriveItem
	content       map[string]string
	status        int
	downloadErr   error
	listCalls     int
	downloadCalls int
}

func (m *mockDrive) ListRootChildren(ctx context.Context) ([]port.DriveItem, error) {
	return nil, nil
}

func (m *mockDrive) ListChildren(ctx context.Context, folderID string) ([]port.DriveItem, error) {
	m.listCalls++
	return m.children[folderID], nil
}

func (m *mockDrive) DownloadContent(ctx context.Context, itemID string) (*port.Download, error) {
	m.downloadCalls++
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return &port.Download{
		Body:       io.NopCloser(bytes.NewBufferString(m.content[itemID])),
		StatusCode: status,
	}, nil
}

// mockFolders resolves every URL to one folder id
type mockFolders struct {
	id  string
	err error
}

func (m *mockFolders) ResolveURL(ctx context.Context, rawURL string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.id == "" {
		return "", errors.New("no folder configured")
	}
	return m.id, nil
}
