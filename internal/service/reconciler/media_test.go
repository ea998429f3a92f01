package reconciler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

const sourceURL = "https://contoso.sharepoint.com/sites/t/Image%20Media/People/dave.jpg"

type mediaFixture struct {
	store   *mockStore
	storage *mockStorage
	drive   *mockDrive
	folders *mockFolders
	r       *MediaReconciler
	entity  int64
}

func newMediaFixture(t *testing.T) *mediaFixture {
	t.Helper()
	f := &mediaFixture{
		store:   newMockStore(),
		storage: newMockStorage(),
		drive: &mockDrive{
			children: map[string][]port.DriveItem{
				"PEOPLE": {
					{ID: "sub", Name: "dave.jpg", Folder: &struct{}{}},
					{ID: "item-1", Name: "Dave.JPG"},
				},
			},
			content: map[string]string{"item-1": "\xff\xd8\xff jpeg bytes"},
		},
		folders: &mockFolders{id: "PEOPLE"},
	}
	f.r = NewMediaReconciler(f.store, f.storage, f.drive, f.folders, 0, zap.NewNop())

	res, err := f.store.UpsertEntity(context.Background(), "cast", "5", map[string]string{"name": "Dave"})
	if err != nil {
		t.Fatal(err)
	}
	f.entity = res.LocalID
	return f
}

func (f *mediaFixture) request() MediaRequest {
	return MediaRequest{
		EntityID:   f.entity,
		EntityType: "cast",
		ExternalID: "5",
		Slot:       "photo",
		Filename:   "dave.jpg",
		SourceURL:  sourceURL,
	}
}

func TestReconcile_DownloadsAndBinds(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	id, err := f.r.Reconcile(ctx, f.request())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	asset, _ := f.store.GetAsset(ctx, id)
	if asset == nil {
		t.Fatal("asset not created")
	}
	if asset.Filename != "photo-5-dave.jpg" {
		t.Errorf("stored name = %q, want photo-5-dave.jpg", asset.Filename)
	}
	if asset.MimeType != "image/jpeg" {
		t.Errorf("mime = %q", asset.MimeType)
	}
	if b, _ := f.store.GetBinding(ctx, f.entity, "photo"); b == nil || b.AssetID != id {
		t.Errorf("binding = %+v, want asset %d", b, id)
	}
}

func TestReconcile_BoundAssetSkipsNetwork(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	first, err := f.r.Reconcile(ctx, f.request())
	if err != nil {
		t.Fatal(err)
	}
	listCalls, downloads := f.drive.listCalls, f.drive.downloadCalls

	second, err := f.r.Reconcile(ctx, f.request())
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("Reconcile() = %d, want %d", second, first)
	}
	if f.drive.listCalls != listCalls || f.drive.downloadCalls != downloads {
		t.Error("bound asset must not touch the network")
	}
	if n, _ := f.store.CountAssets(ctx); n != 1 {
		t.Errorf("asset count = %d, want 1", n)
	}
}

func TestReconcile_ReattachesOrphanAfterEntityRecreated(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	first, err := f.r.Reconcile(ctx, f.request())
	if err != nil {
		t.Fatal(err)
	}

	// Entity deleted and recreated under a new local id
	f.store.DeleteEntity(ctx, f.entity)
	res, _ := f.store.UpsertEntity(ctx, "cast", "5", map[string]string{"name": "Dave"})
	f.entity = res.LocalID
	downloads := f.drive.downloadCalls

	req := f.request()
	req.Filename = "DAVE.JPG"
	id, err := f.r.Reconcile(ctx, req)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if id != first {
		t.Errorf("Reconcile() = %d, want reattached asset %d", id, first)
	}
	if f.drive.downloadCalls != downloads {
		t.Error("orphan reattachment must not download")
	}
	if n, _ := f.store.CountAssets(ctx); n != 1 {
		t.Errorf("asset count = %d, want 1", n)
	}
}

func TestReconcile_OrphanHighestIDWins(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	f.store.addAsset(10, "photo-5-dave.jpg")
	f.store.addAsset(42, "photo-9-dave.jpg")
	f.storage.add("photo-5-dave.jpg")
	f.storage.add("photo-9-dave.jpg")

	id, err := f.r.Reconcile(ctx, f.request())
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 {
		t.Errorf("Reconcile() = %d, want 42", id)
	}
}

func TestReconcile_OrphanWithMissingBlobIgnored(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	f.store.addAsset(42, "photo-9-dave.jpg") // no blob
	f.store.addAsset(10, "photo-5-dave.jpg")
	f.storage.add("photo-5-dave.jpg")

	id, err := f.r.Reconcile(ctx, f.request())
	if err != nil {
		t.Fatal(err)
	}
	if id != 10 {
		t.Errorf("Reconcile() = %d, want 10", id)
	}
}

func TestReconcile_DerivesFilenameFromURL(t *testing.T) {
	f := newMediaFixture(t)
	req := f.request()
	req.Filename = ""

	id, err := f.r.Reconcile(context.Background(), req)
	if err != nil || id == 0 {
		t.Fatalf("Reconcile() = %d, %v", id, err)
	}
}

func TestReconcile_DownloadFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *mediaFixture)
		wantErr error
	}{
		{"html page", func(f *mediaFixture) {
			f.drive.content["item-1"] = "\ufeff  <!DOCTYPE html><html><body>Sign in</body></html>"
		}, domain.ErrHTMLContent},
		{"html without doctype", func(f *mediaFixture) {
			f.drive.content["item-1"] = "\n<HTML><head></head></HTML>"
		}, domain.ErrHTMLContent},
		{"empty body", func(f *mediaFixture) {
			f.drive.content["item-1"] = ""
		}, domain.ErrEmptyContent},
		{"non-2xx", func(f *mediaFixture) {
			f.drive.status = 403
		}, domain.ErrDownloadFailed},
		{"transport error", func(f *mediaFixture) {
			f.drive.downloadErr = errors.New("connection reset")
		}, domain.ErrDownloadFailed},
		{"file missing from folder", func(f *mediaFixture) {
			f.drive.children["PEOPLE"] = nil
		}, domain.ErrFileNotFound},
		{"folder unresolved", func(f *mediaFixture) {
			f.folders.err = domain.NewMediaError("", "", domain.ErrFolderNotFound)
		}, domain.ErrFolderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMediaFixture(t)
			tt.setup(f)
			ctx := context.Background()

			_, err := f.r.Reconcile(ctx, f.request())
			var me *domain.MediaError
			if !errors.As(err, &me) {
				t.Fatalf("expected MediaError, got %v", err)
			}
			if me.Slot != "photo" {
				t.Errorf("MediaError.Slot = %q", me.Slot)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}

			if n, _ := f.store.CountAssets(ctx); n != 0 {
				t.Errorf("asset count = %d, want 0", n)
			}
			if len(f.storage.blobs) != 0 {
				t.Errorf("blobs written: %v", f.storage.blobs)
			}

			e, _ := f.store.GetEntity(ctx, f.entity)
			if e.Attributes[FallbackAttribute("photo")] != sourceURL {
				t.Errorf("fallback attribute = %q", e.Attributes["photo_url"])
			}
			if e.Attributes["name"] != "Dave" {
				t.Error("entity attributes must survive media failure")
			}
		})
	}
}

func TestReconcile_FailureKeepsPreviousBinding(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	f.store.addAsset(3, "photo-5-old.jpg")
	f.storage.add("photo-5-old.jpg")
	f.store.BindAsset(ctx, f.entity, "photo", 3)
	f.storage.Delete(ctx, "photo-5-old.jpg")
	f.drive.status = 500

	if _, err := f.r.Reconcile(ctx, f.request()); !domain.IsMediaError(err) {
		t.Fatalf("expected MediaError, got %v", err)
	}
	if b, _ := f.store.GetBinding(ctx, f.entity, "photo"); b == nil || b.AssetID != 3 {
		t.Errorf("previous binding lost: %+v", b)
	}
}

func TestReconcile_SuccessClearsFallback(t *testing.T) {
	f := newMediaFixture(t)
	ctx := context.Background()

	f.store.MergeAttributes(ctx, f.entity, map[string]string{"photo_url": sourceURL})

	if _, err := f.r.Reconcile(ctx, f.request()); err != nil {
		t.Fatal(err)
	}
	e, _ := f.store.GetEntity(ctx, f.entity)
	if _, ok := e.Attributes["photo_url"]; ok {
		t.Error("fallback attribute not cleared")
	}
}

func TestReconcile_AuthErrorPassesThrough(t *testing.T) {
	f := newMediaFixture(t)
	f.drive.downloadErr = domain.NewAuthError("rejected", nil)

	_, err := f.r.Reconcile(context.Background(), f.request())
	if !domain.IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if domain.IsMediaError(err) {
		t.Error("auth failures must not be reported as media errors")
	}
}

func TestReconcile_CreateAssetFailureRemovesBlob(t *testing.T) {
	f := newMediaFixture(t)
	f.store.createAssetErr = errors.New("disk full")

	_, err := f.r.Reconcile(context.Background(), f.request())
	if !domain.IsMediaError(err) || !domain.IsPersistenceError(err) {
		t.Fatalf("expected MediaError wrapping PersistenceError, got %v", err)
	}
	if len(f.storage.blobs) != 0 {
		t.Error("blob left behind after failed asset insert")
	}
}

func TestReconcile_SizeLimit(t *testing.T) {
	f := newMediaFixture(t)
	f.r.maxSize = 4
	f.drive.content["item-1"] = strings.Repeat("x", 10)

	_, err := f.r.Reconcile(context.Background(), f.request())
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
	if len(f.storage.blobs) != 0 {
		t.Error("oversized blob kept")
	}
}

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		head string
		want bool
	}{
		{"<!doctype html>", true},
		{"  \r\n<html lang=en>", true},
		{"\xef\xbb\xbf<!DOCTYPE HTML>", true},
		{"\x89PNG\r\n", false},
		{"<svg xmlns=...>", false},
	}
	for _, tt := range tests {
		if got := looksLikeHTML([]byte(tt.head)); got != tt.want {
			t.Errorf("looksLikeHTML(%q) = %v, want %v", tt.head, got, tt.want)
		}
	}
}
