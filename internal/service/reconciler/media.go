package reconciler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/domain/vo"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// FallbackAttribute returns the attribute holding the raw source URL of a
// slot whose download failed
func FallbackAttribute(slot string) string {
	return slot + "_url"
}

// FolderResolver maps an asset URL to the remote folder holding it
type FolderResolver interface {
	ResolveURL(ctx context.Context, rawURL string) (string, error)
}

// MediaRequest asks for one media slot of an entity to be satisfied
type MediaRequest struct {
	EntityID   int64
	EntityType string
	ExternalID string
	Slot       string
	Filename   string // derived from SourceURL when empty
	SourceURL  string
}

// MediaStore is the persistence the media reconciler needs
type MediaStore interface {
	port.AssetRepository
	MergeAttributes(ctx context.Context, id int64, attrs map[string]string) error
}

// MediaReconciler attaches media assets to entity slots, reusing any stored
// asset with a matching name before downloading.
type MediaReconciler struct {
	store   MediaStore
	storage port.AssetStorage
	drive   port.DriveClient
	folders FolderResolver
	logger  *zap.Logger
	maxSize int64
}

// NewMediaReconciler creates a new MediaReconciler. maxSize <= 0 disables the
// download size limit.
func NewMediaReconciler(store MediaStore, storage port.AssetStorage, drive port.DriveClient, folders FolderResolver, maxSize int64, logger *zap.Logger) *MediaReconciler {
	return &MediaReconciler{
		store:   store,
		storage: storage,
		drive:   drive,
		folders: folders,
		logger:  logger,
		maxSize: maxSize,
	}
}

// Reconcile makes sure the slot is bound to an asset and returns its id.
// Media failures are returned as *domain.MediaError; auth failures pass
// through unchanged so the caller can abort the run.
func (r *MediaReconciler) Reconcile(ctx context.Context, req MediaRequest) (int64, error) {
	fn, err := requestFilename(req)
	if err != nil {
		return 0, domain.NewMediaError(req.Slot, req.Filename, err)
	}

	log := r.logger.With(
		zap.String("entity_type", req.EntityType),
		zap.String("external_id", req.ExternalID),
		zap.String("slot", req.Slot),
		zap.String("filename", fn.String()))

	if id, ok, err := r.boundAsset(ctx, req); err != nil {
		return 0, r.mediaError(req, fn, err)
	} else if ok {
		return id, nil
	}

	if asset, rule, err := r.findOrphan(ctx, fn); err != nil {
		return 0, r.mediaError(req, fn, err)
	} else if asset != nil {
		if err := r.bind(ctx, req, asset.ID); err != nil {
			return 0, r.mediaError(req, fn, err)
		}
		log.Info("reattached existing asset",
			zap.Int64("asset_id", asset.ID),
			zap.String("stored_name", asset.Filename),
			zap.String("rule", rule.String()))
		return asset.ID, nil
	}

	asset, err := r.download(ctx, req, fn)
	if err != nil {
		if domain.IsAuthError(err) {
			return 0, err
		}
		r.recordFallback(ctx, req, log)
		return 0, r.mediaError(req, fn, err)
	}

	if err := r.bind(ctx, req, asset.ID); err != nil {
		return 0, r.mediaError(req, fn, err)
	}

	log.Info("downloaded asset",
		zap.Int64("asset_id", asset.ID),
		zap.String("stored_name", asset.Filename),
		zap.Int64("size", asset.Size))
	return asset.ID, nil
}

func requestFilename(req MediaRequest) (vo.Filename, error) {
	if strings.TrimSpace(req.Filename) != "" {
		return vo.NewFilename(req.Filename)
	}
	return vo.FilenameFromURL(req.SourceURL)
}

func (r *MediaReconciler) mediaError(req MediaRequest, fn vo.Filename, err error) error {
	var me *domain.MediaError
	if errors.As(err, &me) {
		if me.Slot == "" {
			me.Slot = req.Slot
		}
		if me.Filename == "" {
			me.Filename = fn.String()
		}
		return me
	}
	return domain.NewMediaError(req.Slot, fn.String(), err)
}

// boundAsset reports the currently bound asset when both its row and blob exist
func (r *MediaReconciler) boundAsset(ctx context.Context, req MediaRequest) (int64, bool, error) {
	binding, err := r.store.GetBinding(ctx, req.EntityID, req.Slot)
	if err != nil || binding == nil {
		return 0, false, err
	}
	asset, err := r.store.GetAsset(ctx, binding.AssetID)
	if err != nil || asset == nil {
		return 0, false, err
	}
	exists, err := r.storage.Exists(ctx, asset.StoragePath)
	if err != nil || !exists {
		return 0, false, err
	}
	return asset.ID, true, nil
}

// findOrphan searches every stored asset for a reusable match
func (r *MediaReconciler) findOrphan(ctx context.Context, fn vo.Filename) (*domain.MediaAsset, MatchRule, error) {
	keys := []string{fn.Stem()}
	if sanitized := vo.MustFilename(fn.Sanitized()).Stem(); sanitized != keys[0] {
		keys = append(keys, sanitized)
	}

	seen := make(map[int64]bool)
	var assets []*domain.MediaAsset
	for _, key := range keys {
		found, err := r.store.FindAssetCandidates(ctx, key)
		if err != nil {
			return nil, MatchNone, err
		}
		for _, a := range found {
			if !seen[a.ID] {
				seen[a.ID] = true
				assets = append(assets, a)
			}
		}
	}

	for _, c := range SelectCandidates(fn, assets) {
		exists, err := r.storage.Exists(ctx, c.Asset.StoragePath)
		if err != nil {
			return nil, MatchNone, err
		}
		if exists {
			return c.Asset, c.Rule, nil
		}
	}
	return nil, MatchNone, nil
}

// download fetches the file from its remote folder and stores it as a new asset
func (r *MediaReconciler) download(ctx context.Context, req MediaRequest, fn vo.Filename) (*domain.MediaAsset, error) {
	if req.SourceURL == "" {
		return nil, fmt.Errorf("%w: no source url", domain.ErrFileNotFound)
	}

	folderID, err := r.folders.ResolveURL(ctx, req.SourceURL)
	if err != nil {
		return nil, err
	}

	items, err := r.drive.ListChildren(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var item *port.DriveItem
	for i := range items {
		if !items[i].IsFolder() && fn.EqualFold(items[i].Name) {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, fn)
	}

	dl, err := r.drive.DownloadContent(ctx, item.ID)
	if err != nil {
		if domain.IsAuthError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer dl.Body.Close()

	if dl.StatusCode != 0 && (dl.StatusCode < 200 || dl.StatusCode > 299) {
		return nil, fmt.Errorf("%w: status %d", domain.ErrDownloadFailed, dl.StatusCode)
	}

	var body io.Reader = dl.Body
	if r.maxSize > 0 {
		body = io.LimitReader(dl.Body, r.maxSize+1)
	}
	content, err := validateContent(body)
	if err != nil {
		return nil, err
	}

	name := fn.StoredName(req.Slot, req.ExternalID)
	mimeType := domain.MimeTypeFor(fn.String())

	storagePath, size, err := r.storage.Put(ctx, name, content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if r.maxSize > 0 && size > r.maxSize {
		r.removeBlob(ctx, storagePath)
		return nil, fmt.Errorf("%w: larger than %d bytes", domain.ErrDownloadFailed, r.maxSize)
	}

	asset := &domain.MediaAsset{
		Filename:    storagePath,
		StoragePath: storagePath,
		MimeType:    mimeType,
		Size:        size,
	}
	if err := r.store.CreateAsset(ctx, asset); err != nil {
		r.removeBlob(ctx, storagePath)
		return nil, &domain.PersistenceError{
			EntityType: req.EntityType,
			ExternalID: req.ExternalID,
			Op:         "create asset",
			Err:        err,
		}
	}
	return asset, nil
}

func (r *MediaReconciler) removeBlob(ctx context.Context, storagePath string) {
	if err := r.storage.Delete(context.WithoutCancel(ctx), storagePath); err != nil {
		r.logger.Warn("failed to remove blob", zap.String("path", storagePath), zap.Error(err))
	}
}

// bind attaches the asset and clears any fallback URL left by an earlier failure
func (r *MediaReconciler) bind(ctx context.Context, req MediaRequest, assetID int64) error {
	if err := r.store.BindAsset(ctx, req.EntityID, req.Slot, assetID); err != nil {
		return &domain.PersistenceError{
			EntityType: req.EntityType,
			ExternalID: req.ExternalID,
			Op:         "bind " + req.Slot,
			Err:        err,
		}
	}
	if err := r.store.MergeAttributes(ctx, req.EntityID, map[string]string{FallbackAttribute(req.Slot): ""}); err != nil {
		r.logger.Warn("failed to clear fallback url",
			zap.Int64("entity_id", req.EntityID), zap.String("slot", req.Slot), zap.Error(err))
	}
	return nil
}

func (r *MediaReconciler) recordFallback(ctx context.Context, req MediaRequest, log *zap.Logger) {
	if req.SourceURL == "" {
		return
	}
	err := r.store.MergeAttributes(ctx, req.EntityID, map[string]string{FallbackAttribute(req.Slot): req.SourceURL})
	if err != nil {
		log.Warn("failed to record fallback url", zap.Error(err))
	}
}

const sniffLen = 512

// validateContent rejects empty bodies and HTML pages served in place of a file
func validateContent(body io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if len(head) == 0 {
		return nil, domain.ErrEmptyContent
	}
	if looksLikeHTML(head) {
		return nil, domain.ErrHTMLContent
	}
	return br, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func looksLikeHTML(head []byte) bool {
	head = bytes.TrimPrefix(head, utf8BOM)
	head = bytes.TrimLeft(head, " \t\r\n")
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html"))
}
