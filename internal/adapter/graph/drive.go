package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// ListRootChildren lists the immediate children of the media library root
func (c *Client) ListRootChildren(ctx context.Context) ([]port.DriveItem, error) {
	listID, err := c.resolveMediaList(ctx)
	if err != nil {
		return nil, err
	}
	return collectPages[port.DriveItem](ctx, c, c.siteURL("lists/%s/drive/root/children", url.PathEscape(listID)))
}

// ListChildren lists the immediate children of a media library folder
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]port.DriveItem, error) {
	listID, err := c.resolveMediaList(ctx)
	if err != nil {
		return nil, err
	}
	items, err := collectPages[port.DriveItem](ctx, c, c.siteURL("lists/%s/drive/items/%s/children",
		url.PathEscape(listID), url.PathEscape(folderID)))
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: folder %s: %w", domain.ErrFolderNotFound, folderID, err)
	}
	return items, err
}

// DownloadContent opens the content of a file item
func (c *Client) DownloadContent(ctx context.Context, itemID string) (*port.Download, error) {
	listID, err := c.resolveMediaList(ctx)
	if err != nil {
		return nil, err
	}

	urlStr := c.siteURL("lists/%s/drive/items/%s/content", url.PathEscape(listID), url.PathEscape(itemID))
	resp, err := c.doRequest(ctx, c.downloadClient, http.MethodGet, urlStr)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: item %s: %w", domain.ErrFileNotFound, itemID, err)
	}
	if err != nil {
		return nil, err
	}

	return &port.Download{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		StatusCode:    resp.StatusCode,
	}, nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// resolveMediaList returns the media library id, resolving it by name once
func (c *Client) resolveMediaList(ctx context.Context) (string, error) {
	c.mediaListMu.Lock()
	defer c.mediaListMu.Unlock()

	if c.mediaListID != "" {
		return c.mediaListID, nil
	}
	if c.cfg.MediaListName == "" {
		return "", fmt.Errorf("media library is not configured")
	}

	id, err := c.ResolveListID(ctx, c.cfg.MediaListName)
	if err != nil {
		return "", err
	}
	c.mediaListID = id
	return id, nil
}
