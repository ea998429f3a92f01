package graph

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
	"go.uber.org/zap"
)

// GetLists returns every list on the site
func (c *Client) GetLists(ctx context.Context) ([]port.RemoteList, error) {
	params := url.Values{"$select": {"id,name,displayName"}}
	return collectPages[port.RemoteList](ctx, c, c.siteURL("lists?%s", params.Encode()))
}

// ResolveListID maps a list name to its id. The internal name is matched
// before the display name; both comparisons are exact.
func (c *Client) ResolveListID(ctx context.Context, name string) (string, error) {
	lists, err := c.GetLists(ctx)
	if err != nil {
		if domain.IsAuthError(err) || domain.IsRetryable(err) {
			return "", err
		}
		return "", &domain.ListResolutionError{ListName: name, Err: err}
	}

	for _, l := range lists {
		if l.Name == name {
			return l.ID, nil
		}
	}
	for _, l := range lists {
		if l.DisplayName == name {
			return l.ID, nil
		}
	}
	return "", &domain.ListResolutionError{ListName: name}
}

// FetchItems returns every item of a list using a field projection, falling
// back once to an unprojected request when the projection yields nothing usable.
func (c *Client) FetchItems(ctx context.Context, listID string, fields []string) ([]domain.ExternalRecord, error) {
	if len(fields) == 0 {
		return c.fetchItems(ctx, listID, nil)
	}

	records, err := c.fetchItems(ctx, listID, fields)
	reason := ""
	switch {
	case err == nil && len(records) == 0:
		reason = "empty"
	case err == nil && !anyFieldPresent(records, fields):
		reason = "projection ignored"
	case err != nil && isDecodeError(err):
		reason = "malformed"
	case err != nil && isBadRequest(err):
		reason = "projection rejected"
	case err != nil:
		return nil, err
	}

	if reason == "" {
		return records, nil
	}

	c.logger.Warn("projected fetch unusable, retrying without projection",
		zap.String("list_id", listID),
		zap.String("reason", reason),
		zap.Int("fields", len(fields)))

	return c.fetchItems(ctx, listID, nil)
}

func (c *Client) fetchItems(ctx context.Context, listID string, fields []string) ([]domain.ExternalRecord, error) {
	params := url.Values{}
	if len(fields) > 0 {
		params.Set("expand", "fields(select="+strings.Join(fields, ",")+")")
	} else {
		params.Set("expand", "fields")
	}
	if c.cfg.PageSize > 0 {
		params.Set("$top", strconv.Itoa(c.cfg.PageSize))
	}

	items, err := collectPages[listItem](ctx, c, c.siteURL("lists/%s/items?%s", url.PathEscape(listID), params.Encode()))
	if err != nil {
		return nil, err
	}

	records := make([]domain.ExternalRecord, 0, len(items))
	for _, item := range items {
		rec := domain.ExternalRecord{ID: item.ID, Fields: item.Fields}
		if item.LastModifiedDateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.LastModifiedDateTime); err == nil {
				rec.Modified = &t
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// anyFieldPresent reports whether at least one record carries one of the
// requested fields with content
func anyFieldPresent(records []domain.ExternalRecord, fields []string) bool {
	for i := range records {
		for _, f := range fields {
			if _, ok := records[i].Field(f); ok {
				return true
			}
		}
	}
	return false
}

func isBadRequest(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsBadRequest()
}
