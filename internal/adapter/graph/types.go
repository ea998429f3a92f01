package graph

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// Default endpoints
const (
	DefaultBaseURL   = "https://graph.microsoft.com/v1.0"
	DefaultAuthority = "https://login.microsoftonline.com"
	DefaultScope     = "https://graph.microsoft.com/.default"
)

// page is one page of a Graph collection response
type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// errorBody is the Graph error envelope
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// tokenResponse is returned by the identity endpoint
type tokenResponse struct {
	AccessToken      string      `json:"access_token"`
	ExpiresIn        json.Number `json:"expires_in"`
	TokenType        string      `json:"token_type"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

// listItem is a raw list item
type listItem struct {
	ID                   string                  `json:"id"`
	LastModifiedDateTime string                  `json:"lastModifiedDateTime"`
	Fields               map[string]domain.Value `json:"fields"`
}

// APIError represents a non-2xx response from Graph
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph api %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized returns true if the token was rejected
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsBadRequest returns true if Graph rejected the request syntax
func (e *APIError) IsBadRequest() bool {
	return e.StatusCode == http.StatusBadRequest
}

// IsNotFound returns true if the resource does not exist
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsThrottled returns true if Graph asked the caller to back off
func (e *APIError) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// newAPIError builds an APIError from a response body
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Code != "" {
		apiErr.Code = eb.Error.Code
		apiErr.Message = eb.Error.Message
	}
	return apiErr
}
