// Package readmodel holds the HTTP clients for the external read-model APIs:
// person summaries, subject locations and officer allocations. Every call is
// bounded by the configured timeout; timeouts and 5xx responses map to a
// retryable unavailable outcome, 404s map to the domain-specific not-found.
package readmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/httpclient"
	"casework-workers/internal/models"
)

// TokenSource supplies bearer tokens for the read-model APIs.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type client struct {
	http    *httpclient.Client
	baseURL string
	tokens  TokenSource
	service string
}

func (c *client) get(ctx context.Context, endpoint string, out interface{}) (int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, errors.NewUnavailableError(c.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, errors.NewUnavailableError(c.service, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Covers timeouts and connection failures alike.
		return 0, errors.NewUnavailableError(c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return resp.StatusCode, errors.NewUnavailableError(c.service,
			fmt.Errorf("%s returned %d", endpoint, resp.StatusCode))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, errors.NewUnavailableError(c.service, err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, errors.NewUnavailableError(c.service,
				fmt.Errorf("malformed response from %s: %w", endpoint, err))
		}
	}
	return resp.StatusCode, nil
}

// --- person ---

// PersonClient looks up subject summaries.
type PersonClient struct {
	client
}

func NewPersonClient(http *httpclient.Client, baseURL string, tokens TokenSource) *PersonClient {
	return &PersonClient{client{http: http, baseURL: strings.TrimSuffix(baseURL, "/"), tokens: tokens, service: "person-read-model"}}
}

type subjectSummaryResponse struct {
	SubjectID      string `json:"crn"`
	Name           string `json:"name"`
	ActiveLocation string `json:"activeLocation"`
	Restricted     bool   `json:"restricted"`
}

// GetSubjectSummary resolves a subject for the requesting user. Restricted
// records are reported as access denied rather than not found, so callers can
// distinguish "fix the id" from "talk to the record owner".
func (c *PersonClient) GetSubjectSummary(ctx context.Context, subjectID, username string) (*models.SubjectSummary, error) {
	endpoint := fmt.Sprintf("%s/subjects/%s?requester=%s",
		c.baseURL, url.PathEscape(subjectID), url.QueryEscape(username))

	var body subjectSummaryResponse
	status, err := c.get(ctx, endpoint, &body)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusNotFound:
		return nil, errors.NewSubjectNotFoundError(subjectID)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.NewSubjectAccessDeniedError(subjectID)
	}
	if body.Restricted {
		return nil, errors.NewSubjectAccessDeniedError(subjectID)
	}
	return &models.SubjectSummary{
		SubjectID:      body.SubjectID,
		Name:           body.Name,
		ActiveLocation: body.ActiveLocation,
	}, nil
}

// --- location ---

// LocationClient looks up the subject's current location.
type LocationClient struct {
	client
}

func NewLocationClient(http *httpclient.Client, baseURL string, tokens TokenSource) *LocationClient {
	return &LocationClient{client{http: http, baseURL: strings.TrimSuffix(baseURL, "/"), tokens: tokens, service: "location-read-model"}}
}

type locationResponse struct {
	Location string `json:"location"`
}

func (c *LocationClient) GetCurrentLocation(ctx context.Context, subjectID string) (string, error) {
	endpoint := fmt.Sprintf("%s/subjects/%s/location", c.baseURL, url.PathEscape(subjectID))

	var body locationResponse
	status, err := c.get(ctx, endpoint, &body)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound || body.Location == "" {
		return "", errors.NewLocationNotFoundError(subjectID)
	}
	return body.Location, nil
}

// --- allocation ---

// AllocationClient fetches the authoritative allocation detail named by an
// inbound event's detail reference.
type AllocationClient struct {
	client
}

func NewAllocationClient(http *httpclient.Client, tokens TokenSource) *AllocationClient {
	return &AllocationClient{client{http: http, tokens: tokens, service: "allocation-read-model"}}
}

type allocationResponse struct {
	Officer  string `json:"officer"`
	Location string `json:"location"`
}

// GetCurrentAllocation dereferences detailURL. "No current allocation" is a
// legitimate transient state (deallocation), reported as AllocationNotFound.
func (c *AllocationClient) GetCurrentAllocation(ctx context.Context, detailURL string) (*models.Allocation, error) {
	var body allocationResponse
	status, err := c.get(ctx, detailURL, &body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || body.Location == "" {
		return nil, errors.NewAllocationNotFoundError(detailURL)
	}
	return &models.Allocation{Officer: body.Officer, Location: body.Location}, nil
}
