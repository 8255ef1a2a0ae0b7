package readmodel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"casework-workers/internal/common/errors"
	"casework-workers/internal/common/httpclient"

	"github.com/stretchr/testify/assert"
)

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context) (string, error) { return "test-token", nil }

func TestPersonClient_GetSubjectSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"crn": "X12345", "name": "Test Subject", "activeLocation": "north-office"}`))
	}))
	defer srv.Close()

	c := NewPersonClient(httpclient.NewClient(time.Second), srv.URL, staticTokens{})
	summary, err := c.GetSubjectSummary(context.Background(), "X12345", "alice")

	assert.NoError(t, err)
	assert.Equal(t, "X12345", summary.SubjectID)
	assert.Equal(t, "north-office", summary.ActiveLocation)
}

func TestPersonClient_EscapesIdentifiers(t *testing.T) {
	var gotPath, gotRequester string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotRequester = r.URL.Query().Get("requester")
		w.Write([]byte(`{"crn": "X 123", "name": "Test Subject", "activeLocation": "north-office"}`))
	}))
	defer srv.Close()

	c := NewPersonClient(httpclient.NewClient(time.Second), srv.URL, staticTokens{})
	_, err := c.GetSubjectSummary(context.Background(), "X 123", "smith&role=admin")

	assert.NoError(t, err)
	assert.Equal(t, "/subjects/X%20123", gotPath, "subject id must be path-escaped")
	assert.Equal(t, "smith&role=admin", gotRequester, "requester must survive query metacharacters intact")
}

func TestPersonClient_NotFoundAndRestricted(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
	}{
		{"unknown subject", http.StatusNotFound, ``, errors.ErrCodeSubjectNotFound},
		{"forbidden subject", http.StatusForbidden, ``, errors.ErrCodeSubjectAccessDenied},
		{"restricted record", http.StatusOK, `{"crn": "X12345", "restricted": true}`, errors.ErrCodeSubjectAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewPersonClient(httpclient.NewClient(time.Second), srv.URL, staticTokens{})
			_, err := c.GetSubjectSummary(context.Background(), "X12345", "alice")

			assert.True(t, errors.IsCode(err, tt.wantCode))
			assert.False(t, errors.IsRetryable(err))
		})
	}
}

func TestLocationClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewLocationClient(httpclient.NewClient(time.Second), srv.URL, staticTokens{})
	_, err := c.GetCurrentLocation(context.Background(), "X12345")

	assert.True(t, errors.IsCode(err, errors.ErrCodeLocationNotFound))
}

func TestLocationClient_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewLocationClient(httpclient.NewClient(time.Second), srv.URL, staticTokens{})
	_, err := c.GetCurrentLocation(context.Background(), "X12345")

	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	assert.True(t, errors.IsRetryable(err))
}

func TestLocationClient_TimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewLocationClient(httpclient.NewClient(50*time.Millisecond), srv.URL, staticTokens{})
	_, err := c.GetCurrentLocation(context.Background(), "X12345")

	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
	assert.True(t, errors.IsRetryable(err))
}

func TestAllocationClient_GetCurrentAllocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"officer": "officer-3", "location": "south-office"}`))
	}))
	defer srv.Close()

	c := NewAllocationClient(httpclient.NewClient(time.Second), staticTokens{})
	alloc, err := c.GetCurrentAllocation(context.Background(), srv.URL+"/allocations/abc")

	assert.NoError(t, err)
	assert.Equal(t, "officer-3", alloc.Officer)
	assert.Equal(t, "south-office", alloc.Location)
}

func TestAllocationClient_DeallocationIsInformational(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewAllocationClient(httpclient.NewClient(time.Second), staticTokens{})
	_, err := c.GetCurrentAllocation(context.Background(), srv.URL+"/allocations/abc")

	assert.True(t, errors.IsCode(err, errors.ErrCodeAllocationNotFound))
	assert.False(t, errors.IsRetryable(err))
}
