package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedResponse struct {
	status     int
	retryAfter string
	body       string
	err        error
}

// scriptedTransport replays canned responses and records how many calls were
// made.
type scriptedTransport struct {
	responses []scriptedResponse
	calls     int
	urls      []string
}

func (t *scriptedTransport) get(_ context.Context, url string) (int, string, []byte, error) {
	t.urls = append(t.urls, url)
	idx := t.calls
	if idx >= len(t.responses) {
		idx = len(t.responses) - 1
	}
	t.calls++
	r := t.responses[idx]
	return r.status, r.retryAfter, []byte(r.body), r.err
}

func newTestClient(transport *scriptedTransport) *Client {
	return &Client{
		baseURL:   "https://example.test/api",
		transport: transport,
		pacer:     NewPacer(0, newFakeClock()),
		logger:    zerolog.Nop(),
		maxTries:  3,
		baseDelay: time.Millisecond,
	}
}

func TestClientReturnsResultOnSuccess(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 200, body: `{"status":"OK","result":[{"id":7,"creationTimeSeconds":1700000000,"verdict":"OK","problem":{"contestId":1900,"index":"A","name":"Sum","rating":800,"tags":["math"]}}]}`},
	}}
	client := newTestClient(transport)

	subs, err := client.UserStatus(context.Background(), "tourist", 1, 200)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(7), subs[0].ID)
	assert.Equal(t, "OK", subs[0].Verdict)
	assert.Equal(t, int64(1900), subs[0].Problem.ContestID)
	assert.Equal(t, 1, transport.calls)
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 400, body: `{"status":"FAILED","comment":"handles: User with handle ghost not found"}`},
	}}
	client := newTestClient(transport)

	_, err := client.UserRating(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, transport.calls, "terminal errors must not be retried")
}

func TestClientDoesNotRetryForbidden(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 403, body: ``},
	}}
	client := newTestClient(transport)

	_, err := client.UserRating(context.Background(), "blocked")
	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.Equal(t, 1, transport.calls)
}

func TestClientRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []scriptedResponse{
		{err: errors.New("connection reset")},
		{status: 503, body: ``},
		{status: 200, body: `{"status":"OK","result":[]}`},
	}}
	client := newTestClient(transport)

	ratings, err := client.UserRating(context.Background(), "tourist")
	require.NoError(t, err)
	assert.Empty(t, ratings)
	assert.Equal(t, 3, transport.calls)
}

func TestClientSurfacesLastErrorAfterExhaustion(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 502, body: ``},
	}}
	client := newTestClient(transport)

	_, err := client.UserRating(context.Background(), "tourist")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransient, apiErr.Kind)
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.Equal(t, 3, transport.calls)
}

func TestClientRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 200, body: `{"status":"OK","result":{"problems":`},
	}}
	client := newTestClient(transport)

	_, err := client.ProblemsetProblems(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindMalformed, apiErr.Kind)
}

func TestUserInfoReturnsFirstUser(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{responses: []scriptedResponse{
		{status: 200, body: `{"status":"OK","result":[{"handle":"tourist","rating":3800,"maxRating":3979,"rank":"legendary grandmaster"}]}`},
	}}
	client := newTestClient(transport)

	info, err := client.UserInfo(context.Background(), "tourist")
	require.NoError(t, err)
	assert.Equal(t, "tourist", info.Handle)
	assert.Equal(t, 3800, info.Rating)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		retryAfter string
		body       string
		kind       ErrorKind
		wantErr    bool
		retryWait  time.Duration
	}{
		{
			name:   "ok envelope",
			status: 200,
			body:   `{"status":"OK","result":[]}`,
		},
		{
			name:    "failed envelope with not found comment",
			status:  400,
			body:    `{"status":"FAILED","comment":"handles: User with handle x not found"}`,
			wantErr: true,
			kind:    KindNotFound,
		},
		{
			name:      "call limit comment maps to rate limited",
			status:    200,
			body:      `{"status":"FAILED","comment":"Call limit exceeded"}`,
			wantErr:   true,
			kind:      KindRateLimited,
			retryWait: 10 * time.Second,
		},
		{
			name:       "429 honors retry-after with buffer",
			status:     429,
			retryAfter: "7",
			body:       ``,
			wantErr:    true,
			kind:       KindRateLimited,
			retryWait:  7*time.Second + 500*time.Millisecond,
		},
		{
			name:      "429 without hint uses long fallback",
			status:    429,
			body:      ``,
			wantErr:   true,
			kind:      KindRateLimited,
			retryWait: 10 * time.Second,
		},
		{
			name:    "http 404",
			status:  404,
			body:    ``,
			wantErr: true,
			kind:    KindNotFound,
		},
		{
			name:    "http 403",
			status:  403,
			body:    ``,
			wantErr: true,
			kind:    KindForbidden,
		},
		{
			name:    "http 500",
			status:  500,
			body:    ``,
			wantErr: true,
			kind:    KindTransient,
		},
		{
			name:    "failed envelope without comment",
			status:  200,
			body:    `{"status":"FAILED"}`,
			wantErr: true,
			kind:    KindTransient,
		},
		{
			name:    "garbage body on 200",
			status:  200,
			body:    `<html>`,
			wantErr: true,
			kind:    KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, apiErr := classify(tt.status, tt.retryAfter, []byte(tt.body))
			if !tt.wantErr {
				assert.Nil(t, apiErr)
				assert.NotNil(t, result)
				return
			}
			require.NotNil(t, apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			if tt.retryWait != 0 {
				assert.Equal(t, tt.retryWait, apiErr.RetryAfter)
			}
		})
	}
}
