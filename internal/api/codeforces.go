package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cftracker/internal/config"
	"cftracker/internal/constants"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// transport performs a single HTTP GET. Split out so retry and classification
// logic can be exercised without a network.
type transport interface {
	get(ctx context.Context, url string) (status int, retryAfter string, body []byte, err error)
}

type httpTransport struct {
	client    *fasthttp.Client
	userAgent string
}

func (t *httpTransport) get(ctx context.Context, url string) (int, string, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(t.userAgent)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := t.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, "", nil, err
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return resp.StatusCode(), string(resp.Header.Peek(fasthttp.HeaderRetryAfter)), body, nil
}

// Client is the rate-limited retrying Codeforces API client. Every call goes
// through the shared pacer before it leaves the process.
type Client struct {
	baseURL   string
	transport transport
	pacer     *Pacer
	logger    zerolog.Logger
	maxTries  uint
	baseDelay time.Duration
}

func NewClient(cfg *config.Config, pacer *Pacer, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.CFBaseURL, "/"),
		transport: &httpTransport{
			client: &fasthttp.Client{
				MaxConnsPerHost:     4,
				ReadTimeout:         constants.ExternalAPITimeout,
				WriteTimeout:        constants.ExternalAPITimeout,
				MaxIdleConnDuration: 1 * time.Minute,
			},
			userAgent: cfg.CFUserAgent,
		},
		pacer:     pacer,
		logger:    logger,
		maxTries:  constants.APIRetries,
		baseDelay: constants.RetryBaseDelay,
	}
}

// envelope is the wire-level response wrapper every Codeforces endpoint uses.
type envelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

type SubmissionEntry struct {
	ID                  int64        `json:"id"`
	CreationTimeSeconds int64        `json:"creationTimeSeconds"`
	Verdict             string       `json:"verdict"`
	Problem             ProblemEntry `json:"problem"`
}

type ProblemEntry struct {
	ContestID int64    `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Tags      []string `json:"tags"`
}

type RatingChange struct {
	ContestID               int64  `json:"contestId"`
	ContestName             string `json:"contestName"`
	Rank                    int    `json:"rank"`
	OldRating               int    `json:"oldRating"`
	NewRating               int    `json:"newRating"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
}

type Standings struct {
	Contest struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"contest"`
	Problems []ProblemEntry `json:"problems"`
}

type UserInfo struct {
	Handle    string `json:"handle"`
	Rating    int    `json:"rating"`
	MaxRating int    `json:"maxRating"`
	Rank      string `json:"rank"`
	MaxRank   string `json:"maxRank"`
	Avatar    string `json:"titlePhoto"`
}

type ProblemsetResult struct {
	Problems []ProblemEntry `json:"problems"`
}

// UserStatus returns one page of a user's submissions, newest first.
func (c *Client) UserStatus(ctx context.Context, handle string, from, count int) ([]SubmissionEntry, error) {
	path := fmt.Sprintf("/user.status?handle=%s&from=%d&count=%d", url.QueryEscape(handle), from, count)
	return fetch[[]SubmissionEntry](ctx, c, path)
}

// UserRating returns the user's full contest participation history. The API
// has no incremental variant.
func (c *Client) UserRating(ctx context.Context, handle string) ([]RatingChange, error) {
	return fetch[[]RatingChange](ctx, c, "/user.rating?handle="+url.QueryEscape(handle))
}

// ContestStandings retrieves contest metadata only, using the count=1 trick
// to avoid pulling the full scoreboard.
func (c *Client) ContestStandings(ctx context.Context, contestID int64) (*Standings, error) {
	path := fmt.Sprintf("/contest.standings?contestId=%d&from=1&count=1", contestID)
	standings, err := fetch[Standings](ctx, c, path)
	if err != nil {
		return nil, err
	}
	return &standings, nil
}

func (c *Client) UserInfo(ctx context.Context, handle string) (*UserInfo, error) {
	users, err := fetch[[]UserInfo](ctx, c, "/user.info?handles="+url.QueryEscape(handle))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, &Error{Kind: KindNotFound, Message: fmt.Sprintf("user %q not found", handle)}
	}
	return &users[0], nil
}

func (c *Client) ProblemsetProblems(ctx context.Context) (*ProblemsetResult, error) {
	result, err := fetch[ProblemsetResult](ctx, c, "/problemset.problems")
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func fetch[T any](ctx context.Context, c *Client, path string) (T, error) {
	var zero T
	raw, err := c.get(ctx, path)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, &Error{Kind: KindMalformed, Message: fmt.Sprintf("decoding result for %s: %v", path, err)}
	}
	return out, nil
}

// get runs one logical API call: pace, request, classify, retry. Terminal
// errors (404/403) stop immediately; rate-limit errors wait out the server
// hint; everything else backs off exponentially up to the attempt ceiling.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	fullURL := c.baseURL + path

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.baseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0

	attempt := 0
	var lastErr *Error

	op := func() (json.RawMessage, error) {
		attempt++
		c.pacer.Wait()
		c.logger.Debug().Str("url", fullURL).Int("attempt", attempt).Msg("calling codeforces api")

		status, retryAfter, body, err := c.transport.get(ctx, fullURL)
		if err != nil {
			lastErr = &Error{Kind: KindTransient, Message: err.Error()}
			c.logger.Warn().Err(err).Str("url", fullURL).Int("attempt", attempt).Msg("transport error")
			return nil, lastErr
		}

		result, apiErr := classify(status, retryAfter, body)
		if apiErr != nil {
			lastErr = apiErr
			c.logger.Warn().
				Int("status", status).
				Str("kind", apiErr.Kind.String()).
				Str("url", fullURL).
				Int("attempt", attempt).
				Msg("api call failed")

			if apiErr.Terminal() {
				return nil, backoff.Permanent(apiErr)
			}
			if apiErr.Kind == KindRateLimited {
				c.logger.Warn().Dur("wait", apiErr.RetryAfter).Msg("rate limited, honoring cool-down")
				return nil, &backoff.RetryAfterError{Duration: apiErr.RetryAfter}
			}
			return nil, apiErr
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, op, backoff.WithBackOff(expo), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		c.logger.Error().Str("url", fullURL).Int("attempts", attempt).Msg("giving up on api call")
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return result, nil
}

// classify maps an HTTP response to either the result payload or a typed
// error. Codeforces reports application failures through the envelope status
// field, usually alongside a 4xx, so the comment is inspected first.
func classify(status int, retryAfter string, body []byte) (json.RawMessage, *Error) {
	var env envelope
	parseErr := json.Unmarshal(body, &env)

	if parseErr == nil && env.Comment != "" {
		comment := strings.ToLower(env.Comment)
		switch {
		case strings.Contains(comment, "not found"):
			return nil, &Error{Kind: KindNotFound, StatusCode: status, Message: env.Comment}
		case strings.Contains(comment, "limit exceeded"):
			return nil, &Error{Kind: KindRateLimited, StatusCode: status, Message: env.Comment, RetryAfter: rateLimitWait(retryAfter)}
		}
	}

	switch {
	case status == fasthttp.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, StatusCode: status, Message: env.Comment}
	case status == fasthttp.StatusForbidden:
		return nil, &Error{Kind: KindForbidden, StatusCode: status, Message: env.Comment}
	case status == fasthttp.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, StatusCode: status, Message: env.Comment, RetryAfter: rateLimitWait(retryAfter)}
	case status != fasthttp.StatusOK:
		return nil, &Error{Kind: KindTransient, StatusCode: status, Message: fmt.Sprintf("unexpected status: %s", env.Comment)}
	}

	if parseErr != nil {
		return nil, &Error{Kind: KindMalformed, StatusCode: status, Message: parseErr.Error()}
	}
	if env.Status != "OK" {
		return nil, &Error{Kind: KindTransient, StatusCode: status, Message: env.Comment}
	}
	return env.Result, nil
}

func rateLimitWait(retryAfter string) time.Duration {
	if retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			return time.Duration(seconds)*time.Second + constants.RetryAfterBuffer
		}
	}
	return constants.RateLimitedWait
}
