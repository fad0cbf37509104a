package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize   = 100
	defaultMaxRetries = 5
	backoffBase       = 500 * time.Millisecond
)

// apiEndpoints maps entities to their collection endpoint on the upstream
// API.
var apiEndpoints = map[models.EntityKind]string{
	models.KindInvoice:     "invoices",
	models.KindPayment:     "payments",
	models.KindTransaction: "transactions",
}

// apiPage is the response shape of the upstream collection endpoints.
type apiPage struct {
	Data       []map[string]any `json:"data"`
	NextCursor string           `json:"next_cursor"`
}

// apiAdapter polls a paginated JSON API with bearer authentication. Rate
// limit responses are retried with exponential backoff and jitter up to a
// bounded attempt count, then surface as a terminal fetch error.
type apiAdapter struct {
	cfg     Config
	client  *http.Client
	baseURL *url.URL
}

func newAPIAdapter(cfg Config) *apiAdapter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	return &apiAdapter{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (a *apiAdapter) Name() string {
	return a.cfg.Name
}

func (a *apiAdapter) Open(_ context.Context) error {
	if a.cfg.BaseURL == "" {
		return fmt.Errorf("source %q has no base URL", a.cfg.Name)
	}
	if a.cfg.APIKey == "" {
		return fmt.Errorf("source %q has no API key", a.cfg.Name)
	}

	base, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("source %q has an invalid base URL: %w", a.cfg.Name, err)
	}

	a.baseURL = base
	return nil
}

func (a *apiAdapter) Fetch(ctx context.Context, since time.Time) (<-chan Raw, error) {
	out := make(chan Raw)

	go func() {
		defer close(out)

		for _, entity := range a.entities() {
			if err := a.streamEntity(ctx, entity, since, out); err != nil {
				// The terminal error must reach the consumer even when the
				// context is already done, otherwise an interrupted fetch
				// looks like a finished one. The consumer drains the channel
				// until it closes, so this send cannot block forever.
				out <- Raw{Entity: entity, Pos: apiEndpoints[entity], Err: fmt.Errorf("%w: %s", ErrFetchFailed, err)}
				return
			}
		}
	}()

	return out, nil
}

func (a *apiAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// entities returns the entity kinds this source is configured for,
// defaulting to all of them.
func (a *apiAdapter) entities() []models.EntityKind {
	all := []models.EntityKind{models.KindInvoice, models.KindPayment, models.KindTransaction}

	if len(a.cfg.Entities) == 0 {
		return all
	}

	var kinds []models.EntityKind
	for _, entity := range all {
		for _, configured := range a.cfg.Entities {
			if string(entity) == configured {
				kinds = append(kinds, entity)
			}
		}
	}
	return kinds
}

func (a *apiAdapter) streamEntity(ctx context.Context, entity models.EntityKind, since time.Time, out chan<- Raw) error {
	cursor := ""
	pageNum := 1

	for {
		// A cancelled fetch is a terminal error, the remaining pages were
		// never read.
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := a.fetchPage(ctx, entity, since, cursor)
		if err != nil {
			return err
		}

		for _, item := range page.Data {
			if !emit(ctx, out, Raw{
				Entity: entity,
				Fields: stringifyItem(item),
				Pos:    fmt.Sprintf("%s page %d", apiEndpoints[entity], pageNum),
			}) {
				return ctx.Err()
			}
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
		pageNum++
	}
}

// fetchPage requests one page, retrying transient failures with exponential
// backoff and jitter.
func (a *apiAdapter) fetchPage(ctx context.Context, entity models.EntityKind, since time.Time, cursor string) (apiPage, error) {
	endpoint := a.baseURL.JoinPath(apiEndpoints[entity])

	query := endpoint.Query()
	query.Set("limit", strconv.Itoa(a.cfg.PageSize))
	if !since.IsZero() {
		query.Set("since", since.Format(time.RFC3339))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	endpoint.RawQuery = query.Encode()

	var lastErr error
	for attempt := 0; attempt < a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return apiPage{}, err
			}
		}

		page, retryable, err := a.doRequest(ctx, endpoint.String())
		if err == nil {
			return page, nil
		}
		if !retryable {
			return apiPage{}, err
		}

		lastErr = err
		log.Warn().
			Str("source", a.cfg.Name).
			Str("endpoint", apiEndpoints[entity]).
			Int("attempt", attempt+1).
			Err(err).
			Msg("transient fetch error, backing off")
	}

	return apiPage{}, fmt.Errorf("giving up after %d attempts: %w", a.cfg.MaxRetries, lastErr)
}

// doRequest performs one HTTP request. The second return value reports
// whether the error is worth retrying.
func (a *apiAdapter) doRequest(ctx context.Context, url string) (apiPage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apiPage{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		// Network level errors are transient unless the context is done.
		if ctx.Err() != nil {
			return apiPage{}, false, ctx.Err()
		}
		return apiPage{}, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var page apiPage
		decoder := json.NewDecoder(resp.Body)
		// Numbers stay strings until the normalizer parses them into
		// decimals, float64 round trips would lose precision.
		decoder.UseNumber()
		if err := decoder.Decode(&page); err != nil {
			return apiPage{}, false, fmt.Errorf("could not decode response: %w", err)
		}
		return page, false, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apiPage{}, false, fmt.Errorf("authentication failed with HTTP %d", resp.StatusCode)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return apiPage{}, true, fmt.Errorf("HTTP %d", resp.StatusCode)

	default:
		return apiPage{}, false, fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}
}

// sleepBackoff waits for an exponentially growing duration with jitter.
func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := backoffBase << (attempt - 1)
	backoff += time.Duration(rand.Int63n(int64(backoff)))

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stringifyItem flattens a decoded JSON object into the canonical string
// field map the normalizer consumes.
func stringifyItem(item map[string]any) map[string]string {
	fields := make(map[string]string, len(item))
	for key, value := range item {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			fields[key] = v
		case json.Number:
			fields[key] = v.String()
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			fields[key] = fmt.Sprintf("%v", v)
		}
	}
	return fields
}
