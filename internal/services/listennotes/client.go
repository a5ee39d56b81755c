// Package listennotes fetches podcast details from the Listennotes API.
package listennotes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/metrics"
	"github.com/amaumene/trackarr/internal/models"
	"github.com/amaumene/trackarr/internal/pagination"
	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	breakerName = "listennotes-api"
	maxRetries  = 3
	detailsTTL  = time.Hour
)

var tracer = otel.Tracer("github.com/amaumene/trackarr/internal/services/listennotes")

// ErrUnavailable is returned while the circuit breaker is open
var ErrUnavailable = errors.New("listennotes is unavailable")

// Client wraps Listennotes API calls behind a circuit breaker
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*podcastResponse]
	details    *cache.Cache
	logger     *logrus.Logger
}

// NewClient creates a new Listennotes client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.ListennotesAPIToken == "" {
		return nil, fmt.Errorf("listennotes API token is required")
	}
	if cfg.ListennotesURL == "" {
		return nil, fmt.Errorf("listennotes URL is required")
	}

	c := &Client{
		baseURL:    cfg.ListennotesURL,
		apiToken:   cfg.ListennotesAPIToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		details:    cache.New(detailsTTL, 2*detailsTTL),
		logger:     logger,
	}

	// Opens after 60% failures over at least 5 requests, lets one trial request through after a minute
	c.breaker = gobreaker.NewCircuitBreaker[*podcastResponse](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return c, nil
}

type podcastResponse struct {
	ID                 string            `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Publisher          string            `json:"publisher"`
	Image              string            `json:"image"`
	EarliestPubDateMS  int64             `json:"earliest_pub_date_ms"`
	TotalEpisodes      int               `json:"total_episodes"`
	NextEpisodePubDate int64             `json:"next_episode_pub_date"`
	Episodes           []episodeResponse `json:"episodes"`
}

type episodeResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Thumbnail      string `json:"thumbnail"`
	PubDateMS      int64  `json:"pub_date_ms"`
	AudioLengthSec int    `json:"audio_length_sec"`
}

func (e episodeResponse) toEpisode() models.PodcastEpisode {
	episode := models.PodcastEpisode{
		ID:          e.ID,
		Title:       e.Title,
		Overview:    e.Description,
		Thumbnail:   e.Thumbnail,
		PublishDate: time.UnixMilli(e.PubDateMS).UTC(),
	}
	if e.AudioLengthSec > 0 {
		minutes := e.AudioLengthSec / 60
		episode.RuntimeMinutes = &minutes
	}
	return episode
}

// PodcastDetails fetches a podcast with every episode, oldest first and
// numbered from 1. Results are cached for an hour.
func (c *Client) PodcastDetails(ctx context.Context, identifier string) (*models.Metadata, error) {
	if cached, ok := c.details.Get(identifier); ok {
		meta := *cached.(*models.Metadata)
		return &meta, nil
	}

	ctx, span := tracer.Start(ctx, "listennotes.PodcastDetails")
	span.SetAttributes(attribute.String("podcast.identifier", identifier))
	defer span.End()

	var header *podcastResponse
	fetch := func(ctx context.Context, cursor *pagination.Cursor) (pagination.Page[models.PodcastEpisode], error) {
		var after *time.Time
		if cursor != nil {
			after = &cursor.After
		}
		resp, err := c.fetchPage(ctx, identifier, after)
		if err != nil {
			return pagination.Page[models.PodcastEpisode]{}, err
		}
		if header == nil {
			header = resp
		}

		episodes := make([]models.PodcastEpisode, 0, len(resp.Episodes))
		for _, e := range resp.Episodes {
			episodes = append(episodes, e.toEpisode())
		}
		return pagination.Page[models.PodcastEpisode]{Items: episodes, Total: resp.TotalEpisodes}, nil
	}

	episodes, total, err := pagination.Accumulate(ctx, fetch, pagination.Options[models.PodcastEpisode]{
		Timestamp: func(e models.PodcastEpisode) time.Time { return e.PublishDate },
		Number:    func(e *models.PodcastEpisode, n int) { e.Number = n },
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(episodes) < total {
		c.logger.WithFields(logrus.Fields{
			"identifier":     identifier,
			"episodes":       len(episodes),
			"total_episodes": total,
		}).Warn("Listennotes returned fewer episodes than announced")
	}

	meta := header.toMetadata(identifier, episodes, total)
	c.details.SetDefault(identifier, meta)

	copied := *meta
	return &copied, nil
}

func (p *podcastResponse) toMetadata(identifier string, episodes []models.PodcastEpisode, total int) *models.Metadata {
	meta := &models.Metadata{
		Lot:         models.MediaLotPodcast,
		Source:      models.MediaSourceListennotes,
		Identifier:  identifier,
		Title:       p.Title,
		Description: p.Description,
		Podcast: &models.PodcastSpecifics{
			Episodes:      episodes,
			TotalEpisodes: total,
		},
	}
	if p.EarliestPubDateMS > 0 {
		published := time.UnixMilli(p.EarliestPubDateMS).UTC()
		year := published.Year()
		meta.PublishYear = &year
		meta.PublishDate = models.DatePtr(published)
	}
	return meta
}

// fetchPage requests one page of episodes published after the given time
func (c *Client) fetchPage(ctx context.Context, identifier string, after *time.Time) (*podcastResponse, error) {
	params := url.Values{}
	params.Set("sort", "oldest_first")
	if after != nil {
		params.Set("next_episode_pub_date", strconv.FormatInt(after.UnixMilli(), 10))
	}
	fullURL := fmt.Sprintf("%s/podcasts/%s?%s", c.baseURL, url.PathEscape(identifier), params.Encode())

	resp, err := c.breaker.Execute(func() (*podcastResponse, error) {
		return c.doRequest(ctx, fullURL)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, err
}

// doRequest performs a GET with retries on rate limits and server errors
func (c *Client) doRequest(ctx context.Context, fullURL string) (*podcastResponse, error) {
	log := c.logger.WithField("url", fullURL)

	var result podcastResponse
	operation := func() error {
		log.Debug("Making Listennotes API request")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("X-ListenAPI-Key", c.apiToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues("listennotes", "error").Inc()
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		metrics.ProviderRequests.WithLabelValues("listennotes", strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		result = podcastResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &result, nil
}
