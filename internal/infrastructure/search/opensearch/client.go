package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

var (
	ErrInvalidConfig    = errors.New(errors.ErrCodeValidation, "opensearch: at least one address is required")
	ErrConnectionFailed = errors.New(errors.ErrCodeSearchFailed, "opensearch connection failed")
)

// ClientOptions tune transport behaviour beyond what the config file exposes.
type ClientOptions struct {
	MaxRetries          int
	RetryBackoff        time.Duration
	MaxIdleConnsPerHost int
	HealthCheckInterval time.Duration
}

func (o *ClientOptions) applyDefaults() {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = 100 * time.Millisecond
	}
	if o.MaxIdleConnsPerHost == 0 {
		o.MaxIdleConnsPerHost = 10
	}
	if o.HealthCheckInterval == 0 {
		o.HealthCheckInterval = 30 * time.Second
	}
}

// Client wraps an opensearch-go client and tracks cluster health.
type Client struct {
	client *opensearch.Client
	logger logging.Logger

	healthy atomic.Bool
	cancel  context.CancelFunc
}

// NewClient builds a client, pings the cluster and starts a background health
// check.  Close stops the health check.
func NewClient(ctx context.Context, cfg config.OpenSearchConfig, opts ClientOptions, log logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, ErrInvalidConfig
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	opts.applyDefaults()

	transport := &http.Transport{MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	raw, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.User,
		Password:      cfg.Password,
		MaxRetries:    opts.MaxRetries,
		RetryBackoff:  func(int) time.Duration { return opts.RetryBackoff },
		RetryOnStatus: []int{502, 503, 504, 429},
		Transport:     transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchFailed, "failed to create opensearch client")
	}

	c := NewClientFrom(raw, log)
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchFailed, "opensearch connection failed")
	}

	hcCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.healthLoop(hcCtx, opts.HealthCheckInterval)

	log.Info("opensearch client connected", logging.Strings("addresses", cfg.Addresses))
	return c, nil
}

// NewClientFrom wraps an existing opensearch-go client without pinging it.
// The client starts out healthy.
func NewClientFrom(raw *opensearch.Client, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &Client{client: raw, logger: log, cancel: func() {}}
	c.healthy.Store(true)
	return c
}

// Ping checks that the cluster answers and updates the health flag.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("opensearch ping failed", logging.Err(err))
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		c.healthy.Store(false)
		c.logger.Warn("opensearch ping returned error status", logging.Int("status", resp.StatusCode))
		return ErrConnectionFailed
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy returns the result of the last ping.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

// Raw exposes the underlying opensearch-go client.
func (c *Client) Raw() *opensearch.Client {
	return c.client
}

// Close stops the health check.
func (c *Client) Close() error {
	c.cancel()
	return nil
}

func (c *Client) healthLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := c.healthy.Load()
			err := c.Ping(ctx)
			curr := c.healthy.Load()

			if prev && !curr {
				c.logger.Error("opensearch cluster became unhealthy", logging.Err(err))
			} else if !prev && curr {
				c.logger.Info("opensearch cluster recovered")
			}
		}
	}
}
