// Package bootstrap builds the runtime dependencies shared by the site binary
// and its tests.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/beautylab-site/internal/config"
	"github.com/wolfman30/beautylab-site/internal/formstate"
	"github.com/wolfman30/beautylab-site/internal/journal"
	"github.com/wolfman30/beautylab-site/internal/notify"
	"github.com/wolfman30/beautylab-site/internal/relay"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

// Relay provider names accepted in RELAY_PROVIDER.
const (
	ProviderWeb3Forms = "web3forms"
	ProviderSendGrid  = "sendgrid"
	ProviderSES       = "ses"
	ProviderLog       = "log"
)

const brandName = "Beauty Lab"

// SESClientFunc lazily builds an SES client; it is only called when the ses
// provider is selected.
type SESClientFunc func(ctx context.Context) (notify.SESAPI, error)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, falling back to in-memory form state", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildFormStore picks the Redis store when a client is available and the
// process-local store otherwise.
func BuildFormStore(redisClient *redis.Client, cfg *appconfig.Config) formstate.Store {
	ttl := 24 * time.Hour
	if cfg != nil && cfg.FormStateTTL > 0 {
		ttl = cfg.FormStateTTL
	}
	if redisClient == nil {
		return formstate.NewMemoryStore(ttl)
	}
	return formstate.NewRedisStore(redisClient, ttl)
}

// BuildPostgresPool connects to DATABASE_URL. It returns nil when the URL is
// empty or the database cannot be reached.
func BuildPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Warn("postgres pool not created, outcome journal disabled", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("postgres not reachable, outcome journal disabled", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildJournal returns the Postgres journal or a no-op recorder.
func BuildJournal(pool *pgxpool.Pool) journal.Recorder {
	if pool == nil {
		return journal.Noop{}
	}
	return journal.NewPostgresJournal(pool)
}

// BuildRelay wires the relay named by RELAY_PROVIDER.
func BuildRelay(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, sesClient SESClientFunc) (relay.Relay, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.RelayProvider))
	switch provider {
	case "", ProviderWeb3Forms:
		if strings.TrimSpace(cfg.RelayAccessKey) == "" {
			return nil, errors.New("bootstrap: RELAY_ACCESS_KEY is required for the web3forms relay")
		}
		return relay.NewWeb3Forms(relay.Web3FormsConfig{
			Endpoint:  cfg.RelayEndpoint,
			AccessKey: cfg.RelayAccessKey,
			Subject:   cfg.RelaySubject,
			FromName:  brandName,
			Timeout:   cfg.RelayTimeout,
		}, logger), nil

	case ProviderSendGrid:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return nil, errors.New("bootstrap: SENDGRID_API_KEY is required for the sendgrid relay")
		}
		return emailRelay(sender, cfg, logger)

	case ProviderSES:
		if sesClient == nil {
			return nil, errors.New("bootstrap: no SES client available")
		}
		client, err := sesClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: ses client: %w", err)
		}
		sender := notify.NewSESSender(client, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  brandName,
		}, logger)
		if sender == nil {
			return nil, errors.New("bootstrap: no SES client available")
		}
		return emailRelay(sender, cfg, logger)

	case ProviderLog:
		inbox := cfg.StudioInbox
		if strings.TrimSpace(inbox) == "" {
			inbox = "studio@localhost"
		}
		logger.Warn("relay provider is log; leads are not delivered anywhere")
		return relay.NewEmailRelay(notify.NewStubEmailSender(logger), inbox, brandName, logger), nil
	}

	return nil, fmt.Errorf("bootstrap: unknown relay provider %q", provider)
}

func emailRelay(sender notify.EmailSender, cfg *appconfig.Config, logger *logging.Logger) (relay.Relay, error) {
	if strings.TrimSpace(cfg.StudioInbox) == "" {
		return nil, errors.New("bootstrap: STUDIO_INBOX is required for e-mail relays")
	}
	return relay.NewEmailRelay(sender, cfg.StudioInbox, brandName, logger), nil
}

// ProviderName normalizes RELAY_PROVIDER for metrics and the journal.
func ProviderName(cfg *appconfig.Config) string {
	if cfg == nil {
		return ProviderWeb3Forms
	}
	if p := strings.ToLower(strings.TrimSpace(cfg.RelayProvider)); p != "" {
		return p
	}
	return ProviderWeb3Forms
}
