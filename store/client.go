package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewClient(host string) (*mongo.Client, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(host))
	if err != nil {
		return nil, fmt.Errorf("unable to create mongo client: %w", err)
	}

	ctx, cancel := NewDbContext()
	defer cancel()
	err = client.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongo: %w", err)
	}

	return client, nil
}

type ClientParams struct {
	fx.In

	Config    *Config
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// NewClientWithRetry connects and pings the deployment, retrying with a fixed delay
// until the configured number of attempts is exhausted.
func NewClientWithRetry(p ClientParams) (*mongo.Client, error) {
	cs, err := p.Config.GetConnectionString()
	if err != nil {
		return nil, err
	}

	attempts := p.Config.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}

	var client *mongo.Client
	err = retry.Do(
		func() error {
			c, err := NewClient(cs)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.Ping(ctx, nil); err != nil {
				_ = c.Disconnect(ctx)
				return fmt.Errorf("unable to ping mongo: %w", err)
			}
			client = c
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(p.Config.ConnectBackoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.Logger.Warnw("mongo connection attempt failed", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})
	return client, nil
}

func NewDatabase(client *mongo.Client, cfg *Config) (*mongo.Database, error) {
	return client.Database(cfg.DatabaseName), nil
}
