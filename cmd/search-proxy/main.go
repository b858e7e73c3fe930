// Command search-proxy serves paginated searches over HTTP and runs one-shot
// searches from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/search-pager/internal/config"
	"github.com/Sternrassler/search-pager/pkg/client"
	"github.com/Sternrassler/search-pager/pkg/logging"
	"github.com/Sternrassler/search-pager/pkg/metrics"
	"github.com/Sternrassler/search-pager/pkg/provider"
)

// app carries state shared by all commands.
type app struct {
	v          *viper.Viper
	configFile string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:          "search-proxy",
		Short:        "Resilient paginated search client",
		Long:         "search-proxy fetches paginated results from a rate-limit-sensitive search backend,\nbacking off and circuit-breaking when the backend pushes back.",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (YAML)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("pretty", false, "human-readable console logs")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.pretty", flags.Lookup("pretty"))

	root.AddCommand(newServeCmd(a), newSearchCmd(a))
	return root
}

// load reads the configuration and sets up logging.
func (a *app) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.Setup(cfg.Logging()), nil
}

// newClient builds the search client. The returned cleanup closes the Redis
// connection when one was opened.
func newClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*client.Client, func(), error) {
	cleanup := func() {}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, cleanup, err
	}

	var redisClient *redis.Client
	if redisOpts != nil {
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, cleanup, fmt.Errorf("connect to redis at %s: %w", redisOpts.Addr, err)
		}
		logger.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
		cleanup = func() { redisClient.Close() }
	}

	p, err := provider.New(cfg.ProviderConfig(), logger)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("create provider: %w", err)
	}

	c, err := client.New(cfg.ClientConfig(redisClient), p, metrics.NewPrometheusReporter(), logger)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("create client: %w", err)
	}

	return c, cleanup, nil
}
