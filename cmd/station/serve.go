package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"e2e_station/internal/config"
	"e2e_station/internal/protocol/sealer"
	"e2e_station/internal/repository/identity"
	"e2e_station/internal/service/dispatcher"
	"e2e_station/internal/service/filter"
	"e2e_station/internal/service/processor"
	"e2e_station/internal/service/push"
	"e2e_station/internal/service/receptionist"
	redisSvc "e2e_station/internal/service/redis"
	"e2e_station/internal/service/server"
	"e2e_station/internal/service/session"
	"e2e_station/internal/service/station"
	"e2e_station/internal/service/storage"
	"e2e_station/internal/utils/log"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.Log.Level = "debug"
				cfg.Log.Development = true
			}
			if err := log.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "debug logging")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	directory, closeDirectory, err := initDirectory(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeDirectory()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	rs := redisSvc.NewRedis(rdb)
	if err := rs.Ping(ctx); err != nil {
		return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}

	keys, seed, err := sealer.LoadOrCreate(cfg.Station.KeyFile, cfg.Station.Name)
	if err != nil {
		return fmt.Errorf("load station keys: %w", err)
	}
	st := station.NewStation(seed, keys, directory)
	if err := st.Publish(ctx); err != nil {
		return err
	}

	registry := session.NewRegistry()
	queue := storage.NewMessageQueue(rs, cfg.Receptionist.BatchSize)
	lists := storage.NewLists(rs)
	notifier := push.NewNotifier(rs, cfg.Push.Outbox)
	rec := receptionist.NewReceptionist(registry, queue, notifier, cfg.Receptionist.Interval, log.L())

	disp := dispatcher.NewDispatcher(dispatcher.Options{
		Sessions:    registry,
		Store:       queue,
		Lists:       lists,
		Names:       directory,
		Notifier:    notifier,
		Guests:      rec,
		Broadcaster: dispatcher.NewLocalBroadcaster(registry),
		Neighbors:   cfg.Neighbors,
	})

	srv := server.NewHttpServer(server.Options{
		Addr:         cfg.Server.Addr,
		ReadLimit:    cfg.Server.ReadLimit,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, st, registry, directory, processor.Options{
		Station:     st,
		Registry:    registry,
		Filter:      filter.NewFilter(lists, directory),
		Dispatcher:  disp,
		Directory:   directory,
		Lists:       lists,
		Tokens:      notifier,
		Guests:      rec,
		MaxUsers:    cfg.Users.Max,
		SearchLimit: cfg.Search.Limit,
	}, log.L())

	go rec.Run(ctx)

	log.Info("station ready",
		zap.String("id", st.ID().String()),
		zap.String("addr", cfg.Server.Addr))
	return srv.Run(ctx)
}

// initDirectory connects MongoDB, or keeps metas in memory when no URI
// is configured.
func initDirectory(ctx context.Context, cfg config.MongoConfig) (identity.Directory, func(), error) {
	if cfg.URI == "" {
		log.Warn("mongo uri not set, identity directory is in memory")
		return identity.NewMemoryRepo(), func() {}, nil
	}

	client, err := initMongo(ctx, cfg.URI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Error("disconnect mongo failed", zap.Error(err))
		}
	}
	return identity.NewMongoRepo(client.Database(cfg.Database)), closeFn, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
