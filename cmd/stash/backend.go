package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/acksell/stash/kv"
	"github.com/acksell/stash/kv/kvbadger"
	"github.com/acksell/stash/kv/kvddb"
	"github.com/acksell/stash/kv/kvsqlite"
)

// openStore opens the configured backend, namespaced when cfg.Namespace is
// set. The returned close function is never nil.
func openStore(ctx context.Context, cfg Config, log *zap.Logger) (kv.Store, func() error, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	var store kv.Store
	switch cfg.Backend {
	case "badger":
		s, err := kvbadger.New(kvbadger.StoreOptions{
			Path:   filepath.Join(cfg.DataDir, "badger"),
			Logger: log,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "memory":
		s, err := kvbadger.New(kvbadger.StoreOptions{InMemory: true, Logger: log})
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "sqlite":
		s, err := kvsqlite.Open(ctx, kvsqlite.Options{
			Path:   filepath.Join(cfg.DataDir, "stash.db"),
			Logger: log.Named("sqlite"),
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "dynamodb":
		s, err := openDynamoDB(ctx, cfg.DynamoDB, log)
		if err != nil {
			return nil, nil, err
		}
		store = s
	}

	log.Debug("opened store", zap.String("backend", cfg.Backend), zap.String("namespace", cfg.Namespace))

	closeFn := func() error {
		if c, ok := store.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	return kv.Namespace(store, cfg.Namespace), closeFn, nil
}

func openDynamoDB(ctx context.Context, cfg DynamoDBConfig, log *zap.Logger) (*kvddb.Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return kvddb.New(client, kvddb.Options{
		Table:  kvddb.TableDefinition{Name: cfg.Table},
		Logger: log.Named("dynamodb"),
	})
}
