package repositories

import (
	"context"
	"fmt"

	"github.com/alicesotero/CoLab/internal/core/ports"
	badgerrepo "github.com/alicesotero/CoLab/internal/infrastructure/repositories/badger"
	"github.com/alicesotero/CoLab/internal/infrastructure/repositories/memory"
	redisrepo "github.com/alicesotero/CoLab/internal/infrastructure/repositories/redis"
	"github.com/alicesotero/CoLab/pkg/config"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the user and message stores for the configured backend.
type Factory struct {
	backend     string
	retention   int
	redisClient *redis.Client
	badgerDB    *badgerdb.DB
	msgRepo     ports.MessageRepository
	logger      *zap.SugaredLogger
}

// NewFactory connects to the configured backend. Redis connection failures
// fall back to memory so a broken cache never keeps the broker down.
func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) (*Factory, error) {
	f := &Factory{
		backend:   cfg.Storage.Backend,
		retention: cfg.Rooms.HistoryWindow,
		logger:    logger,
	}

	switch cfg.Storage.Backend {
	case "redis":
		client, err := redisrepo.NewRedisClient(
			cfg.Storage.Redis.Address,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			cfg.Storage.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			f.backend = "memory"
		} else {
			f.redisClient = client
		}

	case "badger":
		db, err := badgerrepo.Open(cfg.Storage.Badger.Path, logger)
		if err != nil {
			return nil, err
		}
		f.badgerDB = db

	case "memory":

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	logger.Infow("using storage backend", "backend", f.backend)
	return f, nil
}

// CreateUserRepository builds the permission store adapter.
func (f *Factory) CreateUserRepository() ports.UserRepository {
	switch {
	case f.redisClient != nil:
		return redisrepo.NewRedisUserRepository(f.redisClient)
	case f.badgerDB != nil:
		return badgerrepo.NewBadgerUserRepository(f.badgerDB)
	default:
		return memory.NewMemoryUserRepository()
	}
}

// CreateMessageRepository builds the history adapter.
func (f *Factory) CreateMessageRepository() (ports.MessageRepository, error) {
	if f.msgRepo != nil {
		return f.msgRepo, nil
	}

	switch {
	case f.redisClient != nil:
		f.msgRepo = redisrepo.NewRedisMessageRepository(f.redisClient, f.retention)
	case f.badgerDB != nil:
		repo, err := badgerrepo.NewBadgerMessageRepository(f.badgerDB)
		if err != nil {
			return nil, err
		}
		f.msgRepo = repo
	default:
		f.msgRepo = memory.NewMemoryMessageRepository()
	}
	return f.msgRepo, nil
}

// HealthCheck pings the backing store.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

// Close releases backend resources.
func (f *Factory) Close() error {
	if closer, ok := f.msgRepo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	if f.badgerDB != nil {
		return f.badgerDB.Close()
	}
	return nil
}
