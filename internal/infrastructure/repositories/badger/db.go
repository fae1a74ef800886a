package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Open opens (or creates) the embedded Badger store at path.
func Open(path string, logger *zap.SugaredLogger) (*badgerdb.DB, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}

	if logger != nil {
		logger.Infow("opened badger store", "path", path)
	}
	return db, nil
}
