package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"

	badgerdb "github.com/dgraph-io/badger/v4"
)

const userKeyPrefix = "user:"

type BadgerUserRepository struct {
	db *badgerdb.DB
}

func NewBadgerUserRepository(db *badgerdb.DB) ports.UserRepository {
	return &BadgerUserRepository{db: db}
}

func userKey(username string) []byte {
	return []byte(userKeyPrefix + username)
}

func (r *BadgerUserRepository) Create(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	return r.db.Update(func(txn *badgerdb.Txn) error {
		key := userKey(user.Username)
		if _, err := txn.Get(key); err == nil {
			return domain.ErrUserExists
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

func (r *BadgerUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User

	err := r.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(userKey(username))
		if err == badgerdb.ErrKeyNotFound {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *BadgerUserRepository) Update(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	return r.db.Update(func(txn *badgerdb.Txn) error {
		key := userKey(user.Username)
		if _, err := txn.Get(key); err == badgerdb.ErrKeyNotFound {
			return domain.ErrUserNotFound
		} else if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (r *BadgerUserRepository) Delete(ctx context.Context, username string) error {
	return r.db.Update(func(txn *badgerdb.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err == badgerdb.ErrKeyNotFound {
			return domain.ErrUserNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// AddPendingRequest runs the read and write inside one transaction, so
// concurrent requests and grants serialize on commit.
func (r *BadgerUserRepository) AddPendingRequest(ctx context.Context, username string, room domain.RoomName) error {
	return r.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(userKey(username))
		if err == badgerdb.ErrKeyNotFound {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		var user domain.User
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
		if err != nil {
			return err
		}
		if domain.ContainsRoom(user.AllowedRooms, room) || domain.ContainsRoom(user.PendingRequests, room) {
			return nil
		}
		user.PendingRequests = append(user.PendingRequests, room)

		data, err := json.Marshal(&user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		return txn.Set(userKey(username), data)
	})
}

func (r *BadgerUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User

	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(userKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var user domain.User
				if err := json.Unmarshal(val, &user); err != nil {
					return err
				}
				users = append(users, &user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return strings.Compare(users[i].Username, users[j].Username) < 0
	})
	return users, nil
}
