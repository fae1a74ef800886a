package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/ports"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// BadgerMessageRepository stores messages under "msg:<room>:<seq>" with a
// monotonically increasing sequence, so a prefix scan yields them in
// creation order.
type BadgerMessageRepository struct {
	db  *badgerdb.DB
	seq *badgerdb.Sequence
}

func NewBadgerMessageRepository(db *badgerdb.DB) (*BadgerMessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:messages"), 128)
	if err != nil {
		return nil, fmt.Errorf("failed to open message sequence: %w", err)
	}
	return &BadgerMessageRepository{db: db, seq: seq}, nil
}

var _ ports.MessageRepository = (*BadgerMessageRepository)(nil)

func messageKey(room domain.RoomName, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", room, seq))
}

func messagePrefix(room domain.RoomName) []byte {
	return []byte(fmt.Sprintf("msg:%s:", room))
}

func (r *BadgerMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	seq, err := r.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to advance message sequence: %w", err)
	}

	return r.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(messageKey(msg.Room, seq), data)
	})
}

func (r *BadgerMessageRepository) RecentByRoom(ctx context.Context, room domain.RoomName, limit int) ([]*domain.Message, error) {
	var newestFirst []*domain.Message
	prefix := messagePrefix(room)

	err := r.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks past the last key of the prefix range.
		seek := append(append([]byte(nil), prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(newestFirst) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				newestFirst = append(newestFirst, &msg)
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

	// Replay order is oldest first.
	out := make([]*domain.Message, len(newestFirst))
	for i, msg := range newestFirst {
		out[len(newestFirst)-1-i] = msg
	}
	return out, nil
}

// Close releases the unused tail of the sequence.
func (r *BadgerMessageRepository) Close() error {
	return r.seq.Release()
}
