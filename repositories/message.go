//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatroom/domain"
	chaterrors "chatroom/errors"
)

type IMessageRepository interface {
	Append(msg domain.Message) error
	AppendAll(msgs []domain.Message) error
	VisibleTo(viewer string, limit *int) ([]domain.Message, error)
	Get(id uuid.UUID) (domain.Message, error)
	Update(msg domain.Message) error
	Delete(id uuid.UUID) error
}

// MessageRepository is the durable chat log. Messages outlive their author's
// directory entry: the log is a historical record, the directory a liveness
// snapshot.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// Append persists a message. The chronological record and the id index
// entry are written in the same transaction.
func (r MessageRepository) Append(msg domain.Message) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return setMessage(txn, msg)
	})
}

// AppendAll inserts the whole batch in one transaction, so the presence
// sweep either announces every departure of a tick or none of them.
func (r MessageRepository) AppendAll(msgs []domain.Message) error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, msg := range msgs {
			if err := setMessage(txn, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// VisibleTo returns the messages the viewer may see, oldest first.
// With a limit it keeps only the most recent visible entries: the scan walks
// the chronological keys backwards (the padded timestamp in the key makes
// reverse iteration newest-first) and stops once limit messages are
// collected, so the result is always a suffix of the unlimited one.
func (r MessageRepository) VisibleTo(viewer string, limit *int) ([]domain.Message, error) {
	var collected []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		// Seek past the newest possible timestamp; digits sort below the
		// following ':' so this lands on the last message entry.
		it.Seek(append(prefix, []byte("9999999999999999999")...))

		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit != nil && len(collected) == *limit {
				break
			}
			var msg domain.Message
			err := it.Item().Value(func(value []byte) error {
				decoded, err := decodeMessage(value)
				if err != nil {
					return err
				}
				msg = decoded
				return nil
			})
			if err != nil {
				return err
			}
			if msg.VisibleTo(viewer) {
				collected = append(collected, msg)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Reverse(collected), nil
}

func (r MessageRepository) Get(id uuid.UUID) (domain.Message, error) {
	var msg domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		primary, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(primary)
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			decoded, err := decodeMessage(value)
			if err != nil {
				return err
			}
			msg = decoded
			return nil
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Update rewrites an existing message. The record moves to a new
// chronological key when the timestamp was restamped, so the old primary
// entry is deleted and the id index repointed, all in one transaction.
// A conflicting concurrent write triggers one retry against the new state.
func (r MessageRepository) Update(msg domain.Message) error {
	return updateRetryingConflict(r.db, func(txn *badger.Txn) error {
		primary, err := resolveMessageKey(txn, msg.ID)
		if err != nil {
			return err
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return setMessage(txn, msg)
	})
}

// Delete removes the message permanently, index entry included.
func (r MessageRepository) Delete(id uuid.UUID) error {
	return updateRetryingConflict(r.db, func(txn *badger.Txn) error {
		primary, err := resolveMessageKey(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(messageIDKey(id))
	})
}

// resolveMessageKey maps a message id to its chronological primary key.
func resolveMessageKey(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(messageIDKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, chaterrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
