//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chatroom/domain"
	chaterrors "chatroom/errors"
)

type IParticipantRepository interface {
	Register(name string, now time.Time) (domain.Participant, error)
	Heartbeat(name string, now time.Time) error
	List() ([]domain.Participant, error)
	Exists(name string) (bool, error)
	ListExpired(deadline time.Time) ([]domain.Participant, error)
	RemoveAll(names []string) error
}

// ParticipantRepository is the directory of currently-present users.
// Unlike the message log it is ephemeral: entries disappear when the
// presence sweep evicts them, and nothing else ever deletes them.
type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) ParticipantRepository {
	return ParticipantRepository{db: db, log: log}
}

// Register inserts the participant and its "entered the room" status message
// in a single transaction. The existence check and both writes commit
// atomically, so two racing registrations of the same name produce exactly
// one directory entry and one join announcement; the loser gets ErrNameTaken.
func (r ParticipantRepository) Register(name string, now time.Time) (domain.Participant, error) {
	participant := domain.Participant{Name: name, LastSeen: now}
	join := domain.NewJoinStatus(name, now)

	err := r.db.Update(func(txn *badger.Txn) error {
		key := participantKey(name)
		_, err := txn.Get(key)
		if err == nil {
			return chaterrors.ErrNameTaken
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := encodeParticipant(participant)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return setMessage(txn, join)
	})
	// A write conflict means another registration of the same name committed
	// first. The uniqueness constraint is the serialization point.
	if errors.Is(err, badger.ErrConflict) {
		err = chaterrors.ErrNameTaken
	}
	if err != nil {
		return domain.Participant{}, err
	}
	r.log.Debug("Participant registered", "name", name)
	return participant, nil
}

// Heartbeat refreshes LastSeen for an existing participant. A heartbeat
// racing the sweep's eviction retries and lands on ErrNotFound.
func (r ParticipantRepository) Heartbeat(name string, now time.Time) error {
	return updateRetryingConflict(r.db, func(txn *badger.Txn) error {
		key := participantKey(name)
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return chaterrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err := encodeParticipant(domain.Participant{Name: name, LastSeen: now})
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// List returns a snapshot of all current participants, in no particular order.
func (r ParticipantRepository) List() ([]domain.Participant, error) {
	var participants []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(participantPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				p, err := decodeParticipant(value)
				if err != nil {
					return err
				}
				participants = append(participants, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return participants, err
}

func (r ParticipantRepository) Exists(name string) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(participantKey(name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListExpired returns the participants whose LastSeen is at or before the deadline.
func (r ParticipantRepository) ListExpired(deadline time.Time) ([]domain.Participant, error) {
	participants, err := r.List()
	if err != nil {
		return nil, err
	}
	var expired []domain.Participant
	for _, p := range participants {
		if p.Expired(deadline) {
			expired = append(expired, p)
		}
	}
	return expired, nil
}

// RemoveAll deletes the named participants in one transaction.
// Missing names are ignored: a participant already evicted by a concurrent
// tick does not fail the whole batch.
func (r ParticipantRepository) RemoveAll(names []string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		for _, name := range names {
			if err := txn.Delete(participantKey(name)); err != nil {
				return err
			}
		}
		return nil
	})
}
