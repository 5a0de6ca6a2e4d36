package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"chatroom/domain"
)

const (
	participantPrefix = "participant:"
	messagePrefix     = "msg:"
	messageIDPrefix   = "msgid:"
)

func participantKey(name string) []byte {
	return []byte(participantPrefix + name)
}

// messageKey orders messages chronologically: the 19-digit zero padded
// UnixNano sorts lexicographically, and the UUID breaks ties between two
// messages stamped in the same nanosecond.
func messageKey(at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messagePrefix, at.UnixNano(), id))
}

func messageIDKey(id uuid.UUID) []byte {
	return []byte(messageIDPrefix + id.String())
}

type diskParticipant struct {
	Name     string `cbor:"name"`
	LastSeen int64  `cbor:"lastSeen"`
}

type diskMessage struct {
	ID   string `cbor:"id"`
	From string `cbor:"from"`
	To   string `cbor:"to"`
	Text string `cbor:"text"`
	Type string `cbor:"type"`
	At   int64  `cbor:"at"`
}

func encodeParticipant(p domain.Participant) ([]byte, error) {
	return cbor.Marshal(diskParticipant{Name: p.Name, LastSeen: p.LastSeen.UnixNano()})
}

func decodeParticipant(data []byte) (domain.Participant, error) {
	var dp diskParticipant
	if err := cbor.Unmarshal(data, &dp); err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant{Name: dp.Name, LastSeen: time.Unix(0, dp.LastSeen).UTC()}, nil
}

func encodeMessage(m domain.Message) ([]byte, error) {
	return cbor.Marshal(diskMessage{
		ID:   m.ID.String(),
		From: m.From,
		To:   m.To,
		Text: m.Text,
		Type: string(m.Type),
		At:   m.At.UnixNano(),
	})
}

func decodeMessage(data []byte) (domain.Message, error) {
	var dm diskMessage
	if err := cbor.Unmarshal(data, &dm); err != nil {
		return domain.Message{}, err
	}
	id, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:   id,
		From: dm.From,
		To:   dm.To,
		Text: dm.Text,
		Type: domain.MessageType(dm.Type),
		At:   time.Unix(0, dm.At).UTC(),
	}, nil
}

// updateRetryingConflict runs the transaction again after a write conflict.
// A heartbeat or edit can race the presence sweep on the same keys; the
// retry then reads the post-sweep state and reports the participant or
// message as gone instead of surfacing a raw conflict.
func updateRetryingConflict(db *badger.DB, fn func(txn *badger.Txn) error) error {
	err := db.Update(fn)
	if errors.Is(err, badger.ErrConflict) {
		return db.Update(fn)
	}
	return err
}

// setMessage writes both the chronological record and the id index entry
// inside the caller's transaction.
func setMessage(txn *badger.Txn, msg domain.Message) error {
	data, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	primary := messageKey(msg.At, msg.ID)
	if err := txn.Set(primary, data); err != nil {
		return err
	}
	return txn.Set(messageIDKey(msg.ID), primary)
}
