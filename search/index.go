//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_message_index.go -package=mocks
// Package search maintains a full-text index over public chat messages.
// Indexing is best-effort: the message log stays the source of truth and
// the index only maps search terms back to message ids.
package search

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"chatroom/domain"
)

type IMessageIndex interface {
	Index(msg domain.Message) error
	Remove(id uuid.UUID) error
	Search(ctx context.Context, terms string, limit int) ([]uuid.UUID, error)
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document for a message. The id doubles as the
// document identifier so edits overwrite the previous version.
func (i *MessageIndex) Index(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField("text", msg.Text)).
		AddField(bluge.NewKeywordField("from", msg.From)).
		AddField(bluge.NewDateTimeField("at", msg.At).Sortable())
	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Remove(id uuid.UUID) error {
	return i.writer.Delete(bluge.Identifier(id.String()))
}

// Search runs a match query over the message text and returns the ids of
// the best matches, newest first.
func (i *MessageIndex) Search(ctx context.Context, terms string, limit int) ([]uuid.UUID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewMatchQuery(terms).SetField("text")
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-at"})

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	match, err := iterator.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field != "_id" {
				return true
			}
			id, parseErr := uuid.Parse(string(value))
			if parseErr != nil {
				// A foreign document in the index is skipped, not fatal.
				i.log.Warn("Ignoring non-message document in index", "id", string(value))
				return true
			}
			ids = append(ids, id)
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}
