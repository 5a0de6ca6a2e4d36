package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chatroom/domain"
	chaterrors "chatroom/errors"
	"chatroom/moderation"
	"chatroom/repositories"
	"chatroom/search"
)

var validate = validator.New()

// RegisterCommand carries the input of a registration request.
type RegisterCommand struct {
	Name string `validate:"required,min=3"`
}

// MessageCommand carries a user-submitted message. From is always the
// authenticated header identity, never a body field, so clients cannot
// impersonate each other. The status type is absent from the oneof on
// purpose: status entries are server-constructed only.
type MessageCommand struct {
	From string `validate:"required"`
	To   string `validate:"required"`
	Text string `validate:"required"`
	Type string `validate:"required,oneof=message private_message"`
}

type IChatService interface {
	Register(name string) (domain.Participant, error)
	Heartbeat(name string) error
	ListParticipants() ([]domain.Participant, error)
	PostMessage(cmd MessageCommand) (domain.Message, error)
	GetMessages(viewer string, limit *int) ([]domain.Message, error)
	EditMessage(id uuid.UUID, cmd MessageCommand) (domain.Message, error)
	DeleteMessage(id uuid.UUID, requester string) error
	SearchMessages(ctx context.Context, terms string) ([]domain.Message, error)
}

// ChatService orchestrates the participant directory and the message log.
// It owns all validation and authorization decisions; the HTTP layer only
// translates its outcomes into status codes.
type ChatService struct {
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	index        search.IMessageIndex
	moderator    *moderation.Moderator
	clock        domain.Clock
	searchLimit  int
	log          *slog.Logger
}

func NewChatService(
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	index search.IMessageIndex,
	moderator *moderation.Moderator,
	clock domain.Clock,
	searchLimit int,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		participants: participants,
		messages:     messages,
		index:        index,
		moderator:    moderator,
		clock:        clock,
		searchLimit:  searchLimit,
		log:          log,
	}
}

// Register adds a participant and announces the join. Uniqueness is
// enforced by the repository transaction, not by a read-then-write here.
func (s *ChatService) Register(name string) (domain.Participant, error) {
	if err := validate.Struct(RegisterCommand{Name: name}); err != nil {
		return domain.Participant{}, invalidInput(err)
	}
	// The broadcast recipient is reserved: a participant under that name
	// could forge traffic that reads as addressed to the whole room.
	if name == domain.Broadcast {
		return domain.Participant{}, fmt.Errorf("%w: %s is a reserved name", chaterrors.ErrInvalidInput, domain.Broadcast)
	}
	return s.participants.Register(name, s.clock.Now())
}

func (s *ChatService) Heartbeat(name string) error {
	return s.participants.Heartbeat(name, s.clock.Now())
}

func (s *ChatService) ListParticipants() ([]domain.Participant, error) {
	return s.participants.List()
}

// PostMessage validates the command, requires the author to be a live
// participant, censors the text and stamps the server time.
func (s *ChatService) PostMessage(cmd MessageCommand) (domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, invalidInput(err)
	}
	if err := s.requireParticipant(cmd.From); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:   uuid.New(),
		From: cmd.From,
		To:   cmd.To,
		Text: s.moderate(cmd.Text),
		Type: domain.MessageType(cmd.Type),
		At:   s.clock.Now(),
	}
	if err := s.messages.Append(msg); err != nil {
		return domain.Message{}, err
	}
	s.indexPublic(msg)
	return msg, nil
}

// GetMessages returns the messages visible to the viewer, oldest first.
func (s *ChatService) GetMessages(viewer string, limit *int) ([]domain.Message, error) {
	if limit != nil && *limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be a positive integer", chaterrors.ErrInvalidInput)
	}
	return s.messages.VisibleTo(viewer, limit)
}

// EditMessage rewrites a stored message. Authorization anchors on the
// stored author: only the original author may edit, and only while still
// being a live participant. The server restamps the time.
func (s *ChatService) EditMessage(id uuid.UUID, cmd MessageCommand) (domain.Message, error) {
	stored, err := s.messages.Get(id)
	if err != nil {
		return domain.Message{}, err
	}
	if stored.From != cmd.From {
		return domain.Message{}, chaterrors.ErrNotOwner
	}
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, invalidInput(err)
	}
	if err := s.requireParticipant(cmd.From); err != nil {
		return domain.Message{}, err
	}

	updated := stored
	updated.To = cmd.To
	updated.Text = s.moderate(cmd.Text)
	updated.Type = domain.MessageType(cmd.Type)
	updated.At = s.clock.Now()

	if err := s.messages.Update(updated); err != nil {
		return domain.Message{}, err
	}
	s.indexPublic(updated)
	return updated, nil
}

// DeleteMessage removes a message permanently. Only the stored author may
// delete it.
func (s *ChatService) DeleteMessage(id uuid.UUID, requester string) error {
	stored, err := s.messages.Get(id)
	if err != nil {
		return err
	}
	if stored.From != requester {
		return chaterrors.ErrNotOwner
	}
	if err := s.messages.Delete(id); err != nil {
		return err
	}
	if err := s.index.Remove(id); err != nil {
		s.log.Warn("Removing message from index failed", "id", id, "err", err)
	}
	return nil
}

// SearchMessages resolves index hits back through the log, so deleted or
// since-privatized messages never leak out of a stale index.
func (s *ChatService) SearchMessages(ctx context.Context, terms string) ([]domain.Message, error) {
	if strings.TrimSpace(terms) == "" {
		return nil, fmt.Errorf("%w: empty search terms", chaterrors.ErrInvalidInput)
	}
	ids, err := s.index.Search(ctx, terms, s.searchLimit)
	if err != nil {
		return nil, err
	}

	var results []domain.Message
	for _, id := range ids {
		msg, err := s.messages.Get(id)
		if errors.Is(err, chaterrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if msg.Type != domain.TypeMessage {
			continue
		}
		results = append(results, msg)
	}
	return results, nil
}

func (s *ChatService) requireParticipant(name string) error {
	live, err := s.participants.Exists(name)
	if err != nil {
		return err
	}
	if !live {
		return fmt.Errorf("%w: %s", chaterrors.ErrNotParticipant, name)
	}
	return nil
}

func (s *ChatService) moderate(text string) string {
	info := whatlanggo.Detect(text)
	s.log.Debug("Moderating message", "lang", info.Lang.Iso6391())
	return s.moderator.Censor(text)
}

// indexPublic keeps the search index aligned with the message's current
// type: public messages are (re)indexed, anything else is dropped from the
// index. Index failures are logged, never surfaced, because the log is the
// source of truth.
func (s *ChatService) indexPublic(msg domain.Message) {
	if msg.Type != domain.TypeMessage {
		if err := s.index.Remove(msg.ID); err != nil {
			s.log.Warn("Removing message from index failed", "id", msg.ID, "err", err)
		}
		return
	}
	if err := s.index.Index(msg); err != nil {
		s.log.Warn("Message indexing failed", "id", msg.ID, "err", err)
	}
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", chaterrors.ErrInvalidInput, err)
}
