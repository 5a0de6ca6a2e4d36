package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chatroom/domain"
	chaterrors "chatroom/errors"
	"chatroom/mocks"
	"chatroom/moderation"
)

type serviceFixture struct {
	service      *ChatService
	participants *mocks.MockIParticipantRepository
	messages     *mocks.MockIMessageRepository
	index        *mocks.MockIMessageIndex
	now          time.Time
}

func newFixture(t *testing.T) serviceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	moderator, err := moderation.NewModerator([]string{"idiota"}, '*')
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 15, 4, 5, 0, time.UTC)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(now).AnyTimes()

	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	index := mocks.NewMockIMessageIndex(ctrl)

	service := NewChatService(participants, messages, index, &moderator, clock, 20, slog.Default())
	return serviceFixture{
		service:      service,
		participants: participants,
		messages:     messages,
		index:        index,
		now:          now,
	}
}

func TestChatService_Register(t *testing.T) {
	t.Run("should register with the server clock", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		expected := domain.Participant{Name: "Alice", LastSeen: f.now}
		f.participants.EXPECT().Register("Alice", f.now).Return(expected, nil).Times(1)

		participant, err := f.service.Register("Alice")
		req.NoError(err)
		req.Equal(expected, participant)
	})

	t.Run("should reject names shorter than three characters", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		// The repository must never be reached.
		f.participants.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.service.Register("Al")
		req.ErrorIs(err, chaterrors.ErrInvalidInput)

		_, err = f.service.Register("")
		req.ErrorIs(err, chaterrors.ErrInvalidInput)
	})

	t.Run("should reject the reserved broadcast name", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		// The repository must never be reached.
		f.participants.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.service.Register(domain.Broadcast)
		req.ErrorIs(err, chaterrors.ErrInvalidInput)
	})

	t.Run("should surface a duplicate name conflict", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.participants.EXPECT().Register("Alice", f.now).
			Return(domain.Participant{}, chaterrors.ErrNameTaken).Times(1)

		_, err := f.service.Register("Alice")
		req.ErrorIs(err, chaterrors.ErrNameTaken)
	})
}

func TestChatService_PostMessage(t *testing.T) {
	cmd := MessageCommand{From: "Alice", To: domain.Broadcast, Text: "bom dia", Type: "message"}

	t.Run("should stamp, store and index a public message", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.participants.EXPECT().Exists("Alice").Return(true, nil).Times(1)

		var stored domain.Message
		f.messages.EXPECT().Append(gomock.Any()).
			DoAndReturn(func(msg domain.Message) error {
				stored = msg
				return nil
			}).Times(1)
		f.index.EXPECT().Index(gomock.Any()).Return(nil).Times(1)

		msg, err := f.service.PostMessage(cmd)
		req.NoError(err)
		req.Equal(stored, msg)
		req.Equal("Alice", msg.From)
		req.Equal(f.now, msg.At)
		req.NotEqual(uuid.Nil, msg.ID)
	})

	t.Run("should censor forbidden words before storing", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.participants.EXPECT().Exists("Alice").Return(true, nil).Times(1)
		f.messages.EXPECT().Append(gomock.Any()).
			DoAndReturn(func(msg domain.Message) error {
				req.Equal("seu ******", msg.Text)
				return nil
			}).Times(1)
		f.index.EXPECT().Index(gomock.Any()).Return(nil).Times(1)

		rude := cmd
		rude.Text = "seu idiota"
		_, err := f.service.PostMessage(rude)
		req.NoError(err)
	})

	t.Run("should keep private messages out of the search index", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.participants.EXPECT().Exists("Alice").Return(true, nil).Times(1)
		f.messages.EXPECT().Append(gomock.Any()).Return(nil).Times(1)
		f.index.EXPECT().Index(gomock.Any()).Times(0)
		f.index.EXPECT().Remove(gomock.Any()).Return(nil).Times(1)

		private := cmd
		private.To = "Bob"
		private.Type = "private_message"
		_, err := f.service.PostMessage(private)
		req.NoError(err)
	})

	t.Run("should refuse an author that is not a live participant", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.participants.EXPECT().Exists("Alice").Return(false, nil).Times(1)
		f.messages.EXPECT().Append(gomock.Any()).Times(0)

		_, err := f.service.PostMessage(cmd)
		req.ErrorIs(err, chaterrors.ErrNotParticipant)
	})

	t.Run("should refuse a client-submitted status type", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		status := cmd
		status.Type = "status"
		_, err := f.service.PostMessage(status)
		req.ErrorIs(err, chaterrors.ErrInvalidInput)
	})

	t.Run("should refuse missing fields", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		empty := cmd
		empty.Text = ""
		_, err := f.service.PostMessage(empty)
		req.ErrorIs(err, chaterrors.ErrInvalidInput)

		anonymous := cmd
		anonymous.From = ""
		_, err = f.service.PostMessage(anonymous)
		req.ErrorIs(err, chaterrors.ErrInvalidInput)
	})
}

func TestChatService_GetMessages(t *testing.T) {
	t.Run("should reject a non-positive limit", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		_, err := f.service.GetMessages("Alice", lo.ToPtr(0))
		req.ErrorIs(err, chaterrors.ErrInvalidInput)

		_, err = f.service.GetMessages("Alice", lo.ToPtr(-3))
		req.ErrorIs(err, chaterrors.ErrInvalidInput)
	})

	t.Run("should pass viewer and limit through", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		expected := []domain.Message{{ID: uuid.New(), From: "Bob"}}
		f.messages.EXPECT().VisibleTo("Alice", lo.ToPtr(5)).Return(expected, nil).Times(1)

		msgs, err := f.service.GetMessages("Alice", lo.ToPtr(5))
		req.NoError(err)
		req.Equal(expected, msgs)
	})
}

func TestChatService_EditMessage(t *testing.T) {
	id := uuid.New()
	stored := domain.Message{
		ID:   id,
		From: "Alice",
		To:   domain.Broadcast,
		Text: "original",
		Type: domain.TypeMessage,
		At:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	cmd := MessageCommand{From: "Alice", To: domain.Broadcast, Text: "edited", Type: "message"}

	t.Run("should rewrite and restamp an owned message", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().Get(id).Return(stored, nil).Times(1)
		f.participants.EXPECT().Exists("Alice").Return(true, nil).Times(1)
		f.messages.EXPECT().Update(gomock.Any()).
			DoAndReturn(func(msg domain.Message) error {
				req.Equal(id, msg.ID)
				req.Equal("edited", msg.Text)
				req.Equal(f.now, msg.At)
				return nil
			}).Times(1)
		f.index.EXPECT().Index(gomock.Any()).Return(nil).Times(1)

		updated, err := f.service.EditMessage(id, cmd)
		req.NoError(err)
		req.Equal("edited", updated.Text)
	})

	t.Run("should return not found for an unknown id", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().Get(id).Return(domain.Message{}, chaterrors.ErrNotFound).Times(1)

		_, err := f.service.EditMessage(id, cmd)
		req.ErrorIs(err, chaterrors.ErrNotFound)
	})

	t.Run("should refuse an editor that is not the author", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().Get(id).Return(stored, nil).Times(1)
		f.messages.EXPECT().Update(gomock.Any()).Times(0)

		intruder := cmd
		intruder.From = "Mallory"
		_, err := f.service.EditMessage(id, intruder)
		req.ErrorIs(err, chaterrors.ErrNotOwner)
	})

	t.Run("should refuse an author that has been evicted", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().Get(id).Return(stored, nil).Times(1)
		f.participants.EXPECT().Exists("Alice").Return(false, nil).Times(1)
		f.messages.EXPECT().Update(gomock.Any()).Times(0)

		_, err := f.service.EditMessage(id, cmd)
		req.ErrorIs(err, chaterrors.ErrNotParticipant)
	})
}

func TestChatService_DeleteMessage(t *testing.T) {
	id := uuid.New()
	stored := domain.Message{ID: id, From: "Alice", Type: domain.TypeMessage}

	t.Run("should delete an owned message and its index entry", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().Get(id).Return(stored, nil).Times(1)
		f.messages.EXPECT().Delete(id).Return(nil).Times(1)
		f.index.EXPECT().Remove(id).Return(nil).Times(1)

		req.NoError(f.service.DeleteMessage(id, "Alice"))
	})

	t.Run("should refuse any requester but the author", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().Get(id).Return(stored, nil).Times(1)
		f.messages.EXPECT().Delete(gomock.Any()).Times(0)

		req.ErrorIs(f.service.DeleteMessage(id, "Bob"), chaterrors.ErrNotOwner)
	})

	t.Run("should return not found for an unknown id", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().Get(id).Return(domain.Message{}, chaterrors.ErrNotFound).Times(1)

		req.ErrorIs(f.service.DeleteMessage(id, "Alice"), chaterrors.ErrNotFound)
	})
}

func TestChatService_SearchMessages(t *testing.T) {
	t.Run("should reject blank terms", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		_, err := f.service.SearchMessages(context.Background(), "   ")
		req.ErrorIs(err, chaterrors.ErrInvalidInput)
	})

	t.Run("should resolve hits through the log and drop stale ones", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		alive := domain.Message{ID: uuid.New(), From: "Alice", Type: domain.TypeMessage, Text: "invoice"}
		deleted := uuid.New()

		f.index.EXPECT().Search(gomock.Any(), "invoice", 20).
			Return([]uuid.UUID{alive.ID, deleted}, nil).Times(1)
		f.messages.EXPECT().Get(alive.ID).Return(alive, nil).Times(1)
		f.messages.EXPECT().Get(deleted).Return(domain.Message{}, chaterrors.ErrNotFound).Times(1)

		results, err := f.service.SearchMessages(context.Background(), "invoice")
		req.NoError(err)
		req.Equal([]domain.Message{alive}, results)
	})
}
