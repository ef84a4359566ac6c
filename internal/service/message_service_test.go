package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"school-portal-be/internal/dto"
	"school-portal-be/internal/model"
	"school-portal-be/internal/pkg/apperror"
	"school-portal-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	env    *testEnv
	chatId uuid.UUID
	admin  uuid.UUID
	member uuid.UUID
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	env := newTestEnv(t)
	admin := env.directory.addUser("Ms. Admin", "teacher")
	member := env.directory.addUser("Member", "student")

	chat, err := env.chats.CreateChat(context.Background(), env.principal(admin), &dto.CreateChatRequest{
		Type:           "group",
		Name:           strPtr("Homework"),
		ParticipantIds: []uuid.UUID{member},
	})
	require.NoError(t, err)
	env.publisher.reset()

	return &chatFixture{env: env, chatId: chat.Id, admin: admin, member: member}
}

func (f *chatFixture) send(t *testing.T, sender uuid.UUID, content string, parent *uuid.UUID) *dto.MessageResponse {
	t.Helper()
	res, err := f.env.messages.SendMessage(context.Background(), f.env.principal(sender), &dto.SendMessageRequest{
		ChatId:          f.chatId,
		Content:         content,
		ParentMessageId: parent,
	})
	require.NoError(t, err)
	return res
}

func contents(messages []*dto.MessageResponse) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func TestSendMessage(t *testing.T) {
	f := newChatFixture(t)

	res := f.send(t, f.member, "  hello  ", nil)
	assert.Equal(t, "hello", res.Content)
	assert.Equal(t, f.member, res.Sender.Id)
	assert.Equal(t, "Member", res.Sender.FullName)
	assert.NotEqual(t, uuid.Nil, res.Id)

	sent := f.env.publisher.ofType(events.MessageSent)
	require.Len(t, sent, 1)
	assert.Equal(t, f.chatId, sent[0].ChatId)

	var participant model.ChatParticipant
	require.NoError(t, f.env.db.Where("chat_id = ? AND user_id = ?", f.chatId, f.member).First(&participant).Error)
	assert.NotNil(t, participant.LastSeen, "sending marks the chat as seen")
}

func TestSendMessageByNonParticipantIsForbidden(t *testing.T) {
	f := newChatFixture(t)
	outsider := f.env.directory.addUser("Z", "student")

	_, err := f.env.messages.SendMessage(context.Background(), f.env.principal(outsider), &dto.SendMessageRequest{
		ChatId:  f.chatId,
		Content: "let me in",
	})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, int64(0), f.env.countRows(t, &model.Message{}, "chat_id = ?", f.chatId))
	assert.Empty(t, f.env.publisher.ofType(events.MessageSent))
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	f := newChatFixture(t)
	_, err := f.env.messages.SendMessage(context.Background(), f.env.principal(f.member), &dto.SendMessageRequest{
		ChatId:  f.chatId,
		Content: "   ",
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
}

func TestReplyToMessageInOtherChatIsRejected(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	other, err := f.env.chats.GetOrCreatePrivateChat(ctx, f.env.principal(f.member), f.admin)
	require.NoError(t, err)
	foreign, err := f.env.messages.SendMessage(ctx, f.env.principal(f.member), &dto.SendMessageRequest{
		ChatId:  other.Id,
		Content: "elsewhere",
	})
	require.NoError(t, err)

	_, err = f.env.messages.SendMessage(ctx, f.env.principal(f.member), &dto.SendMessageRequest{
		ChatId:          f.chatId,
		Content:         "reply",
		ParentMessageId: &foreign.Id,
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)

	missing := uuid.New()
	_, err = f.env.messages.SendMessage(ctx, f.env.principal(f.member), &dto.SendMessageRequest{
		ChatId:          f.chatId,
		Content:         "reply",
		ParentMessageId: &missing,
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
}

func TestListMessagesKeepsSendOrder(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.send(t, f.admin, "m1", nil)
	f.send(t, f.member, "m2", nil)
	f.send(t, f.admin, "m3", nil)

	asc, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, contents(asc))

	recent, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{
		ChatId: f.chatId,
		Order:  "desc",
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2"}, contents(recent))

	before := asc[2].CreatedAt
	older, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{
		ChatId: f.chatId,
		Before: &before,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, contents(older))

	outsider := f.env.directory.addUser("Z", "student")
	_, err = f.env.messages.ListMessages(ctx, f.env.principal(outsider), &dto.ListMessagesRequest{ChatId: f.chatId})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestListMessagesThreads(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	root := f.send(t, f.admin, "question", nil)
	reply := f.send(t, f.member, "answer", &root.Id)
	f.send(t, f.admin, "follow-up", &reply.Id)
	f.send(t, f.member, "unrelated", nil)

	flat, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId})
	require.NoError(t, err)
	assert.Equal(t, []string{"question", "answer", "follow-up", "unrelated"}, contents(flat))

	oneLevel, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId, Depth: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"question", "unrelated"}, contents(oneLevel))
	require.Len(t, oneLevel[0].Replies, 1)
	assert.Equal(t, "answer", oneLevel[0].Replies[0].Content)
	assert.Empty(t, oneLevel[0].Replies[0].Replies)

	full, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId, Depth: -1})
	require.NoError(t, err)
	require.Len(t, full[0].Replies, 1)
	require.Len(t, full[0].Replies[0].Replies, 1)
	assert.Equal(t, "follow-up", full[0].Replies[0].Replies[0].Content)
}

func TestSendMessageWithClientKeyIsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	req := &dto.SendMessageRequest{ChatId: f.chatId, Content: "once", ClientMessageId: "client-1"}

	first, err := f.env.messages.SendMessage(ctx, f.env.principal(f.member), req)
	require.NoError(t, err)
	retry, err := f.env.messages.SendMessage(ctx, f.env.principal(f.member), req)
	require.NoError(t, err)

	assert.Equal(t, first.Id, retry.Id)
	assert.Equal(t, int64(1), f.env.countRows(t, &model.Message{}, "chat_id = ?", f.chatId))
	assert.Len(t, f.env.publisher.ofType(events.MessageSent), 1)

	// The key is scoped to the sender.
	_, err = f.env.messages.SendMessage(ctx, f.env.principal(f.admin), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.env.countRows(t, &model.Message{}, "chat_id = ?", f.chatId))
}

func TestMarkRead(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	res, err := f.env.messages.MarkRead(ctx, f.env.principal(f.member), f.chatId)
	require.NoError(t, err)
	assert.Equal(t, f.chatId, res.ChatId)

	var participant model.ChatParticipant
	require.NoError(t, f.env.db.Where("chat_id = ? AND user_id = ?", f.chatId, f.member).First(&participant).Error)
	require.NotNil(t, participant.LastSeen)

	_, err = f.env.messages.MarkRead(ctx, f.env.principal(uuid.New()), f.chatId)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestDeleteMessage(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	third := f.env.directory.addUser("Third", "student")
	_, err := f.env.chats.AddParticipants(ctx, f.env.principal(f.admin), &dto.AddParticipantsRequest{
		ChatId: f.chatId, UserIds: []uuid.UUID{third},
	})
	require.NoError(t, err)

	parent := f.send(t, f.member, "parent", nil)
	f.send(t, f.admin, "child", &parent.Id)
	own := f.send(t, f.member, "mine", nil)

	err = f.env.messages.DeleteMessage(ctx, f.env.principal(third), parent.Id)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, f.env.messages.DeleteMessage(ctx, f.env.principal(f.member), own.Id))
	require.NoError(t, f.env.messages.DeleteMessage(ctx, f.env.principal(f.admin), parent.Id))

	err = f.env.messages.DeleteMessage(ctx, f.env.principal(f.admin), parent.Id)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	remaining, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId})
	require.NoError(t, err)
	assert.Equal(t, []string{"child"}, contents(remaining))
	require.NotNil(t, remaining[0].ParentMessageId)
	assert.Equal(t, parent.Id, *remaining[0].ParentMessageId)

	// With its parent gone the reply is a thread root of its own.
	threaded, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId, Depth: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"child"}, contents(threaded))
}

func TestOrphanedReplyKeepsItsOwnReplies(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	parent := f.send(t, f.member, "parent", nil)
	child := f.send(t, f.admin, "child", &parent.Id)
	f.send(t, f.member, "grandchild", &child.Id)
	require.NoError(t, f.env.messages.DeleteMessage(ctx, f.env.principal(f.member), parent.Id))

	threaded, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId, Depth: -1})
	require.NoError(t, err)
	require.Equal(t, []string{"child"}, contents(threaded))
	require.Len(t, threaded[0].Replies, 1)
	assert.Equal(t, "grandchild", threaded[0].Replies[0].Content)
}

func TestConcurrentSendsListInStoredOrder(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	const senders = 10
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			sender := f.member
			if i%2 == 1 {
				sender = f.admin
			}
			_, errs[i] = f.env.messages.SendMessage(ctx, f.env.principal(sender), &dto.SendMessageRequest{
				ChatId:  f.chatId,
				Content: fmt.Sprintf("m%d", i),
			})
		}(i)
	}
	close(start)
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	listed, err := f.env.messages.ListMessages(ctx, f.env.principal(f.member), &dto.ListMessagesRequest{ChatId: f.chatId})
	require.NoError(t, err)
	require.Len(t, listed, senders)

	// rowid follows the order in which inserts were committed.
	var stored []uuid.UUID
	require.NoError(t, f.env.db.Model(&model.Message{}).
		Where("chat_id = ?", f.chatId).
		Order("rowid").
		Pluck("id", &stored).Error)

	got := make([]uuid.UUID, 0, len(listed))
	for i, m := range listed {
		got = append(got, m.Id)
		if i > 0 {
			assert.False(t, m.CreatedAt.Before(listed[i-1].CreatedAt))
		}
	}
	assert.Equal(t, stored, got)
}

func TestConcurrentRetriesWithClientKeyCreateOneMessage(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	const retries = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]*dto.MessageResponse, retries)
	errs := make([]error, retries)
	for i := 0; i < retries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.env.messages.SendMessage(ctx, f.env.principal(f.member), &dto.SendMessageRequest{
				ChatId:          f.chatId,
				Content:         "once",
				ClientMessageId: "client-race",
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var id uuid.UUID
	for i := 0; i < retries; i++ {
		if errs[i] != nil {
			// A retry that overlaps the first send is told to try again.
			assert.ErrorIs(t, errs[i], apperror.ErrConflict)
			continue
		}
		if id == uuid.Nil {
			id = results[i].Id
		}
		assert.Equal(t, id, results[i].Id)
	}
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, int64(1), f.env.countRows(t, &model.Message{}, "chat_id = ?", f.chatId))
	assert.Len(t, f.env.publisher.ofType(events.MessageSent), 1)
}

func TestFailedSendReleasesClientKey(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := f.env.messages.SendMessage(ctx, f.env.principal(f.member), &dto.SendMessageRequest{
		ChatId:          f.chatId,
		Content:         "reply",
		ParentMessageId: &missing,
		ClientMessageId: "client-2",
	})
	require.ErrorIs(t, err, apperror.ErrInvalidArgument)

	res, err := f.env.messages.SendMessage(ctx, f.env.principal(f.member), &dto.SendMessageRequest{
		ChatId:          f.chatId,
		Content:         "fixed",
		ClientMessageId: "client-2",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.Content)
}
