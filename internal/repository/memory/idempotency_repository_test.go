package memory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyRepositoryScopesKeysBySenderAndChat(t *testing.T) {
	repo := NewIdempotencyRepository(time.Minute)
	chatId, sender, other := uuid.New(), uuid.New(), uuid.New()
	msgId := uuid.New()

	repo.Save(chatId, sender, "k1", msgId)

	got, ok := repo.Get(chatId, sender, "k1")
	assert.True(t, ok)
	assert.Equal(t, msgId, got)

	_, ok = repo.Get(chatId, other, "k1")
	assert.False(t, ok)
	_, ok = repo.Get(uuid.New(), sender, "k1")
	assert.False(t, ok)

	repo.Delete(chatId, sender, "k1")
	_, ok = repo.Get(chatId, sender, "k1")
	assert.False(t, ok)
}

func TestIdempotencyRepositoryExpires(t *testing.T) {
	repo := NewIdempotencyRepository(20 * time.Millisecond)
	chatId, sender := uuid.New(), uuid.New()
	repo.Save(chatId, sender, "k", uuid.New())

	time.Sleep(40 * time.Millisecond)
	_, ok := repo.Get(chatId, sender, "k")
	assert.False(t, ok)
}

func TestIdempotencyRepositoryReserve(t *testing.T) {
	repo := NewIdempotencyRepository(time.Minute)
	chatId, sender := uuid.New(), uuid.New()

	_, ok := repo.Reserve(chatId, sender, "k")
	assert.True(t, ok)

	inFlight, ok := repo.Reserve(chatId, sender, "k")
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, inFlight)

	msgId := uuid.New()
	repo.Save(chatId, sender, "k", msgId)
	got, ok := repo.Reserve(chatId, sender, "k")
	assert.False(t, ok)
	assert.Equal(t, msgId, got)

	// Releasing a failed send frees the key.
	repo.Delete(chatId, sender, "k")
	_, ok = repo.Reserve(chatId, sender, "k")
	assert.True(t, ok)
}
