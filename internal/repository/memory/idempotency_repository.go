package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// IdempotencyRepository remembers which message a client-supplied key produced,
// so a retried send returns the original message instead of a duplicate.
type IdempotencyRepository struct {
	cache *cache.Cache
}

func NewIdempotencyRepository(ttl time.Duration) *IdempotencyRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := cache.New(ttl, 2*ttl)
	return &IdempotencyRepository{
		cache: c,
	}
}

func idempotencyKey(chatId, senderId uuid.UUID, clientKey string) string {
	return fmt.Sprintf("%s:%s:%s", chatId, senderId, clientKey)
}

// Reserve claims clientKey for a send that has not committed yet. If the key is
// already taken it reports the message the key produced, or uuid.Nil while
// that earlier send is still in flight.
func (r *IdempotencyRepository) Reserve(chatId, senderId uuid.UUID, clientKey string) (uuid.UUID, bool) {
	key := idempotencyKey(chatId, senderId, clientKey)
	if err := r.cache.Add(key, uuid.Nil, cache.DefaultExpiration); err == nil {
		return uuid.Nil, true
	}
	messageId, _ := r.Get(chatId, senderId, clientKey)
	return messageId, false
}

func (r *IdempotencyRepository) Save(chatId, senderId uuid.UUID, clientKey string, messageId uuid.UUID) {
	r.cache.Set(idempotencyKey(chatId, senderId, clientKey), messageId, cache.DefaultExpiration)
}

func (r *IdempotencyRepository) Get(chatId, senderId uuid.UUID, clientKey string) (uuid.UUID, bool) {
	if x, found := r.cache.Get(idempotencyKey(chatId, senderId, clientKey)); found {
		return x.(uuid.UUID), true
	}
	return uuid.Nil, false
}

func (r *IdempotencyRepository) Delete(chatId, senderId uuid.UUID, clientKey string) {
	r.cache.Delete(idempotencyKey(chatId, senderId, clientKey))
}
