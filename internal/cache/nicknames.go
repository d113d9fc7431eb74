package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"

	"github.com/rs/zerolog/log"
)

const nicknameKeyPrefix = "tournament:nickname:"

// KV is the subset of RedisCache the nickname cache needs
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// NicknameSource resolves nicknames from the system of record
type NicknameSource interface {
	NicknameByChatID(ctx context.Context, chatID int64) (string, error)
}

// Nicknames caches chat id to nickname lookups. Cache failures are logged
// and fall through to the source.
type Nicknames struct {
	source NicknameSource
	kv     KV
	ttl    time.Duration
}

// NewNicknames wraps source; a nil kv disables caching
func NewNicknames(source NicknameSource, kv KV, ttl time.Duration) *Nicknames {
	return &Nicknames{source: source, kv: kv, ttl: ttl}
}

// NicknameByChatID returns the cached nickname or loads and caches it
func (n *Nicknames) NicknameByChatID(ctx context.Context, chatID int64) (string, error) {
	if n.kv == nil {
		return n.source.NicknameByChatID(ctx, chatID)
	}

	key := nicknameKeyPrefix + strconv.FormatInt(chatID, 10)

	nickname, ok, err := n.kv.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Nickname cache read failed")
	} else if ok {
		metrics.RecordCacheHit()
		return nickname, nil
	}
	metrics.RecordCacheMiss()

	nickname, err = n.source.NicknameByChatID(ctx, chatID)
	if err != nil {
		return "", err
	}

	if err := n.kv.Set(ctx, key, nickname, n.ttl); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Nickname cache write failed")
	}

	return nickname, nil
}
