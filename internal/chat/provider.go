package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/snapgram/backend/internal/apperrors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/redis/go-redis/v9"
)

const (
	// maxChannelIDLen is the longest channel id the provider accepts
	maxChannelIDLen = 64

	channelType = "messaging"
	channelName = "Conversation"
)

// Member is a user registered with the chat provider
type Member struct {
	ID    string
	Name  string
	Image string
}

// Provider bootstraps chat sessions. Message transport is the provider's
// business; this side only registers members, finds or creates direct
// channels and signs client tokens.
type Provider interface {
	EnsureMembers(ctx context.Context, members ...Member) error
	OpenDirectChannel(ctx context.Context, initiator, other string) (channelID string, created bool, err error)
	CreateToken(userID string) (string, error)
}

// RedisProvider keeps the chat directory in Redis:
//
//	chat:user:<id>           hash of id, name, image
//	chat:user:<id>:channels  set of channel ids the user belongs to
//	chat:dm:<a>:<b>          channel id of the direct channel of a and b (a < b)
//	chat:channel:<id>        hash of type, name, members, created_by, created_at
type RedisProvider struct {
	rdb    *redis.Client
	apiKey string
	secret []byte
}

// NewRedisProvider creates a provider over rdb. Tokens are signed with secret.
func NewRedisProvider(rdb *redis.Client, apiKey, secret string) *RedisProvider {
	return &RedisProvider{rdb: rdb, apiKey: apiKey, secret: []byte(secret)}
}

// APIKey is the public key clients pair with tokens from CreateToken
func (p *RedisProvider) APIKey() string {
	return p.apiKey
}

func userKey(id string) string         { return "chat:user:" + id }
func userChannelsKey(id string) string { return "chat:user:" + id + ":channels" }
func channelKey(id string) string      { return "chat:channel:" + id }

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "chat:dm:" + a + ":" + b
}

// EnsureMembers registers members that are not yet known. Fields of members
// that already exist are left as they are.
func (p *RedisProvider) EnsureMembers(ctx context.Context, members ...Member) error {
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			key := userKey(m.ID)
			pipe.HSetNX(ctx, key, "id", m.ID)
			pipe.HSetNX(ctx, key, "name", m.Name)
			pipe.HSetNX(ctx, key, "image", m.Image)
		}
		return nil
	})
	if err != nil {
		return apperrors.NewExternalServiceError("chat", fmt.Errorf("upsert members: %w", err))
	}
	return nil
}

// OpenDirectChannel returns the direct channel between initiator and other,
// creating it when the pair has none. The pair is unordered: whoever opens
// first names the channel, later opens from either side find it.
func (p *RedisProvider) OpenDirectChannel(ctx context.Context, initiator, other string) (string, bool, error) {
	channelID := initiator + "_" + other
	if len(channelID) > maxChannelIDLen {
		channelID = channelID[:maxChannelIDLen]
	}

	pk := pairKey(initiator, other)
	created, err := p.rdb.SetNX(ctx, pk, channelID, 0).Result()
	if err != nil {
		return "", false, apperrors.NewExternalServiceError("chat", fmt.Errorf("claim channel: %w", err))
	}
	if !created {
		existing, err := p.rdb.Get(ctx, pk).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return "", false, apperrors.NewExternalServiceError("chat", errors.New("channel vanished"))
			}
			return "", false, apperrors.NewExternalServiceError("chat", fmt.Errorf("lookup channel: %w", err))
		}
		return existing, false, nil
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, channelKey(channelID),
			"type", channelType,
			"name", channelName,
			"members", initiator+","+other,
			"created_by", initiator,
			"created_at", time.Now().UTC().Format(time.RFC3339),
		)
		pipe.SAdd(ctx, userChannelsKey(initiator), channelID)
		pipe.SAdd(ctx, userChannelsKey(other), channelID)
		return nil
	})
	if err != nil {
		// Release the claim so the next open can retry creation.
		p.rdb.Del(ctx, pk)
		return "", false, apperrors.NewExternalServiceError("chat", fmt.Errorf("create channel: %w", err))
	}
	return channelID, true, nil
}

// CreateToken signs a client token for userID. Tokens carry only user_id and
// do not expire, matching what chat clients expect.
func (p *RedisProvider) CreateToken(userID string) (string, error) {
	if userID == "" {
		return "", apperrors.NewValidationError("userId", "user id is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", apperrors.NewExternalServiceError("chat", err)
	}
	return signed, nil
}
