package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
)

// RedisConfig defines Redis connection settings.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	Database int
	// Prefix namespaces every key. Defaults to "quill".
	Prefix string
}

// Redis implements Store on Redis. Documents are JSON strings; sorted sets
// scored by creation time keep list order.
type Redis struct {
	client *redis.Client
	prefix string
	clock  func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "quill"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("docstore: connect to redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix, clock: time.Now}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) commentKey(id string) string     { return r.prefix + ":comment:" + id }
func (r *Redis) commentsKey() string             { return r.prefix + ":comments" }
func (r *Redis) pendingKey() string              { return r.prefix + ":comments:pending" }
func (r *Redis) subscriberKey(id string) string  { return r.prefix + ":subscriber:" + id }
func (r *Redis) subscribersKey() string          { return r.prefix + ":subscribers" }
func (r *Redis) emailIndexKey(key string) string { return r.prefix + ":subscriber:email:" + key }

func (r *Redis) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	c, err := prepareComment(c, r.clock())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode comment: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.commentKey(c.ID), data, 0)
		pipe.ZAdd(ctx, r.commentsKey(), redis.Z{Score: float64(c.CreatedAt.UnixNano()), Member: c.ID})
		if !c.Approved {
			pipe.SAdd(ctx, r.pendingKey(), c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: store comment: %w", err)
	}
	return &c, nil
}

func (r *Redis) ListComments(ctx context.Context, f CommentFilter) ([]models.Comment, error) {
	if !validFilterStatus(f.Status) {
		return nil, apperr.Invalid(fmt.Errorf("status: must be one of all, pending, approved"))
	}
	ids, err := r.client.ZRevRange(ctx, r.commentsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore: list comments: %w", err)
	}
	out := []models.Comment{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.commentKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore: load comments: %w", err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// Deleted between the range and the load.
			continue
		}
		var c models.Comment
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			return nil, fmt.Errorf("docstore: decode comment: %w", err)
		}
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Redis) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	s, err := r.client.Get(ctx, r.commentKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get comment: %w", err)
	}
	var c models.Comment
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("docstore: decode comment: %w", err)
	}
	return &c, nil
}

func (r *Redis) ApproveComment(ctx context.Context, id string) error {
	key := r.commentKey(id)
	for {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			s, err := tx.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				return apperr.ErrNotFound
			}
			if err != nil {
				return err
			}
			var c models.Comment
			if err := json.Unmarshal([]byte(s), &c); err != nil {
				return fmt.Errorf("decode comment: %w", err)
			}
			c.Approved = true
			data, err := json.Marshal(c)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.SRem(ctx, r.pendingKey(), id)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("docstore: approve comment: %w", err)
		}
		return err
	}
}

func (r *Redis) DeleteComment(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.commentKey(id))
		pipe.ZRem(ctx, r.commentsKey(), id)
		pipe.SRem(ctx, r.pendingKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("docstore: delete comment: %w", err)
	}
	if del.Val() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *Redis) CountComments(ctx context.Context) (int, int, error) {
	pipe := r.client.Pipeline()
	total := pipe.ZCard(ctx, r.commentsKey())
	pending := pipe.SCard(ctx, r.pendingKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("docstore: count comments: %w", err)
	}
	return int(total.Val()), int(pending.Val()), nil
}

func (r *Redis) AddSubscriber(ctx context.Context, s models.Subscriber) (*models.Subscriber, error) {
	s, err := prepareSubscriber(s, r.clock())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode subscriber: %w", err)
	}

	idx := r.emailIndexKey(emailKey(s.Email))
	ok, err := r.client.SetNX(ctx, idx, s.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore: reserve email: %w", err)
	}
	if !ok {
		return nil, apperr.ErrAlreadyExists
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.subscriberKey(s.ID), data, 0)
		pipe.ZAdd(ctx, r.subscribersKey(), redis.Z{Score: float64(s.SubscribedAt.UnixNano()), Member: s.ID})
		return nil
	})
	if err != nil {
		_ = r.client.Del(ctx, idx).Err()
		return nil, fmt.Errorf("docstore: store subscriber: %w", err)
	}
	return &s, nil
}

func (r *Redis) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	ids, err := r.client.ZRevRange(ctx, r.subscribersKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore: list subscribers: %w", err)
	}
	out := []models.Subscriber{}
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.subscriberKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore: load subscribers: %w", err)
	}
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var s models.Subscriber
		if err := json.Unmarshal([]byte(str), &s); err != nil {
			return nil, fmt.Errorf("docstore: decode subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Redis) DeleteSubscriber(ctx context.Context, id string) error {
	str, err := r.client.Get(ctx, r.subscriberKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("docstore: get subscriber: %w", err)
	}
	var s models.Subscriber
	if err := json.Unmarshal([]byte(str), &s); err != nil {
		return fmt.Errorf("docstore: decode subscriber: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.subscriberKey(id), r.emailIndexKey(emailKey(s.Email)))
		pipe.ZRem(ctx, r.subscribersKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("docstore: delete subscriber: %w", err)
	}
	return nil
}

func (r *Redis) CountSubscribers(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.subscribersKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("docstore: count subscribers: %w", err)
	}
	return int(n), nil
}
