// Package redisstore is a Redis-backed repository for deployments that share
// spin state across several wheel servers.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/repository"
)

const defaultPrefix = "spinwheel"

// Hash fields of a spin meta record
const (
	fieldSpinsCount = "spins_count"
	fieldLastWinner = "last_winner_name"
	fieldLastSpin   = "last_spin_time"
	fieldUpdatedAt  = "updated_at"
)

// incrementScript bumps the counter only when the record exists, so a
// missing record reports not-found instead of creating a partial hash.
var incrementScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HINCRBY", KEYS[1], "spins_count", 1)
redis.call("HSET", KEYS[1], "last_winner_name", ARGV[1], "last_spin_time", ARGV[2], "updated_at", ARGV[3])
return 1
`)

// Store provides data access methods on Redis
type Store struct {
	client *redis.Client
	prefix string
	newID  func() (string, error)
}

var _ repository.FullRepository = (*Store)(nil)

// New connects to the Redis server at url (redis://[:password@]host:port/db)
func New(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, defaultPrefix), nil
}

// NewWithClient wraps an existing client. Keys are namespaced under prefix.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		client: client,
		prefix: prefix,
		newID:  func() (string, error) { return gonanoid.New() },
	}
}

func (s *Store) metaKey(userID string) string {
	return s.prefix + ":meta:" + userID
}

func (s *Store) historyKey(userID string) string {
	return s.prefix + ":history:" + userID
}

func (s *Store) historyIndexKey(userID string) string {
	return s.prefix + ":history-idx:" + userID
}

func (s *Store) settingsKey() string {
	return s.prefix + ":settings"
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ==================== Spin Meta Methods ====================

func (s *Store) GetSpinMeta(ctx context.Context, userID string) (*models.SpinMeta, error) {
	fields, err := s.client.HGetAll(ctx, s.metaKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to hgetall %s: %w", s.metaKey(userID), err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}
	return decodeMeta(userID, fields)
}

// decodeMeta converts a meta hash into a SpinMeta
func decodeMeta(userID string, fields map[string]string) (*models.SpinMeta, error) {
	meta := &models.SpinMeta{UserID: userID, LastWinnerName: fields[fieldLastWinner]}

	if v := fields[fieldSpinsCount]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q: %w", fieldSpinsCount, v, err)
		}
		meta.SpinsCount = n
	}
	if v := fields[fieldLastSpin]; v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q: %w", fieldLastSpin, v, err)
		}
		t := time.UnixMilli(ms).UTC()
		meta.LastSpinTime = &t
	}
	if v := fields[fieldUpdatedAt]; v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			meta.UpdatedAt = time.UnixMilli(ms).UTC()
		}
	}
	return meta, nil
}

func (s *Store) CreateSpinMeta(ctx context.Context, userID string) error {
	if userID == "" {
		return repository.ErrInvalidRecord
	}
	key := s.metaKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldSpinsCount, 0)
		pipe.HSetNX(ctx, key, fieldLastWinner, "")
		pipe.HSetNX(ctx, key, fieldUpdatedAt, time.Now().UnixMilli())
		return nil
	})
	return err
}

func (s *Store) IncrementSpinMeta(ctx context.Context, userID, winnerName string, spunAt time.Time) error {
	n, err := incrementScript.Run(ctx, s.client,
		[]string{s.metaKey(userID)},
		winnerName, spunAt.UnixMilli(), time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) SetSpinMeta(ctx context.Context, meta models.SpinMeta) error {
	if meta.UserID == "" {
		return repository.ErrInvalidRecord
	}
	key := s.metaKey(meta.UserID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldSpinsCount, meta.SpinsCount,
			fieldLastWinner, meta.LastWinnerName,
			fieldUpdatedAt, time.Now().UnixMilli(),
		)
		if meta.LastSpinTime != nil {
			pipe.HSet(ctx, key, fieldLastSpin, meta.LastSpinTime.UnixMilli())
		} else {
			pipe.HDel(ctx, key, fieldLastSpin)
		}
		return nil
	})
	return err
}

// ==================== History Methods ====================

func (s *Store) AppendHistory(ctx context.Context, rec *models.SpinHistoryRecord) error {
	if rec.UserID == "" {
		return repository.ErrInvalidRecord
	}
	if rec.ID == "" {
		id, err := s.newID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	ok, err := s.client.HSetNX(ctx, s.historyKey(rec.UserID), rec.ID, data).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("history record %s already exists", rec.ID)
	}
	return s.client.ZAdd(ctx, s.historyIndexKey(rec.UserID), &redis.Z{
		Score:  float64(rec.CreatedAt.UnixMilli()),
		Member: rec.ID,
	}).Err()
}

func (s *Store) ListHistory(ctx context.Context, userID string, limit int) ([]models.SpinHistoryRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.historyIndexKey(userID), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	records := []models.SpinHistoryRecord{}
	if len(ids) == 0 {
		return records, nil
	}

	values, err := s.client.HMGet(ctx, s.historyKey(userID), ids...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without a record
		}
		var rec models.SpinHistoryRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode history record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) GetHistoryRecord(ctx context.Context, userID, id string) (*models.SpinHistoryRecord, error) {
	raw, err := s.client.HGet(ctx, s.historyKey(userID), id).Result()
	if err == redis.Nil {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec models.SpinHistoryRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode history record: %w", err)
	}
	return &rec, nil
}

func (s *Store) CountHistory(ctx context.Context, userID string) (int, error) {
	n, err := s.client.ZCard(ctx, s.historyIndexKey(userID)).Result()
	return int(n), err
}

// ==================== Settings Methods ====================

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.settingsKey(), key).Result()
	if err == redis.Nil {
		return "", repository.ErrNotFound
	}
	return v, err
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.client.HSet(ctx, s.settingsKey(), key, value).Err()
}
