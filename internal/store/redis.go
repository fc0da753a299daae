package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/plotfit/plotfit/internal/analytics"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis.
//
// Keys, all under the configured prefix:
//
//	<prefix>:datasets                 SET of dataset names
//	<prefix>:dataset:<escaped name>   msgpack dataset
//	<prefix>:points:<dataset id>      HASH point id -> msgpack point
//	<prefix>:seq                      id sequence
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	// Parse URL or use defaults
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		// Fallback to a plain address
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "plotfit"
	}

	return &RedisStore{client: client, prefix: prefix, now: time.Now}, nil
}

func (s *RedisStore) namesKey() string {
	return s.prefix + ":datasets"
}

func (s *RedisStore) datasetKey(name string) string {
	return s.prefix + ":dataset:" + url.PathEscape(name)
}

func (s *RedisStore) pointsKey(datasetID int64) string {
	return s.prefix + ":points:" + strconv.FormatInt(datasetID, 10)
}

func (s *RedisStore) seqKey() string {
	return s.prefix + ":seq"
}

// readDataset loads a dataset inside a watched transaction
func (s *RedisStore) readDataset(ctx context.Context, c redis.Cmdable, name string) (*Dataset, error) {
	data, err := c.Get(ctx, s.datasetKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset from Redis: %w", err)
	}

	var ds Dataset
	if err := decodeRecord(data, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// watch runs fn under optimistic locking on keys, retrying on conflicts
func (s *RedisStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err := conflictBackoff(ctx, attempt); err != nil {
			return err
		}
	}
	return errConflict
}

func (s *RedisStore) CreateDataset(ctx context.Context, ds *Dataset) error {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate dataset id: %w", err)
	}

	now := s.now().UTC()
	created := *ds
	created.ID = id
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	data, err := encodeRecord(created)
	if err != nil {
		return err
	}

	key := s.datasetKey(ds.Name)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrDatasetExists, ds.Name)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, s.namesKey(), ds.Name)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return err
	}

	*ds = created
	return nil
}

func (s *RedisStore) GetDataset(ctx context.Context, name string) (*Dataset, error) {
	return s.readDataset(ctx, s.client, name)
}

func (s *RedisStore) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets from Redis: %w", err)
	}
	if len(names) == 0 {
		return []*Dataset{}, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.datasetKey(name)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets from Redis: %w", err)
	}

	datasets := make([]*Dataset, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET
			continue
		}
		var ds Dataset
		if err := decodeRecord([]byte(raw), &ds); err != nil {
			return nil, err
		}
		datasets = append(datasets, &ds)
	}
	sortDatasets(datasets)
	return datasets, nil
}

func (s *RedisStore) UpdateDataset(ctx context.Context, name string, update DatasetUpdate) (*Dataset, error) {
	oldKey := s.datasetKey(name)
	keys := []string{oldKey}
	if update.renames(name) {
		keys = append(keys, s.datasetKey(*update.Name))
	}

	var updated *Dataset
	err := s.watch(ctx, func(tx *redis.Tx) error {
		ds, err := s.readDataset(ctx, tx, name)
		if err != nil {
			return err
		}

		if update.renames(name) {
			n, err := tx.Exists(ctx, s.datasetKey(*update.Name)).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s", ErrDatasetExists, *update.Name)
			}
		}

		update.apply(ds, s.now().UTC())
		data, err := encodeRecord(ds)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if update.renames(name) {
				pipe.Del(ctx, oldKey)
				pipe.SRem(ctx, s.namesKey(), name)
				pipe.SAdd(ctx, s.namesKey(), ds.Name)
			}
			pipe.Set(ctx, s.datasetKey(ds.Name), data, 0)
			return nil
		})
		if err == nil {
			updated = ds
		}
		return err
	}, keys...)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *RedisStore) DeleteDataset(ctx context.Context, name string) error {
	key := s.datasetKey(name)
	return s.watch(ctx, func(tx *redis.Tx) error {
		ds, err := s.readDataset(ctx, tx, name)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, s.pointsKey(ds.ID))
			pipe.SRem(ctx, s.namesKey(), name)
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) DatasetExists(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, s.datasetKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check dataset existence: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) AddPoint(ctx context.Context, dataset string, x, y float64) (*Point, error) {
	points, err := s.addPoints(ctx, dataset, []analytics.Sample{{X: x, Y: y}})
	if err != nil {
		return nil, err
	}
	return &points[0], nil
}

func (s *RedisStore) AddPoints(ctx context.Context, dataset string, samples []analytics.Sample) (int, error) {
	points, err := s.addPoints(ctx, dataset, samples)
	return len(points), err
}

func (s *RedisStore) addPoints(ctx context.Context, dataset string, samples []analytics.Sample) ([]Point, error) {
	if len(samples) == 0 {
		_, err := s.readDataset(ctx, s.client, dataset)
		return nil, err
	}

	last, err := s.client.IncrBy(ctx, s.seqKey(), int64(len(samples))).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate point ids: %w", err)
	}
	first := last - int64(len(samples)) + 1

	points := make([]Point, len(samples))
	fields := make(map[string]interface{}, len(samples))
	for i, sample := range samples {
		points[i] = Point{ID: first + int64(i), X: sample.X, Y: sample.Y}
		data, err := encodeRecord(points[i])
		if err != nil {
			return nil, err
		}
		fields[strconv.FormatInt(points[i].ID, 10)] = data
	}

	key := s.datasetKey(dataset)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		ds, err := s.readDataset(ctx, tx, dataset)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.pointsKey(ds.ID), fields)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (s *RedisStore) ListPoints(ctx context.Context, dataset string) ([]Point, error) {
	ds, err := s.readDataset(ctx, s.client, dataset)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.HGetAll(ctx, s.pointsKey(ds.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list points from Redis: %w", err)
	}

	points := make([]Point, 0, len(raw))
	for _, v := range raw {
		var p Point
		if err := decodeRecord([]byte(v), &p); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ID < points[j].ID })
	return points, nil
}

func (s *RedisStore) GetPoint(ctx context.Context, dataset string, id int64) (*Point, error) {
	ds, err := s.readDataset(ctx, s.client, dataset)
	if err != nil {
		return nil, err
	}

	data, err := s.client.HGet(ctx, s.pointsKey(ds.ID), strconv.FormatInt(id, 10)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get point from Redis: %w", err)
	}

	var p Point
	if err := decodeRecord(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *RedisStore) UpdatePoint(ctx context.Context, dataset string, id int64, update PointUpdate) (*Point, error) {
	ds, err := s.readDataset(ctx, s.client, dataset)
	if err != nil {
		return nil, err
	}

	key := s.pointsKey(ds.ID)
	field := strconv.FormatInt(id, 10)

	var updated Point
	err = s.watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, key, field).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %d", ErrPointNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to get point from Redis: %w", err)
		}

		var p Point
		if err := decodeRecord(data, &p); err != nil {
			return err
		}
		update.apply(&p)
		encoded, err := encodeRecord(p)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, encoded)
			return nil
		})
		if err == nil {
			updated = p
		}
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *RedisStore) DeletePoint(ctx context.Context, dataset string, id int64) error {
	ds, err := s.readDataset(ctx, s.client, dataset)
	if err != nil {
		return err
	}

	n, err := s.client.HDel(ctx, s.pointsKey(ds.ID), strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete point from Redis: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
