package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/plotfit/plotfit/internal/analytics"
	"github.com/plotfit/plotfit/internal/config"
	"github.com/plotfit/plotfit/internal/utils"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	// etcd rejects transactions with more operations than --max-txn-ops (default 128)
	etcdBatchSize = 100
	casAttempts   = utils.DefaultMaxRetries

	// Ids are revision<<idBlockBits + offset; a block holds one write batch
	idBlockBits = 7
	idBlockSize = 1 << idBlockBits
)

var errConflict = errors.New("concurrent modification, retry the request")

// conflictBackoff waits a random, exponentially growing interval before the
// next optimistic retry so competing writers fall out of step
func conflictBackoff(ctx context.Context, attempt int) error {
	if attempt == casAttempts-1 {
		return nil
	}
	ceiling := min(utils.DefaultRetryBackoff<<attempt, utils.MaxRetryBackoff)
	t := time.NewTimer(ceiling/2 + time.Duration(rand.Int63n(int64(ceiling/2+1))))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EtcdStore implements Store on etcd.
//
// Layout under the configured prefix:
//
//	<prefix>/datasets/<escaped name>            dataset JSON
//	<prefix>/points/<dataset id>/<point id>     point JSON, ids zero-padded
//	<prefix>/sequence                           bumped to reserve ids
type EtcdStore struct {
	client *clientv3.Client
	prefix string
	cache  *ttlCache[etcdDataset]
	now    func() time.Time
}

// etcdDataset is a decoded dataset key with the revision it was read at
type etcdDataset struct {
	meta           Dataset
	createRevision int64
	modRevision    int64
}

// NewEtcdStore connects to etcd
func NewEtcdStore(cfg config.EtcdConfig) (*EtcdStore, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "/plotfit"
	}

	return &EtcdStore{
		client: client,
		prefix: path.Clean("/" + prefix),
		cache:  newTTLCache[etcdDataset](30 * time.Second),
		now:    time.Now,
	}, nil
}

func (s *EtcdStore) datasetKey(name string) string {
	return s.prefix + "/datasets/" + url.PathEscape(name)
}

func (s *EtcdStore) datasetsPrefix() string {
	return s.prefix + "/datasets/"
}

func (s *EtcdStore) pointsPrefix(datasetID int64) string {
	return fmt.Sprintf("%s/points/%020d/", s.prefix, datasetID)
}

func (s *EtcdStore) pointKey(datasetID, pointID int64) string {
	return fmt.Sprintf("%s%020d", s.pointsPrefix(datasetID), pointID)
}

func (s *EtcdStore) sequenceKey() string {
	return s.prefix + "/sequence"
}

// allocateIDs reserves n ids (at most idBlockSize) and returns the first one.
// Every put to the sequence key commits at a new store revision, so ids
// derived from it are unique and increasing without a compare-and-swap.
func (s *EtcdStore) allocateIDs(ctx context.Context, n int) (int64, error) {
	if n < 1 || n > idBlockSize {
		return 0, fmt.Errorf("cannot allocate %d ids at once (max %d)", n, idBlockSize)
	}
	resp, err := s.client.Put(ctx, s.sequenceKey(), strconv.Itoa(n))
	if err != nil {
		return 0, fmt.Errorf("failed to advance id sequence: %w", err)
	}
	return resp.Header.Revision << idBlockBits, nil
}

// loadDataset reads a dataset key, from cache unless fresh is set
func (s *EtcdStore) loadDataset(ctx context.Context, name string, fresh bool) (etcdDataset, error) {
	key := s.datasetKey(name)
	if !fresh {
		if cached, ok := s.cache.get(key); ok {
			return cached, nil
		}
	}

	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return etcdDataset{}, fmt.Errorf("failed to get dataset from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		s.cache.delete(key)
		return etcdDataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}

	var d etcdDataset
	if err := json.Unmarshal(resp.Kvs[0].Value, &d.meta); err != nil {
		return etcdDataset{}, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	d.createRevision = resp.Kvs[0].CreateRevision
	d.modRevision = resp.Kvs[0].ModRevision

	s.cache.set(key, d)
	return d, nil
}

// withDataset runs op against the dataset, retrying with a fresh read when
// op reports that the revision it saw no longer matches
func (s *EtcdStore) withDataset(ctx context.Context, name string, fresh bool, op func(d etcdDataset) (bool, error)) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		d, err := s.loadDataset(ctx, name, fresh)
		if err != nil {
			return err
		}
		ok, err := op(d)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		s.cache.delete(s.datasetKey(name))
		fresh = true
		if err := conflictBackoff(ctx, attempt); err != nil {
			return err
		}
	}
	return errConflict
}

func (s *EtcdStore) CreateDataset(ctx context.Context, ds *Dataset) error {
	id, err := s.allocateIDs(ctx, 1)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	created := *ds
	created.ID = id
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	data, err := json.Marshal(created)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	key := s.datasetKey(ds.Name)
	txn, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to store dataset in etcd: %w", err)
	}
	if !txn.Succeeded {
		return fmt.Errorf("%w: %s", ErrDatasetExists, ds.Name)
	}

	*ds = created
	return nil
}

func (s *EtcdStore) GetDataset(ctx context.Context, name string) (*Dataset, error) {
	d, err := s.loadDataset(ctx, name, false)
	if err != nil {
		return nil, err
	}
	meta := d.meta
	return &meta, nil
}

func (s *EtcdStore) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	resp, err := s.client.Get(ctx, s.datasetsPrefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets from etcd: %w", err)
	}

	datasets := make([]*Dataset, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ds Dataset
		if err := json.Unmarshal(kv.Value, &ds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dataset %s: %w", kv.Key, err)
		}
		datasets = append(datasets, &ds)
	}
	sortDatasets(datasets)
	return datasets, nil
}

func (s *EtcdStore) UpdateDataset(ctx context.Context, name string, update DatasetUpdate) (*Dataset, error) {
	var updated Dataset
	oldKey := s.datasetKey(name)

	err := s.withDataset(ctx, name, false, func(d etcdDataset) (bool, error) {
		updated = d.meta
		update.apply(&updated, s.now().UTC())

		data, err := json.Marshal(updated)
		if err != nil {
			return false, fmt.Errorf("failed to marshal dataset: %w", err)
		}

		cmps := []clientv3.Cmp{clientv3.Compare(clientv3.ModRevision(oldKey), "=", d.modRevision)}
		ops := []clientv3.Op{clientv3.OpPut(oldKey, string(data))}

		var newKey string
		if update.renames(name) {
			newKey = s.datasetKey(updated.Name)
			cmps = append(cmps, clientv3.Compare(clientv3.CreateRevision(newKey), "=", 0))
			ops = []clientv3.Op{clientv3.OpDelete(oldKey), clientv3.OpPut(newKey, string(data))}
		}

		txn, err := s.client.Txn(ctx).If(cmps...).Then(ops...).Commit()
		if err != nil {
			return false, fmt.Errorf("failed to update dataset in etcd: %w", err)
		}
		if txn.Succeeded {
			s.cache.delete(oldKey)
			return true, nil
		}

		if newKey != "" {
			resp, err := s.client.Get(ctx, newKey, clientv3.WithCountOnly())
			if err != nil {
				return false, err
			}
			if resp.Count > 0 {
				return false, fmt.Errorf("%w: %s", ErrDatasetExists, updated.Name)
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *EtcdStore) DeleteDataset(ctx context.Context, name string) error {
	key := s.datasetKey(name)

	return s.withDataset(ctx, name, false, func(d etcdDataset) (bool, error) {
		// Points are keyed by dataset id, so the whole subtree goes in one op
		txn, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", d.modRevision)).
			Then(
				clientv3.OpDelete(key),
				clientv3.OpDelete(s.pointsPrefix(d.meta.ID), clientv3.WithPrefix()),
			).
			Commit()
		if err != nil {
			return false, fmt.Errorf("failed to delete dataset from etcd: %w", err)
		}
		if txn.Succeeded {
			s.cache.delete(key)
		}
		return txn.Succeeded, nil
	})
}

func (s *EtcdStore) DatasetExists(ctx context.Context, name string) (bool, error) {
	resp, err := s.client.Get(ctx, s.datasetKey(name), clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("failed to check dataset existence: %w", err)
	}
	return resp.Count > 0, nil
}

func (s *EtcdStore) AddPoint(ctx context.Context, dataset string, x, y float64) (*Point, error) {
	var added Point
	_, err := s.addPoints(ctx, dataset, []analytics.Sample{{X: x, Y: y}}, func(p Point) { added = p })
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (s *EtcdStore) AddPoints(ctx context.Context, dataset string, samples []analytics.Sample) (int, error) {
	return s.addPoints(ctx, dataset, samples, nil)
}

// addPoints writes samples in batches, each guarded by the dataset still
// being the one that was resolved
func (s *EtcdStore) addPoints(ctx context.Context, dataset string, samples []analytics.Sample, onPoint func(Point)) (int, error) {
	if len(samples) == 0 {
		_, err := s.loadDataset(ctx, dataset, false)
		return 0, err
	}

	key := s.datasetKey(dataset)
	written := 0
	for written < len(samples) {
		end := min(written+etcdBatchSize, len(samples))
		batch := samples[written:end]

		firstID, err := s.allocateIDs(ctx, len(batch))
		if err != nil {
			return written, err
		}

		err = s.withDataset(ctx, dataset, false, func(d etcdDataset) (bool, error) {
			ops := make([]clientv3.Op, 0, len(batch))
			points := make([]Point, 0, len(batch))
			for i, sample := range batch {
				p := Point{ID: firstID + int64(i), X: sample.X, Y: sample.Y}
				data, err := json.Marshal(p)
				if err != nil {
					return false, fmt.Errorf("failed to marshal point: %w", err)
				}
				ops = append(ops, clientv3.OpPut(s.pointKey(d.meta.ID, p.ID), string(data)))
				points = append(points, p)
			}

			txn, err := s.client.Txn(ctx).
				If(clientv3.Compare(clientv3.CreateRevision(key), "=", d.createRevision)).
				Then(ops...).
				Commit()
			if err != nil {
				return false, fmt.Errorf("failed to store points in etcd: %w", err)
			}
			if txn.Succeeded && onPoint != nil {
				for _, p := range points {
					onPoint(p)
				}
			}
			return txn.Succeeded, nil
		})
		if err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}

func (s *EtcdStore) ListPoints(ctx context.Context, dataset string) ([]Point, error) {
	d, err := s.loadDataset(ctx, dataset, true)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, s.pointsPrefix(d.meta.ID),
		clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("failed to list points from etcd: %w", err)
	}

	points := make([]Point, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var p Point
		if err := json.Unmarshal(kv.Value, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal point %s: %w", kv.Key, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func (s *EtcdStore) GetPoint(ctx context.Context, dataset string, id int64) (*Point, error) {
	// Point reads must not trust a cached dataset id
	d, err := s.loadDataset(ctx, dataset, true)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, s.pointKey(d.meta.ID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get point from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}

	var p Point
	if err := json.Unmarshal(resp.Kvs[0].Value, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal point: %w", err)
	}
	return &p, nil
}

func (s *EtcdStore) UpdatePoint(ctx context.Context, dataset string, id int64, update PointUpdate) (*Point, error) {
	var updated Point

	// Point reads must not trust a cached dataset id
	err := s.withDataset(ctx, dataset, true, func(d etcdDataset) (bool, error) {
		key := s.pointKey(d.meta.ID, id)
		resp, err := s.client.Get(ctx, key)
		if err != nil {
			return false, fmt.Errorf("failed to get point from etcd: %w", err)
		}
		if len(resp.Kvs) == 0 {
			return false, fmt.Errorf("%w: %d", ErrPointNotFound, id)
		}
		if err := json.Unmarshal(resp.Kvs[0].Value, &updated); err != nil {
			return false, fmt.Errorf("failed to unmarshal point: %w", err)
		}
		update.apply(&updated)

		data, err := json.Marshal(updated)
		if err != nil {
			return false, fmt.Errorf("failed to marshal point: %w", err)
		}

		txn, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", resp.Kvs[0].ModRevision)).
			Then(clientv3.OpPut(key, string(data))).
			Commit()
		if err != nil {
			return false, fmt.Errorf("failed to update point in etcd: %w", err)
		}
		return txn.Succeeded, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *EtcdStore) DeletePoint(ctx context.Context, dataset string, id int64) error {
	d, err := s.loadDataset(ctx, dataset, true)
	if err != nil {
		return err
	}

	resp, err := s.client.Delete(ctx, s.pointKey(d.meta.ID, id))
	if err != nil {
		return fmt.Errorf("failed to delete point from etcd: %w", err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	return nil
}

func (s *EtcdStore) Close() error {
	s.cache.stop()
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
