package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/types"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

const (
	itemsBucket = "items"
	metaBucket  = "meta"
	infoKey     = "info"

	defaultOpenTimeout = 1 * time.Second
)

var (
	// ErrNotFound is returned when no record exists for a path.
	ErrNotFound = errors.New("not found")

	// ErrNoHost is returned by item operations that need a DCC when the
	// library was loaded without one.
	ErrNoHost = errors.New("no dcc host available")
)

// Options configures Load.
type Options struct {
	Host     host.Host
	Registry *Registry
	Logger   *zap.Logger
	Timeout  time.Duration
}

// Library is an index of data items stored in a bbolt database file.
type Library struct {
	db       *bbolt.DB
	path     string
	root     string
	host     host.Host
	registry *Registry
	logger   *zap.Logger
}

// Load opens the library database at path, creating it if needed.
func Load(path string, opts Options) (*Library, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultOpenTimeout
	}

	normalized := utils.NormalizePath(path)
	if err := os.MkdirAll(filepath.Dir(normalized), 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	db, err := bbolt.Open(normalized, 0600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open library database: %w", err)
	}

	var info types.LibraryInfo
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(itemsBucket)); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}

		if v := meta.Get([]byte(infoKey)); v != nil {
			return json.Unmarshal(v, &info)
		}
		info = types.LibraryInfo{
			ID:      utils.GenerateUUID(),
			Root:    filepath.ToSlash(filepath.Dir(normalized)),
			Created: time.Now(),
		}
		encoded, err := json.Marshal(info)
		if err != nil {
			return err
		}
		return meta.Put([]byte(infoKey), encoded)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize library: %w", err)
	}

	lib := &Library{
		db:       db,
		path:     normalized,
		root:     info.Root,
		host:     opts.Host,
		registry: opts.Registry,
		logger:   opts.Logger,
	}

	lib.logger.Debug("Library loaded",
		zap.String("path", normalized),
		zap.String("id", info.ID),
		zap.String("root", info.Root))

	return lib, nil
}

// Identifier returns the normalized path of the library database.
func (l *Library) Identifier() string {
	return l.path
}

// Root returns the folder whose hierarchy the library indexes.
func (l *Library) Root() string {
	return l.root
}

// Host returns the DCC host items operate on, possibly nil.
func (l *Library) Host() host.Host {
	return l.host
}

// Registry returns the item kinds the library resolves paths with.
func (l *Library) Registry() *Registry {
	return l.registry
}

// Close releases the database.
func (l *Library) Close() error {
	return l.db.Close()
}

// Info returns the library metadata.
func (l *Library) Info() (types.LibraryInfo, error) {
	var info types.LibraryInfo
	err := l.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(metaBucket)).Get([]byte(infoKey))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &info)
	})
	return info, err
}

// Get returns the data item at path. With onlyExtension the item kind is
// chosen from the path alone, so items that do not exist yet can be
// resolved. Otherwise the stored record wins, then a file on disk. A nil
// item means nothing handles path.
func (l *Library) Get(path string, onlyExtension bool) (DataItem, error) {
	path = utils.NormalizePath(path)
	if path == "" {
		return nil, nil
	}

	if onlyExtension {
		kind, ok := l.registry.ForPath(path, utils.Extension(path) == "")
		if !ok {
			return nil, nil
		}
		return kind.New(newBase(l, path, kind.Name)), nil
	}

	rec, err := l.Record(path)
	switch {
	case err == nil:
		if kind, ok := l.registry.ByName(rec.Kind); ok {
			return kind.New(newBase(l, path, kind.Name)), nil
		}
		l.logger.Warn("Record has unknown item kind",
			zap.String("path", path),
			zap.String("kind", string(rec.Kind)))
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil
	}
	kind, ok := l.registry.ForPath(path, info.IsDir())
	if !ok {
		return nil, nil
	}
	return kind.New(newBase(l, path, kind.Name)), nil
}

// Record returns the stored record for path.
func (l *Library) Record(path string) (*types.ItemRecord, error) {
	key := utils.NormalizePath(path)

	var rec types.ItemRecord
	err := l.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(itemsBucket)).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	l.describe(&rec)
	return &rec, nil
}

// describe fills the capabilities of rec from its item kind.
func (l *Library) describe(rec *types.ItemRecord) {
	rec.Capabilities = nil
	kind, ok := l.registry.ByName(rec.Kind)
	if !ok || kind.New == nil {
		return
	}
	rec.Capabilities = kind.New(newBase(l, rec.Path, kind.Name)).Capabilities().Strings()
}

// Records returns every record ordered by path.
func (l *Library) Records() ([]*types.ItemRecord, error) {
	var records []*types.ItemRecord
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(itemsBucket)).ForEach(func(k, v []byte) error {
			var rec types.ItemRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				l.logger.Warn("Skipping undecodable record", zap.ByteString("key", k), zap.Error(err))
				return nil
			}
			l.describe(&rec)
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// Register inserts or updates the record for rec.Path. ID and Created of an
// existing record are preserved.
func (l *Library) Register(rec *types.ItemRecord) error {
	rec.Path = utils.NormalizePath(rec.Path)
	now := time.Now()

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(itemsBucket))
		if v := b.Get([]byte(rec.Path)); v != nil {
			var existing types.ItemRecord
			if err := json.Unmarshal(v, &existing); err == nil {
				rec.ID = existing.ID
				rec.Created = existing.Created
			}
		}
		if rec.ID == "" {
			rec.ID = utils.GenerateUUID()
		}
		if rec.Created.IsZero() {
			rec.Created = now
		}
		if rec.Name == "" {
			rec.Name = filepath.Base(rec.Path)
		}
		if rec.Extension == "" {
			rec.Extension = utils.Extension(rec.Path)
		}
		rec.Modified = now

		stored := *rec
		stored.Capabilities = nil
		encoded, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return b.Put([]byte(rec.Path), encoded)
	})
}

// Remove deletes the record for path and every record below it.
func (l *Library) Remove(path string) error {
	key := utils.NormalizePath(path)

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(itemsBucket))
		for _, k := range keysUnder(b, key) {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rebase rewrites the records at or below from so they live below to.
func (l *Library) Rebase(from, to string) error {
	from = utils.NormalizePath(from)
	to = utils.NormalizePath(to)

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(itemsBucket))
		for _, k := range keysUnder(b, from) {
			var rec types.ItemRecord
			if err := json.Unmarshal(b.Get(k), &rec); err != nil {
				return fmt.Errorf("failed to decode record %s: %w", k, err)
			}
			rec.Path = to + strings.TrimPrefix(string(k), from)
			rec.Name = filepath.Base(rec.Path)
			rec.Modified = time.Now()

			encoded, err := json.Marshal(&rec)
			if err != nil {
				return err
			}
			if err := b.Delete(k); err != nil {
				return err
			}
			if err := b.Put([]byte(rec.Path), encoded); err != nil {
				return err
			}
		}
		return nil
	})
}

// keysUnder returns key itself and every key below key as a folder. The
// keys are copied since bbolt memory is only valid inside the transaction.
func keysUnder(b *bbolt.Bucket, key string) [][]byte {
	var keys [][]byte
	if b.Get([]byte(key)) != nil {
		keys = append(keys, []byte(key))
	}
	prefix := []byte(key + "/")
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	return keys
}

func (l *Library) touchSynced() error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		var info types.LibraryInfo
		if v := meta.Get([]byte(infoKey)); v != nil {
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
		}
		info.Synced = time.Now()
		encoded, err := json.Marshal(info)
		if err != nil {
			return err
		}
		return meta.Put([]byte(infoKey), encoded)
	})
}
