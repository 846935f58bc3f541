package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PostgresStore keeps leaves as rows of content_nodes. Every committed change
// is announced on a Redis channel so all instances notify their own
// subscribers; Listen must be running for deliveries to happen.
type PostgresStore struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	hub  *hub
	log  zerolog.Logger
}

// NewPostgresStore creates a store backed by pool. When rdb is nil changes
// are only delivered to subscribers of this process.
func NewPostgresStore(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *PostgresStore {
	l := log.With().Str("component", "postgres_store").Logger()
	return &PostgresStore{
		pool: pool,
		rdb:  rdb,
		hub:  newHub(l),
		log:  l,
	}
}

func (s *PostgresStore) Read(ctx context.Context, path string) (Snapshot, error) {
	if err := ValidatePath(path); err != nil {
		return Snapshot{}, err
	}
	return s.read(ctx, path)
}

func (s *PostgresStore) read(ctx context.Context, path string) (Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, value FROM content_nodes WHERE path = $1 OR path LIKE $2 ESCAPE '\'`,
		path, subtreePattern(path))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}
	defer rows.Close()

	var found []leaf
	for rows.Next() {
		var l leaf
		var value []byte
		if err := rows.Scan(&l.path, &value); err != nil {
			return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
		}
		l.value = value
		found = append(found, l)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}

	raw, err := build(path, found)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, Raw: raw}, nil
}

func (s *PostgresStore) Write(ctx context.Context, path string, value any) error {
	leaves, err := prepare(path, value)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		return replace(ctx, tx, map[string][]leaf{path: leaves})
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, collection string, value any) (string, error) {
	if err := ValidatePath(collection); err != nil {
		return "", err
	}
	id, err := NewID()
	if err != nil {
		return "", err
	}
	if v, ok := value.(Identifiable); ok {
		v.AssignID(id)
	}
	if err := s.Write(ctx, Join(collection, id), value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	staged := make(map[string][]leaf, len(fields))
	for k, v := range fields {
		child := Join(path, k)
		leaves, err := prepare(child, v)
		if err != nil {
			return err
		}
		staged[child] = leaves
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		return replace(ctx, tx, staged)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM content_nodes WHERE path = $1 OR path LIKE $2 ESCAPE '\'`,
		path, subtreePattern(path))
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	s.notify(ctx, path)
	return nil
}

// WriteIfAbsent serializes conditional writers on the same path with a
// transaction-scoped advisory lock.
func (s *PostgresStore) WriteIfAbsent(ctx context.Context, path string, value any) (bool, error) {
	leaves, err := prepare(path, value)
	if err != nil {
		return false, err
	}

	written := false
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, path); err != nil {
			return err
		}
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM content_nodes WHERE path = $1 OR path LIKE $2 ESCAPE '\')`,
			path, subtreePattern(path)).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		written = true
		return replace(ctx, tx, map[string][]leaf{path: leaves})
	})
	if err != nil {
		return false, fmt.Errorf("conditional write %s: %w", path, err)
	}
	if written {
		s.notify(ctx, path)
	}
	return written, nil
}

func (s *PostgresStore) Keys(ctx context.Context, path string) ([]string, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT split_part(substr(path, $2), '/', 1) AS key
		 FROM content_nodes WHERE path LIKE $1 ESCAPE '\' ORDER BY key`,
		subtreePattern(path), utf8.RuneCountInString(path)+2)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", path, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, path, s.read)
}

// Listen relays change announcements from Redis to local subscribers until
// ctx is done.
func (s *PostgresStore) Listen(ctx context.Context) error {
	if s.rdb == nil {
		<-ctx.Done()
		return nil
	}
	pubsub := s.rdb.Subscribe(ctx, config.CacheKey.StoreChangeChannel())
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe change channel: %w", err)
	}
	s.log.Info().Msg("Listening for content changes")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("change channel closed")
			}
			s.hub.deliver(ctx, msg.Payload, s.read)
		}
	}
}

// notify announces a committed change. If Redis is unavailable the change is
// still delivered locally.
func (s *PostgresStore) notify(ctx context.Context, path string) {
	if s.rdb != nil {
		err := s.rdb.Publish(ctx, config.CacheKey.StoreChangeChannel(), path).Err()
		if err == nil {
			return
		}
		s.log.Warn().Err(err).Str("path", path).Msg("Failed to publish change, delivering locally")
	}
	s.hub.deliver(ctx, path, s.read)
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// replace drops each staged subtree and the ancestor leaves it would shadow,
// then bulk-loads the new leaves.
func replace(ctx context.Context, tx pgx.Tx, staged map[string][]leaf) error {
	var shadowed []string
	rows := make([][]any, 0)
	for path, leaves := range staged {
		if _, err := tx.Exec(ctx,
			`DELETE FROM content_nodes WHERE path = $1 OR path LIKE $2 ESCAPE '\'`,
			path, subtreePattern(path)); err != nil {
			return err
		}
		shadowed = append(shadowed, ancestors(path)...)
		for _, l := range leaves {
			rows = append(rows, []any{l.path, string(l.value)})
		}
	}
	if len(shadowed) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM content_nodes WHERE path = ANY($1)`, shadowed); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"content_nodes"},
		[]string{"path", "value"},
		pgx.CopyFromRows(rows),
	)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// subtreePattern matches every path strictly beneath path.
func subtreePattern(path string) string {
	return likeEscaper.Replace(path) + "/%"
}
