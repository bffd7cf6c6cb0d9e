package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/asic-salesbot/agent/contract"
	statex "github.com/tanpawarit/asic-salesbot/agent/state"
)

var _ contractx.CatalogStore = (*RedisStore)(nil)

// RedisStore reads the product snapshot written by the sheet sync job:
//
//	{prefix}:rows       JSON {"<row>": "<model name>"}
//	{prefix}:row:<row>  JSON {"<column>": <value>}
//	{prefix}:last_sync  ISO-8601 timestamp of the last sync
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	staleAfter time.Duration
	now        func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string, staleAfter time.Duration) *RedisStore {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "asic"
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// OpenRedisStore connects using cfg.RedisURL. A bare host:port is accepted
// when the value is not a redis:// URL.
func OpenRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("failed to parse catalog redis url, using it as address")
		opt = &redis.Options{Addr: cfg.RedisURL}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis: %v", contractx.ErrCatalogUnavailable, err)
	}
	return NewRedisStore(client, cfg.KeyPrefix, cfg.StaleAfter), nil
}

func (s *RedisStore) rowsKey() string     { return s.prefix + ":rows" }
func (s *RedisStore) lastSyncKey() string { return s.prefix + ":last_sync" }
func (s *RedisStore) rowKey(row statex.RowID) string {
	return s.prefix + ":row:" + strconv.Itoa(int(row))
}

func (s *RedisStore) List(ctx context.Context) (map[statex.RowID]string, error) {
	raw, err := s.client.Get(ctx, s.rowsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		s.checkFreshness(ctx)
		return map[statex.RowID]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", contractx.ErrCatalogUnavailable, s.rowsKey(), err)
	}
	s.checkFreshness(ctx)

	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", contractx.ErrCatalogUnavailable, s.rowsKey(), err)
	}

	out := make(map[statex.RowID]string, len(decoded))
	for k, name := range decoded {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || id <= 0 {
			log.Ctx(ctx).Warn().Str("row", k).Msg("skipping catalog row with invalid id")
			continue
		}
		out[statex.RowID(id)] = strings.TrimSpace(name)
	}
	return out, nil
}

func (s *RedisStore) Fields(ctx context.Context, row statex.RowID, names []string) (map[string]string, error) {
	raw, err := s.client.Get(ctx, s.rowKey(row)).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", contractx.ErrCatalogUnavailable, s.rowKey(row), err)
	}
	return decodeRow(raw, names)
}

// FieldsBatch fetches many rows with a single MGET.
func (s *RedisStore) FieldsBatch(ctx context.Context, rows []statex.RowID, names []string) (map[statex.RowID]map[string]string, error) {
	out := make(map[statex.RowID]map[string]string, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = s.rowKey(row)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: mget rows: %v", contractx.ErrCatalogUnavailable, err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			out[rows[i]] = map[string]string{}
			continue
		}
		fields, err := decodeRow([]byte(raw), names)
		if err != nil {
			return nil, err
		}
		out[rows[i]] = fields
	}
	return out, nil
}

// LastSync returns the sync timestamp; zero time when it was never written.
func (s *RedisStore) LastSync(ctx context.Context) (time.Time, error) {
	raw, err := s.client.Get(ctx, s.lastSyncKey()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: get %s: %v", contractx.ErrCatalogUnavailable, s.lastSyncKey(), err)
	}
	return parseSyncTime(raw)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) checkFreshness(ctx context.Context) {
	if s.staleAfter <= 0 {
		return
	}
	at, err := s.LastSync(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("cannot read catalog sync time")
		return
	}
	if at.IsZero() {
		log.Ctx(ctx).Warn().Msg("catalog was never synced")
		return
	}
	if age := s.now().Sub(at); age > s.staleAfter {
		log.Ctx(ctx).Warn().
			Time("last_sync", at).
			Dur("age", age).
			Msg("catalog snapshot is stale")
	}
}

var syncLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseSyncTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range syncLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized sync timestamp %q", raw)
}

func decodeRow(raw []byte, names []string) (map[string]string, error) {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode row: %v", contractx.ErrCatalogUnavailable, err)
	}

	out := make(map[string]string, len(decoded))
	if len(names) == 0 {
		for k, v := range decoded {
			out[k] = stringify(v)
		}
		return out, nil
	}
	for _, name := range names {
		if v, ok := decoded[name]; ok {
			out[name] = stringify(v)
		}
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
