package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/aggregator"
)

// DefaultPrefix namespaces every key written by a Publisher.
const DefaultPrefix = "logtally:"

// Publisher mirrors a Report into Redis, one key per report section.
type Publisher struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewClient connects to addr and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("redis connected")
	return rdb, nil
}

// NewPublisher returns a Publisher. A zero ttl keeps keys forever.
func NewPublisher(client redis.Cmdable, prefix string, ttl time.Duration) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key for a report section.
func (p *Publisher) Key(section string) string {
	return p.prefix + section
}

// Publish replaces every section key in a single MULTI/EXEC.
func (p *Publisher) Publish(ctx context.Context, r *aggregator.Report) error {
	keys := make([]string, 0, len(aggregator.Sections))
	for _, s := range aggregator.Sections {
		keys = append(keys, p.Key(s))
	}

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)

		pipe.Set(ctx, p.Key(aggregator.SectionTotalRequests), r.TotalRequests, 0)

		if len(r.StatusCodes) > 0 {
			fields := make(map[string]any, len(r.StatusCodes))
			for _, s := range r.StatusCodes {
				fields[strconv.Itoa(s.Status)] = s.Count
			}
			pipe.HSet(ctx, p.Key(aggregator.SectionStatusCodes), fields)
		}

		zadd(ctx, pipe, p.Key(aggregator.SectionTopURLs), r.TopURLs)
		zadd(ctx, pipe, p.Key(aggregator.SectionUserAgents), r.UserAgents)
		hset(ctx, pipe, p.Key(aggregator.SectionSuspiciousIPs), r.SuspiciousIPs)
		hset(ctx, pipe, p.Key(aggregator.SectionTrafficTrends), r.TrafficTrends)

		if p.ttl > 0 {
			for _, k := range keys {
				pipe.Expire(ctx, k, p.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish report: %w", err)
	}

	log.Debug().Str("prefix", p.prefix).Msg("report published to redis")
	return nil
}

func zadd(ctx context.Context, pipe redis.Pipeliner, key string, items []aggregator.Ranked) {
	if len(items) == 0 {
		return
	}
	members := make([]redis.Z, 0, len(items))
	for _, it := range items {
		members = append(members, redis.Z{Score: float64(it.Count), Member: it.Key})
	}
	pipe.ZAdd(ctx, key, members...)
}

func hset(ctx context.Context, pipe redis.Pipeliner, key string, items []aggregator.Ranked) {
	if len(items) == 0 {
		return
	}
	fields := make(map[string]any, len(items))
	for _, it := range items {
		fields[it.Key] = it.Count
	}
	pipe.HSet(ctx, key, fields)
}

// Load reads the total, status codes and top URLs back from Redis.
func (p *Publisher) Load(ctx context.Context) (*aggregator.Report, error) {
	total, err := p.client.Get(ctx, p.Key(aggregator.SectionTotalRequests)).Int()
	if err != nil {
		return nil, err
	}

	raw, err := p.client.HGetAll(ctx, p.Key(aggregator.SectionStatusCodes)).Result()
	if err != nil {
		return nil, err
	}
	codes := make([]aggregator.StatusCount, 0, len(raw))
	for k, v := range raw {
		status, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("status field %q: %w", k, err)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("status count %q: %w", v, err)
		}
		codes = append(codes, aggregator.StatusCount{Status: status, Count: n})
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].Status < codes[j].Status })

	zs, err := p.client.ZRevRangeWithScores(ctx, p.Key(aggregator.SectionTopURLs), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	urls := make([]aggregator.Ranked, 0, len(zs))
	for _, z := range zs {
		urls = append(urls, aggregator.Ranked{Key: fmt.Sprint(z.Member), Count: int(z.Score)})
	}

	return &aggregator.Report{
		TotalRequests: total,
		StatusCodes:   codes,
		TopURLs:       urls,
	}, nil
}
