package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

const defaultNamespace = "ideaforge"

// RedisStore keeps snippets in a Redis hash and ranks them by token overlap
// with the query. Good enough for the background-context corpus sizes the
// workflows use; a real vector index can replace it behind the same interface.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
	logger    *slog.Logger
}

// NewRedisStore connects to Redis using a redis:// URL.
func NewRedisStore(redisURL, namespace string, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if namespace == "" {
		namespace = defaultNamespace
	}

	return &RedisStore{
		client:    redis.NewClient(opts),
		namespace: namespace,
		logger:    logger,
	}, nil
}

func (s *RedisStore) key() string {
	return s.namespace + ":snippets"
}

// Add stores one snippet.
func (s *RedisStore) Add(ctx context.Context, snippet Snippet) error {
	if snippet.ID == "" {
		return fmt.Errorf("snippet ID is required")
	}

	payload, err := json.Marshal(snippet)
	if err != nil {
		return fmt.Errorf("failed to marshal snippet: %w", err)
	}

	err = s.client.HSet(ctx, s.key(), snippet.ID, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to store snippet: %w", err)
	}

	return nil
}

// Search loads the corpus and returns the limit best token-overlap matches.
// Snippets with no overlap are not returned.
func (s *RedisStore) Search(ctx context.Context, query string, limit int) ([]Snippet, error) {
	if limit <= 0 {
		limit = 5
	}

	entries, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load snippets: %w", err)
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []Snippet{}, nil
	}

	matches := make([]Snippet, 0, len(entries))

	for id, payload := range entries {
		var snippet Snippet

		err := json.Unmarshal([]byte(payload), &snippet)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "Skipping undecodable snippet", "id", id, "error", err)
			}

			continue
		}

		score := overlap(queryTokens, tokenize(snippet.Text))
		if score == 0 {
			continue
		}

		snippet.Score = score
		matches = append(matches, snippet)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}

		return matches[i].ID < matches[j].ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})

	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,;:!?()[]{}\"'")
		if len(token) < 3 {
			continue
		}

		tokens[token] = struct{}{}
	}

	return tokens
}

// overlap is the fraction of query tokens present in the document.
func overlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}

	var hits int

	for token := range query {
		if _, ok := doc[token]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(query))
}
