// Package search answers address lookups against the leads CRM export.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/opendata"

	"go.uber.org/zap"
)

const (
	MinQueryLen = 2
	MaxResults  = 10
	cacheNS     = "property_search"
	cacheTTL    = 10 * time.Minute
)

var ErrRateLimited = errors.New("too many requests")

type Lead struct {
	Name     string
	Address  string
	Zone     string
	LeadType string
	Email    string
	Status   string
}

type Result struct {
	Address string `json:"address"`
	Slug    string `json:"slug"`
}

var (
	slugDrop   = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// Slugify turns an address into a URL path segment.
func Slugify(address string) string {
	s := slugDrop.ReplaceAllString(strings.ToLower(address), "")
	s = slugSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	return slugDashes.ReplaceAllString(s, "-")
}

// Index is an in-memory copy of the leads file, one entry per address.
type Index struct {
	leads []Lead
}

// LoadFile reads path; a missing file yields an empty index.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Index{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Index, error) {
	rows, err := opendata.Parse(r, 0)
	if err != nil {
		return nil, err
	}
	idx := &Index{}
	seen := make(map[string]struct{})
	for _, row := range rows {
		addr := row.Get("address")
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		idx.leads = append(idx.leads, Lead{
			Name:     row.Get("name"),
			Address:  addr,
			Zone:     row.Get("zone"),
			LeadType: row.Get("lead_type"),
			Email:    row.Get("email"),
			Status:   row.Get("status"),
		})
	}
	return idx, nil
}

func (i *Index) Len() int { return len(i.leads) }

// Search matches q against addresses and their slugs, case-insensitively.
func (i *Index) Search(q string, limit int) []Result {
	q = strings.ToLower(strings.TrimSpace(q))
	results := []Result{}
	if utf8.RuneCountInString(q) < MinQueryLen {
		return results
	}
	slugQ := Slugify(q)
	for _, l := range i.leads {
		if len(results) >= limit {
			break
		}
		slug := Slugify(l.Address)
		if strings.Contains(strings.ToLower(l.Address), q) || (slugQ != "" && strings.Contains(slug, slugQ)) {
			results = append(results, Result{Address: l.Address, Slug: slug})
		}
	}
	return results
}

type ResultCache interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Service struct {
	index   *Index
	cache   ResultCache
	limiter RateLimiter
	log     *zap.Logger
}

func NewService(index *Index, log *zap.Logger) *Service {
	if index == nil {
		index = &Index{}
	}
	return &Service{index: index, log: logging.OrNop(log)}
}

// WithCache enables result caching and per-client rate limiting. Either may
// be nil.
func (s *Service) WithCache(c ResultCache, l RateLimiter) *Service {
	s.cache = c
	s.limiter = l
	return s
}

// Search returns up to MaxResults matches. Cache and limiter errors are
// logged and the lookup proceeds without them.
func (s *Service) Search(ctx context.Context, q, client string) ([]Result, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryLen {
		return []Result{}, nil
	}

	if s.limiter != nil && client != "" {
		ok, err := s.limiter.Allow(ctx, client)
		if err != nil {
			s.log.Warn("search rate limiter unavailable", zap.Error(err))
		} else if !ok {
			return nil, ErrRateLimited
		}
	}

	key := strings.ToLower(q)
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, cacheNS, key); err == nil {
			var cached []Result
			if json.Unmarshal([]byte(v), &cached) == nil {
				return cached, nil
			}
		}
	}

	results := s.index.Search(q, MaxResults)

	if s.cache != nil {
		if body, err := json.Marshal(results); err == nil {
			if err := s.cache.Set(ctx, cacheNS, key, body, cacheTTL); err != nil {
				s.log.Debug("search cache write failed", zap.Error(err))
			}
		}
	}
	return results, nil
}
