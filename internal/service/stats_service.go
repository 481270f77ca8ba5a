package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/models"
	"github.com/noah-isme/crm-dashboard/internal/session"
	appErrors "github.com/noah-isme/crm-dashboard/pkg/errors"
)

const statsCachePattern = "stats:*"

// StatsKind names a dashboard statistics block.
type StatsKind string

const (
	StatsUsers     StatsKind = "users"
	StatsCampaigns StatsKind = "campaigns"
	StatsLeads     StatsKind = "leads"
)

var statsRoles = map[StatsKind][]models.Role{
	StatsUsers:     {models.RoleAdmin},
	StatsCampaigns: {models.RoleManager, models.RoleSales},
	StatsLeads:     {models.RoleSales, models.RoleManager},
}

type statsUpstream interface {
	UserStats(ctx context.Context, ts client.TokenSource) (models.Stats, error)
	CampaignStats(ctx context.Context, ts client.TokenSource) (models.Stats, error)
	LeadStats(ctx context.Context, ts client.TokenSource, q url.Values) (models.Stats, error)
}

// StatsService serves the dashboard summary cards, cached per user.
type StatsService struct {
	upstream statsUpstream
	sessions *session.Manager
	cache    *CacheService
	ttl      time.Duration
}

// NewStatsService constructs the service. A nil cache disables caching.
func NewStatsService(upstream statsUpstream, sessions *session.Manager, cache *CacheService, ttl time.Duration) *StatsService {
	return &StatsService{upstream: upstream, sessions: sessions, cache: cache, ttl: ttl}
}

// Get returns the statistics block for the actor. campaignID narrows lead stats.
func (s *StatsService) Get(ctx context.Context, actor Actor, kind, campaignID string) (models.Stats, error) {
	k := StatsKind(strings.ToLower(kind))
	roles, ok := statsRoles[k]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown statistics %q", kind))
	}
	if !models.Authorized(actor.Identity.Role, roles...) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "statistics are not available for this role")
	}

	ts := s.sessions.For(actor.SessionID)
	key := fmt.Sprintf("stats:%s:%s:%s", k, actor.Identity.ID, campaignID)
	var out models.Stats
	err := s.cache.Remember(ctx, key, s.ttl, &out, func(ctx context.Context) (interface{}, error) {
		switch k {
		case StatsUsers:
			return s.upstream.UserStats(ctx, ts)
		case StatsCampaigns:
			return s.upstream.CampaignStats(ctx, ts)
		default:
			q := url.Values{}
			if campaignID != "" {
				q.Set("campaignId", campaignID)
			}
			return s.upstream.LeadStats(ctx, ts, q)
		}
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = models.Stats{}
	}
	return out, nil
}

// Invalidate drops every cached statistics block.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, statsCachePattern)
}
