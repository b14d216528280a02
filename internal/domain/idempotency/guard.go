package idempotency

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cachePrefix = "idem:"

// Guard provides at-most-once application of external references. Postgres
// holds the authoritative claims; Redis only short-circuits known duplicates
// and absorbs client double-clicks.
type Guard struct {
	repo *Repository
	rdb  *redis.Client
}

func NewGuard(repo *Repository, rdb *redis.Client) *Guard {
	return &Guard{repo: repo, rdb: rdb}
}

// TryClaim claims ref for its whole lifetime. Returns true exactly once per
// ref across all running instances.
func (g *Guard) TryClaim(ctx context.Context, ref string, kind RefKind) (bool, error) {
	if !validRef(ref) {
		return false, ErrInvalidRef
	}

	if g.seenInCache(ctx, ref) {
		return false, nil
	}

	claimed, err := g.repo.TryClaim(ctx, ref, kind)
	if err != nil {
		return false, err
	}
	g.cache(ctx, ref, 0)
	return claimed, nil
}

// TryClaimTx claims ref inside the caller's transaction. The cache is NOT
// updated here: the caller commits first, then calls CacheApplied, so a
// rolled-back claim never poisons the fast path.
func (g *Guard) TryClaimTx(ctx context.Context, tx *sqlx.Tx, ref string, kind RefKind) (bool, error) {
	if !validRef(ref) {
		return false, ErrInvalidRef
	}

	if g.seenInCache(ctx, ref) {
		return false, nil
	}

	return g.repo.TryClaimTx(ctx, tx, ref, kind)
}

// CacheApplied records a committed claim in the fast path.
func (g *Guard) CacheApplied(ctx context.Context, ref string) {
	g.cache(ctx, ref, 0)
}

// ClaimRequest de-duplicates a user-submitted request for ttl. Durable claim
// with a Redis fast path in front; the claim can be re-taken once expired.
func (g *Guard) ClaimRequest(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	if !validRef(requestID) {
		return false, ErrInvalidRef
	}

	ref := "req:" + requestID

	if g.rdb != nil {
		ok, err := g.rdb.SetNX(ctx, cachePrefix+ref, 1, ttl).Result()
		if err == nil && !ok {
			return false, nil
		}
		if err != nil {
			log.Warn().Err(err).Msg("request dedup cache unavailable, falling through to store")
		}
	}

	return g.repo.TryClaimExpiring(ctx, ref, RefRequest, ttl)
}

func (g *Guard) seenInCache(ctx context.Context, ref string) bool {
	if g.rdb == nil {
		return false
	}
	n, err := g.rdb.Exists(ctx, cachePrefix+ref).Result()
	if err != nil {
		// Cache miss on error; the store decides.
		return false
	}
	return n > 0
}

func (g *Guard) cache(ctx context.Context, ref string, ttl time.Duration) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Set(ctx, cachePrefix+ref, 1, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("failed to cache idempotency claim")
	}
}

func validRef(ref string) bool {
	return ref != "" && len(ref) <= 255
}
