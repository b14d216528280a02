package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/pkg/chainrpc"
)

// ChainSource is one chain's transfer-log feed. Implemented by
// chainrpc.Client and by fakes in tests.
type ChainSource interface {
	Name() string
	RecentTransferLogs(ctx context.Context, blockDepth uint64) ([]chainrpc.TransferLog, error)
}

// Scanner looks for an expected transfer across all configured chains in
// parallel. One slow provider cannot block the others: every chain gets its
// own timeout, and the first match cancels the rest best-effort. A scan that
// outlives its cancellation cannot mis-credit: the idempotency guard still
// applies downstream.
type Scanner struct {
	sources    []ChainSource
	blockDepth uint64
	timeout    time.Duration
	tolerance  float64
}

func NewScanner(sources []ChainSource, blockDepth uint64, perChainTimeout time.Duration, tolerance float64) *Scanner {
	return &Scanner{
		sources:    sources,
		blockDepth: blockDepth,
		timeout:    perChainTimeout,
		tolerance:  tolerance,
	}
}

// Scan returns the first transfer within tolerance of expectedAmount.
// ErrNoMatch is a normal outcome the caller retries on; ErrAllChainsFailed
// is surfaced only when every chain errored.
func (s *Scanner) Scan(ctx context.Context, expectedAmount float64) (*Match, error) {
	if expectedAmount <= 0 {
		return nil, ErrInvalidInput
	}
	if len(s.sources) == 0 {
		return nil, ErrAllChainsFailed
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	matches := make(chan *Match, len(s.sources))
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, src := range s.sources {
		wg.Add(1)
		go func(src ChainSource) {
			defer wg.Done()

			chainCtx, chainCancel := context.WithTimeout(scanCtx, s.timeout)
			defer chainCancel()

			logs, err := src.RecentTransferLogs(chainCtx, s.blockDepth)
			if err != nil {
				// A single chain failing is a soft failure; the others carry on.
				log.Warn().Err(err).Str("chain", src.Name()).Msg("chain scan failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			for _, l := range logs {
				if s.withinTolerance(l.Amount, expectedAmount) {
					matches <- &Match{
						Chain:       src.Name(),
						TxHash:      strings.ToLower(l.TxHash),
						From:        strings.ToLower(l.From),
						Amount:      l.Amount,
						BlockNumber: l.BlockNumber,
					}
					return
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(matches)
	}()

	for m := range matches {
		// First match wins; stop the remaining scans.
		cancel()
		log.Info().
			Str("chain", m.Chain).
			Str("tx_hash", m.TxHash).
			Float64("amount", m.Amount).
			Msg("chain payment matched")
		return m, nil
	}

	if failed == len(s.sources) {
		return nil, ErrAllChainsFailed
	}
	return nil, ErrNoMatch
}

func (s *Scanner) withinTolerance(got, expected float64) bool {
	diff := got - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= expected*s.tolerance
}
