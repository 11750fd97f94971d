package integration

import (
	"context"
	"strings"
	"time"

	"github.com/storefront/landedcost/internal/domain/integration"
	"go.uber.org/zap"
)

// ErrCodeDuplicateInFeed marks a product skipped because its external ID
// already appeared earlier in the same run
const ErrCodeDuplicateInFeed = "DUPLICATE_IN_FEED"

// ErrCodeCancelled marks products not attempted because the run was cancelled
const ErrCodeCancelled = "CANCELLED"

// defaultLedgerTTL keeps run keys long enough to outlive any single feed run
const defaultLedgerTTL = 24 * time.Hour

// Reconciler reconciles a single supplier product
type Reconciler interface {
	Reconcile(ctx context.Context, sp integration.SupplierProduct, opts ReconcileOptions) *ReconcileResult
}

// FeedLedger records which keys a feed run has already processed
type FeedLedger interface {
	// MarkProcessed records key and reports whether this was its first mark
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// BatchImportResult summarizes one feed run
type BatchImportResult struct {
	RunID     string             `json:"run_id"`
	Results   []*ReconcileResult `json:"results"`
	Total     int                `json:"total"`
	Created   int                `json:"created"`
	Updated   int                `json:"updated"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	Anomalies int                `json:"anomalies"`
	Duration  time.Duration      `json:"duration"`
}

// BatchImportService reconciles a whole feed sequentially. One product
// failing never stops the run.
type BatchImportService struct {
	reconciler Reconciler
	ledger     FeedLedger
	ledgerTTL  time.Duration
	logger     *zap.Logger
}

// NewBatchImportService creates a new BatchImportService. With a nil ledger
// duplicates are detected per run in memory.
func NewBatchImportService(reconciler Reconciler, ledger FeedLedger, logger *zap.Logger) *BatchImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchImportService{
		reconciler: reconciler,
		ledger:     ledger,
		ledgerTTL:  defaultLedgerTTL,
		logger:     logger,
	}
}

// WithLedgerTTL sets how long run keys are kept in the ledger
func (s *BatchImportService) WithLedgerTTL(ttl time.Duration) *BatchImportService {
	if ttl > 0 {
		s.ledgerTTL = ttl
	}
	return s
}

// ImportAll reconciles products in feed order under runID
func (s *BatchImportService) ImportAll(ctx context.Context, runID string, products []integration.SupplierProduct, opts ReconcileOptions) *BatchImportResult {
	start := time.Now()
	log := s.logger.With(zap.String("run_id", runID))
	result := &BatchImportResult{
		RunID:   runID,
		Results: make([]*ReconcileResult, 0, len(products)),
		Total:   len(products),
	}
	local := make(map[string]struct{})

	for i, sp := range products {
		if err := ctx.Err(); err != nil {
			for _, rest := range products[i:] {
				result.Results = append(result.Results, &ReconcileResult{
					ExternalID: rest.ExternalID,
					Updated:    []Aspect{},
					ErrorCode:  ErrCodeCancelled,
					Message:    err.Error(),
				})
				result.Skipped++
			}
			log.Warn("feed run cancelled", zap.Int("remaining", len(products)-i))
			break
		}

		// Keyed the way Validate normalizes it, so padding cannot dodge the check.
		key := strings.TrimSpace(sp.ExternalID)
		if key != "" && !s.firstInRun(ctx, log, runID, key, local) {
			result.Results = append(result.Results, &ReconcileResult{
				ExternalID: key,
				Updated:    []Aspect{},
				ErrorCode:  ErrCodeDuplicateInFeed,
				Message:    "external id already processed in this run",
			})
			result.Skipped++
			log.Warn("duplicate product in feed", zap.String("external_id", key))
			continue
		}

		res := s.reconciler.Reconcile(ctx, sp, opts)
		result.Results = append(result.Results, res)
		result.Anomalies += len(res.Anomalies)
		switch res.outcome() {
		case OutcomeCreated:
			result.Created++
		case OutcomeUpdated:
			result.Updated++
		default:
			result.Failed++
		}
	}

	result.Duration = time.Since(start)
	log.Info("feed run finished",
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("anomalies", result.Anomalies),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// firstInRun reports whether externalID is seen for the first time in the
// run. Ledger errors fall back to the in-memory set.
func (s *BatchImportService) firstInRun(ctx context.Context, log *zap.Logger, runID, externalID string, local map[string]struct{}) bool {
	_, seen := local[externalID]
	local[externalID] = struct{}{}
	if s.ledger == nil {
		return !seen
	}
	first, err := s.ledger.MarkProcessed(ctx, runID+":"+externalID, s.ledgerTTL)
	if err != nil {
		log.Warn("feed ledger unavailable, using in-memory de-duplication", zap.Error(err))
		return !seen
	}
	return first
}
