package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/integration"
	"github.com/storefront/landedcost/internal/domain/pricing"
	"github.com/storefront/landedcost/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxSlugAttempts bounds the numeric suffix search before the timestamp
// fallback is used
const maxSlugAttempts = 50

// Failure codes reported in ReconcileResult.ErrorCode
const (
	ErrCodeNotConfigured = "NOT_CONFIGURED"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInvalidPolicy = "INVALID_POLICY"
	ErrCodePersistence   = "PERSISTENCE_ERROR"
)

// Reconcile outcomes used for metrics and logs
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
)

// Aspect names a part of the local product a reconciliation pass wrote
type Aspect string

// Reconciled aspects
const (
	AspectProduct  Aspect = "product"
	AspectPrice    Aspect = "price"
	AspectVariants Aspect = "variants"
)

// ReconcileOptions are the per-call flags of one reconciliation pass. The
// flags only gate writes to an existing product; a new product always gets
// a price and every media field the store supports.
type ReconcileOptions struct {
	UpdateImages bool
	UpdateVideo  bool
	UpdatePrice  bool
	// Policy optionally overrides parts of the service pricing policy
	Policy *pricing.PolicyOverride
}

// ReconcileResult is the outcome of reconciling one supplier product. It is
// never nil; failures are reported through ErrorCode and Message.
type ReconcileResult struct {
	Success    bool                  `json:"success"`
	ExternalID string                `json:"external_id"`
	ProductID  string                `json:"product_id,omitempty"`
	Slug       string                `json:"slug,omitempty"`
	Created    bool                  `json:"created"`
	Updated    []Aspect              `json:"updated"`
	Price      *decimal.Decimal      `json:"price,omitempty"`
	Anomalies  []pricing.Anomaly     `json:"anomalies,omitempty"`
	Degraded   []pricing.Degradation `json:"degraded,omitempty"`
	ErrorCode  string                `json:"error_code,omitempty"`
	Message    string                `json:"message,omitempty"`
}

// HasAspect reports whether a was written
func (r *ReconcileResult) HasAspect(a Aspect) bool {
	for _, got := range r.Updated {
		if got == a {
			return true
		}
	}
	return false
}

func (r *ReconcileResult) outcome() string {
	switch {
	case !r.Success:
		return OutcomeFailed
	case r.Created:
		return OutcomeCreated
	default:
		return OutcomeUpdated
	}
}

// ProductQuote holds the per-variant pricing of a supplier product
type ProductQuote struct {
	// Variants are aligned with SupplierProduct.Variants
	Variants []pricing.Result
	// Representative indexes the lowest landed-cost variant, -1 when the
	// product has no variants
	Representative int
}

// Price returns the published product price and whether one exists
func (q *ProductQuote) Price() (decimal.Decimal, bool) {
	if q.Representative < 0 {
		return decimal.Zero, false
	}
	return q.Variants[q.Representative].FinalPrice, true
}

// Anomalies returns the anomalies of the representative variant
func (q *ProductQuote) Anomalies() []pricing.Anomaly {
	if q.Representative < 0 {
		return nil
	}
	return q.Variants[q.Representative].Anomalies
}

// Degraded returns every degradation applied to any variant
func (q *ProductQuote) Degraded() []pricing.Degradation {
	var out []pricing.Degradation
	seen := make(map[pricing.Degradation]bool)
	for _, r := range q.Variants {
		for _, d := range r.Degraded {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// MetricsRecorder receives reconciliation measurements
type MetricsRecorder interface {
	RecordReconcile(ctx context.Context, outcome string, duration time.Duration)
	RecordAnomaly(ctx context.Context, anomaly pricing.Anomaly)
	RecordDegradation(ctx context.Context, kind pricing.Degradation)
}

type noopMetrics struct{}

func (noopMetrics) RecordReconcile(context.Context, string, time.Duration) {}
func (noopMetrics) RecordAnomaly(context.Context, pricing.Anomaly)         {}
func (noopMetrics) RecordDegradation(context.Context, pricing.Degradation) {}

// ReconciliationService makes one local product consistent with one
// supplier product. It holds no lock: concurrent passes over the same
// external ID are last-write-wins.
type ReconciliationService struct {
	repo      catalog.ProductRepository
	policy    pricing.Policy
	caps      catalog.Capabilities
	logger    *zap.Logger
	publisher shared.EventPublisher
	metrics   MetricsRecorder
	tracer    trace.Tracer
	now       func() time.Time
}

// ReconciliationOption configures a ReconciliationService
type ReconciliationOption func(*ReconciliationService)

// WithEventPublisher publishes product events after every successful write
func WithEventPublisher(p shared.EventPublisher) ReconciliationOption {
	return func(s *ReconciliationService) {
		s.publisher = p
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) ReconciliationOption {
	return func(s *ReconciliationService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) ReconciliationOption {
	return func(s *ReconciliationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracer sets the tracer used for reconciliation spans
func WithTracer(t trace.Tracer) ReconciliationOption {
	return func(s *ReconciliationService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewReconciliationService creates a new ReconciliationService. A nil repo
// is accepted; every Reconcile call then fails with NOT_CONFIGURED.
func NewReconciliationService(
	repo catalog.ProductRepository,
	policy pricing.Policy,
	caps catalog.Capabilities,
	logger *zap.Logger,
	opts ...ReconciliationOption,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconciliationService{
		repo:    repo,
		policy:  policy,
		caps:    caps,
		logger:  logger,
		metrics: noopMetrics{},
		tracer:  otel.Tracer("github.com/storefront/landedcost/reconcile"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the base pricing policy of the service
func (s *ReconciliationService) Policy() pricing.Policy {
	return s.policy
}

// QuoteProduct prices every variant of sp without touching the store
func (s *ReconciliationService) QuoteProduct(sp *integration.SupplierProduct, override *pricing.PolicyOverride) (*ProductQuote, error) {
	policy := s.policy.Merge(override)
	q := &ProductQuote{
		Variants:       make([]pricing.Result, 0, len(sp.Variants)),
		Representative: -1,
	}
	for i, v := range sp.Variants {
		res, err := pricing.Quote(policy, v.QuoteInput())
		if err != nil {
			return nil, err
		}
		q.Variants = append(q.Variants, res)
		if q.Representative < 0 || res.LandedCost.LessThan(q.Variants[q.Representative].LandedCost) {
			q.Representative = i
		}
	}
	return q, nil
}

// Reconcile runs one reconciliation pass for sp. It never returns nil and
// never panics on store errors.
func (s *ReconciliationService) Reconcile(ctx context.Context, sp integration.SupplierProduct, opts ReconcileOptions) *ReconcileResult {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "reconcile.product",
		trace.WithAttributes(attribute.String("catalog.external_id", sp.ExternalID)),
	)
	defer span.End()

	result := s.reconcile(ctx, &sp, opts)

	span.SetAttributes(
		attribute.String("reconcile.outcome", result.outcome()),
		attribute.Int("reconcile.anomalies", len(result.Anomalies)),
	)
	if !result.Success {
		span.SetStatus(codes.Error, result.Message)
	}
	s.metrics.RecordReconcile(ctx, result.outcome(), s.now().Sub(start))
	return result
}

func (s *ReconciliationService) reconcile(ctx context.Context, sp *integration.SupplierProduct, opts ReconcileOptions) *ReconcileResult {
	result := &ReconcileResult{ExternalID: sp.ExternalID, Updated: []Aspect{}}
	log := s.logger.With(zap.String("external_id", sp.ExternalID))

	if s.repo == nil {
		return s.fail(log, result, ErrCodeNotConfigured, "catalog store is not configured")
	}
	if err := sp.Validate(); err != nil {
		return s.fail(log, result, ErrCodeInvalidInput, err.Error())
	}
	result.ExternalID = sp.ExternalID
	log = s.logger.With(zap.String("external_id", sp.ExternalID))
	// Variant rows are written after the product row, so anything that
	// would reject them has to be caught before the first write.
	for i, sv := range sp.Variants {
		if err := catalog.ValidateOptionLabel(sv.Label()); err != nil {
			return s.fail(log, result, ErrCodeInvalidInput, fmt.Sprintf("variants[%d]: %v", i, err))
		}
	}

	quote, err := s.QuoteProduct(sp, opts.Policy)
	if err != nil {
		return s.fail(log, result, ErrCodeInvalidPolicy, err.Error())
	}
	s.observeQuote(ctx, log, quote, result)

	existing, err := s.repo.FindByExternalID(ctx, sp.ExternalID)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		existing = nil
	default:
		return s.fail(log, result, ErrCodePersistence, fmt.Sprintf("lookup failed: %v", err))
	}

	var (
		product      *catalog.Product
		pricePersist bool
	)
	if existing == nil {
		product, pricePersist, err = s.insert(ctx, sp, quote)
		if err != nil {
			return s.fail(log, result, codeFor(err), err.Error())
		}
		result.Created = true
	} else {
		product = existing
		pricePersist, err = s.update(ctx, product, sp, quote, opts)
		if err != nil {
			result.ProductID = product.ID.String()
			return s.fail(log, result, codeFor(err), err.Error())
		}
	}
	result.ProductID = product.ID.String()
	result.Slug = product.Slug
	result.Updated = append(result.Updated, AspectProduct)
	if pricePersist {
		result.Updated = append(result.Updated, AspectPrice)
		price := product.Price
		result.Price = &price
	}

	variants, err := s.buildVariants(product, sp, quote, pricePersist)
	if err != nil {
		return s.fail(log, result, ErrCodeInvalidInput, err.Error())
	}
	if err := s.repo.ReplaceVariants(ctx, product.ID, variants); err != nil {
		return s.fail(log, result, ErrCodePersistence, fmt.Sprintf("replace variants failed: %v", err))
	}
	result.Updated = append(result.Updated, AspectVariants)

	s.publishEvents(ctx, log, product)

	result.Success = true
	log.Info("product reconciled",
		zap.String("product_id", result.ProductID),
		zap.String("slug", result.Slug),
		zap.Bool("created", result.Created),
		zap.Int("variants", len(variants)),
		zap.Any("updated", result.Updated),
	)
	return result
}

// insert creates a new product. Price and supported media are always set.
func (s *ReconciliationService) insert(ctx context.Context, sp *integration.SupplierProduct, quote *ProductQuote) (*catalog.Product, bool, error) {
	slug, err := s.uniqueSlug(ctx, catalog.Slugify(sp.Name))
	if err != nil {
		return nil, false, err
	}
	product, err := catalog.NewProduct(sp.Name, slug)
	if err != nil {
		return nil, false, err
	}
	if err := product.LinkExternalID(sp.ExternalID); err != nil {
		return nil, false, err
	}
	product.SetStock(sp.TotalStock())
	if s.caps.Supports(catalog.FieldImages) {
		product.SetImages(sp.ImageURLs)
	}
	if s.caps.Supports(catalog.FieldVideoURL) {
		product.SetVideoURL(sp.VideoURL)
	}
	priced := false
	if price, ok := quote.Price(); ok {
		if err := product.SetPrice(price); err != nil {
			return nil, false, err
		}
		priced = true
	}
	product.MarkSynced(s.now())

	err = s.repo.Create(ctx, product)
	if errors.Is(err, shared.ErrAlreadyExists) {
		// A concurrent insert took the slug; pick the next free one and retry once.
		s.logger.Warn("slug collision on insert, retrying",
			zap.String("external_id", sp.ExternalID),
			zap.String("slug", product.Slug),
		)
		slug, serr := s.uniqueSlug(ctx, catalog.Slugify(sp.Name))
		if serr != nil {
			return nil, false, serr
		}
		if slug == product.Slug {
			slug = catalog.SlugWithTimestamp(catalog.Slugify(sp.Name), s.now())
		}
		product.Slug = slug
		err = s.repo.Create(ctx, product)
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert failed: %w", err)
	}
	return product, priced, nil
}

// update writes supplier-derived fields to an existing product. The slug
// is preserved; media and price are written only when requested and
// supported.
func (s *ReconciliationService) update(ctx context.Context, product *catalog.Product, sp *integration.SupplierProduct, quote *ProductQuote, opts ReconcileOptions) (bool, error) {
	if err := product.Rename(sp.Name); err != nil {
		return false, err
	}
	product.SetStock(sp.TotalStock())
	fields := []catalog.Field{catalog.FieldTitle, catalog.FieldStock, catalog.FieldSyncedAt}

	if opts.UpdateImages && s.caps.Supports(catalog.FieldImages) {
		product.SetImages(sp.ImageURLs)
		fields = append(fields, catalog.FieldImages)
	}
	if opts.UpdateVideo && s.caps.Supports(catalog.FieldVideoURL) {
		product.SetVideoURL(sp.VideoURL)
		fields = append(fields, catalog.FieldVideoURL)
	}
	priced := false
	if opts.UpdatePrice {
		if price, ok := quote.Price(); ok {
			if err := product.SetPrice(price); err != nil {
				return false, err
			}
			fields = append(fields, catalog.FieldPrice)
			priced = true
		}
	}
	product.MarkSynced(s.now())

	if err := s.repo.Update(ctx, product, fields...); err != nil {
		return false, fmt.Errorf("update failed: %w", err)
	}
	return priced, nil
}

// uniqueSlug returns base or the first free suffixed form of it. It
// always produces a slug: the timestamp form is used once the bounded
// suffix search is exhausted.
func (s *ReconciliationService) uniqueSlug(ctx context.Context, base string) (string, error) {
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := base
		if n > 1 {
			candidate = catalog.SlugWithSuffix(base, n)
		}
		exists, err := s.repo.ExistsBySlug(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("slug lookup failed: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return catalog.SlugWithTimestamp(base, s.now()), nil
}

func (s *ReconciliationService) buildVariants(product *catalog.Product, sp *integration.SupplierProduct, quote *ProductQuote, repriced bool) ([]catalog.Variant, error) {
	variants := make([]catalog.Variant, 0, len(sp.Variants))
	for i, sv := range sp.Variants {
		price := product.Price
		if repriced {
			price = quote.Variants[i].FinalPrice
		}
		v, err := catalog.NewVariant(product.ID, sv.Label(), sv.ExternalSKU, price, sv.Stock)
		if err != nil {
			return nil, err
		}
		v.Position = i
		variants = append(variants, *v)
	}
	return variants, nil
}

func (s *ReconciliationService) observeQuote(ctx context.Context, log *zap.Logger, quote *ProductQuote, result *ReconcileResult) {
	result.Anomalies = quote.Anomalies()
	result.Degraded = quote.Degraded()

	for _, d := range result.Degraded {
		s.metrics.RecordDegradation(ctx, d)
		log.Warn("pricing degraded", zap.String("degraded", string(d)))
	}
	for _, a := range result.Anomalies {
		s.metrics.RecordAnomaly(ctx, a)
		fields := []zap.Field{zap.String("code", a.Code), zap.String("detail", a.Message)}
		switch a.Severity {
		case pricing.SeverityError:
			log.Error("pricing anomaly", fields...)
		case pricing.SeverityWarn:
			log.Warn("pricing anomaly", fields...)
		default:
			log.Info("pricing anomaly", fields...)
		}
	}
}

func (s *ReconciliationService) publishEvents(ctx context.Context, log *zap.Logger, product *catalog.Product) {
	events := product.GetDomainEvents()
	product.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish product events", zap.Error(err))
	}
}

func (s *ReconciliationService) fail(log *zap.Logger, result *ReconcileResult, code, message string) *ReconcileResult {
	result.Success = false
	result.ErrorCode = code
	result.Message = message
	log.Error("reconciliation failed", zap.String("error_code", code), zap.String("message", message))
	return result
}

func codeFor(err error) string {
	if code := shared.ErrorCode(err); code != "" {
		return code
	}
	return ErrCodePersistence
}
