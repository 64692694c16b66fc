package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/pet-preview/internal/metrics"
	"github.com/JakeFAU/pet-preview/internal/pet"
)

const tracerName = "github.com/JakeFAU/pet-preview/internal/preview"

// DefaultLookupTimeout bounds a single point lookup.
const DefaultLookupTimeout = 4 * time.Second

var (
	// ErrMissingImage marks a record that exists but has no image to preview.
	ErrMissingImage = errors.New("pet has no image")
	// ErrUpstream wraps transport, timeout and decoding failures from the data store.
	ErrUpstream = errors.New("pet lookup failed")
)

// Outcome labels an error returned by Resolve for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, ErrMissingImage):
		return "missing_image"
	case errors.Is(err, pet.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream_failure"
	}
}

// Resolver performs the bounded fetch-and-classify step shared by every strategy.
type Resolver struct {
	store   pet.Store
	timeout time.Duration
}

// NewResolver builds a Resolver; a non-positive timeout uses DefaultLookupTimeout.
func NewResolver(store pet.Store, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{store: store, timeout: timeout}
}

type lookupResult struct {
	pet pet.Pet
	err error
}

// Resolve fetches the pet and classifies the result. The returned error is nil, wraps pet.ErrNotFound,
// is ErrMissingImage, or wraps ErrUpstream. Resolve returns once the timeout elapses even if the store
// ignores context cancellation.
func (r *Resolver) Resolve(ctx context.Context, id string) (pet.Pet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pet.lookup",
		trace.WithAttributes(attribute.String("pet.id", id)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- lookupResult{err: fmt.Errorf("store panic: %v", rec)}
			}
		}()
		p, err := r.store.GetPet(ctx, id)
		done <- lookupResult{pet: p, err: err}
	}()

	var res lookupResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = lookupResult{err: ctx.Err()}
	}

	p, err := classify(id, res)
	outcome := Outcome(err)
	metrics.ObserveLookup(outcome, time.Since(start))
	span.SetAttributes(attribute.String("preview.outcome", outcome))
	if errors.Is(err, ErrUpstream) {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return p, err
}

func classify(id string, res lookupResult) (pet.Pet, error) {
	if res.err != nil {
		if errors.Is(res.err, pet.ErrNotFound) {
			return pet.Pet{}, fmt.Errorf("pet %s: %w", id, pet.ErrNotFound)
		}
		return pet.Pet{}, fmt.Errorf("%w: pet %s: %w", ErrUpstream, id, res.err)
	}
	p := res.pet
	if p.ID == "" {
		p.ID = id
	}
	if !p.HasImage() {
		return p, ErrMissingImage
	}
	return p, nil
}
