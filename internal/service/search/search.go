package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/service/relevance"
)

// Domain selects what is searched
type Domain int

const (
	// Pharmacies compared and shown by name
	DomainPharmacy Domain = iota + 1

	// Masks compared and shown by model, so colors and pack sizes of one model collapse into one result
	DomainMask
)

func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pharmacy":
		return DomainPharmacy, nil
	case "mask":
		return DomainMask, nil
	default:
		return 0, apperrors.Invalid("unknown search type %q, expected 'pharmacy' or 'mask'", s)
	}
}

func (d Domain) String() string {
	switch d {
	case DomainPharmacy:
		return "pharmacy"
	case DomainMask:
		return "mask"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

type pharmacyNames interface {
	ListNames(ctx context.Context) ([]string, error)
}

type maskModels interface {
	ListModels(ctx context.Context) ([]string, error)
}

type Service struct {
	pharmacies pharmacyNames
	masks      maskModels
	tracer     trace.Tracer
}

func NewService(pharmacies pharmacyNames, masks maskModels) *Service {
	return &Service{
		pharmacies: pharmacies,
		masks:      masks,
		tracer:     otel.Tracer("github.com/nkiryanov/phantommask/internal/service/search"),
	}
}

// Search scores every candidate of the domain against query
// Results are unique by name and ordered from the most relevant
func (s *Service) Search(ctx context.Context, domain Domain, query string) (_ []models.SearchResult, err error) {
	ctx, span := s.tracer.Start(ctx, "search.Search", trace.WithAttributes(attribute.String("search.domain", domain.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search failed")
		}
		span.End()
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Invalid("search query must not be empty")
	}

	candidates, err := s.candidates(ctx, domain)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(candidates))
	seen := make(map[string]int, len(candidates))
	for _, name := range candidates {
		score := relevance.Score(query, name)

		if i, ok := seen[name]; ok {
			results[i].Relevance = score
			continue
		}
		seen[name] = len(results)
		results = append(results, models.SearchResult{Name: name, Relevance: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance < results[j].Relevance
	})

	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// Full scan of the domain on every query
func (s *Service) candidates(ctx context.Context, domain Domain) ([]string, error) {
	var (
		names []string
		err   error
	)

	switch domain {
	case DomainPharmacy:
		names, err = s.pharmacies.ListNames(ctx)
	case DomainMask:
		names, err = s.masks.ListModels(ctx)
	default:
		return nil, apperrors.Invalid("unknown search domain %s", domain)
	}

	if err != nil {
		return nil, fmt.Errorf("can't list %s candidates: %w", domain, err)
	}
	return names, nil
}
