package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
)

type Service struct {
	pharmacies repository.PharmacyRepo
	listings   repository.ListingRepo
}

func NewService(pharmacies repository.PharmacyRepo, listings repository.ListingRepo) *Service {
	return &Service{
		pharmacies: pharmacies,
		listings:   listings,
	}
}

// OpenPharmacies lists pharmacies open on day ("mon".."sun") at time ("HH:MM")
func (s *Service) OpenPharmacies(ctx context.Context, day string, at string) ([]models.Pharmacy, error) {
	weekday, err := models.ParseWeekday(day)
	if err != nil {
		return nil, apperrors.Invalid("%s", err.Error())
	}

	tod, err := models.ParseTimeOfDay(at)
	if err != nil {
		return nil, apperrors.Invalid("%s", err.Error())
	}

	pharmacies, err := s.pharmacies.ListOpenAt(ctx, weekday, tod)
	if err != nil {
		return nil, fmt.Errorf("can't list open pharmacies: %w", err)
	}
	return pharmacies, nil
}

// PharmacyMasks lists masks sold by the pharmacy sorted by mask name (default) or price
func (s *Service) PharmacyMasks(ctx context.Context, pharmacyName string, sortBy string) ([]models.Listing, error) {
	sort := repository.ListingSort(sortBy)
	if sortBy == "" {
		sort = repository.SortByName
	}
	if !sort.Valid() {
		return nil, apperrors.Invalid("sort_by must be 'name' or 'price', got %q", sortBy)
	}

	pharmacy, err := s.pharmacies.GetPharmacyByName(ctx, pharmacyName)
	if err != nil {
		return nil, fmt.Errorf("can't get pharmacy: %w", err)
	}

	listings, err := s.listings.ListByPharmacy(ctx, pharmacy.ID, sort)
	if err != nil {
		return nil, fmt.Errorf("can't list pharmacy masks: %w", err)
	}
	return listings, nil
}

func (s *Service) PharmacySchedule(ctx context.Context, pharmacyName string) (models.Pharmacy, models.WeeklySchedule, error) {
	pharmacy, err := s.pharmacies.GetPharmacyByName(ctx, pharmacyName)
	if err != nil {
		return pharmacy, models.WeeklySchedule{}, fmt.Errorf("can't get pharmacy: %w", err)
	}

	schedule, err := s.pharmacies.GetSchedule(ctx, pharmacy.ID)
	if err != nil {
		return pharmacy, schedule, fmt.Errorf("can't get schedule: %w", err)
	}
	return pharmacy, schedule, nil
}

type MaskCountFilter struct {
	MinPrice   decimal.Decimal
	MaxPrice   decimal.Decimal
	Comparison string
	Count      int
}

// PharmaciesByMaskCount lists pharmacies having more or fewer than Count masks priced within the range
func (s *Service) PharmaciesByMaskCount(ctx context.Context, f MaskCountFilter) ([]models.Pharmacy, error) {
	cmp := repository.Comparison(f.Comparison)

	switch {
	case f.MinPrice.IsNegative() || f.MaxPrice.IsNegative():
		return nil, apperrors.Invalid("prices must not be negative")
	case f.MinPrice.GreaterThan(f.MaxPrice):
		return nil, apperrors.Invalid("min price must not exceed max price")
	case f.Count < 0:
		return nil, apperrors.Invalid("count must not be negative")
	case !cmp.Valid():
		return nil, apperrors.Invalid("comparison must be one of gt, gte, lt, lte, got %q", f.Comparison)
	}

	pharmacies, err := s.pharmacies.ListByListingCount(ctx, f.MinPrice, f.MaxPrice, cmp, f.Count)
	if err != nil {
		return nil, fmt.Errorf("can't filter pharmacies: %w", err)
	}
	return pharmacies, nil
}
