package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/phantommask/internal/handlers/render"
	"github.com/nkiryanov/phantommask/internal/logger"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/service/catalog"
)

type pharmacyResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func pharmacies(ps []models.Pharmacy) []pharmacyResponse {
	res := make([]pharmacyResponse, 0, len(ps))
	for _, p := range ps {
		res = append(res, pharmacyResponse{ID: p.ID, Name: p.Name})
	}
	return res
}

func handleOpenPharmacies(s catalogService, l logger.Logger) http.Handler {
	type query struct {
		Day  string `json:"day" validate:"required"`
		Time string `json:"time" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := newQueryParser(r)
		q := query{Day: p.String("day"), Time: p.String("time")}
		if !p.Bind(w, q) {
			return
		}

		open, err := s.OpenPharmacies(r.Context(), q.Day, q.Time)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, pharmacies(open))
	})
}

func handlePharmacyMasks(s catalogService, l logger.Logger) http.Handler {
	type query struct {
		SortBy string `json:"sort_by" validate:"omitempty,oneof=name price"`
	}

	type listing struct {
		MaskID int64  `json:"mask_id"`
		Name   string `json:"name"`
		Price  string `json:"price"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := newQueryParser(r)
		q := query{SortBy: p.String("sort_by")}
		if !p.Bind(w, q) {
			return
		}

		listings, err := s.PharmacyMasks(r.Context(), r.PathValue("name"), q.SortBy)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		res := make([]listing, 0, len(listings))
		for _, li := range listings {
			res = append(res, listing{MaskID: li.MaskID, Name: li.MaskName, Price: money(li.Price)})
		}
		render.JSON(w, res)
	})
}

func handlePharmacyHours(s catalogService, l logger.Logger) http.Handler {
	type day struct {
		Day    string `json:"day"`
		Opens  string `json:"opens"`
		Closes string `json:"closes"`
	}

	type response struct {
		Pharmacy string `json:"pharmacy"`
		Hours    []day  `json:"hours"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pharmacy, schedule, err := s.PharmacySchedule(r.Context(), r.PathValue("name"))
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		res := response{Pharmacy: pharmacy.Name, Hours: []day{}}
		for weekday, hours := range schedule {
			if hours == nil {
				continue
			}
			res.Hours = append(res.Hours, day{
				Day:    models.Weekday(weekday).String(),
				Opens:  hours.Opens.String(),
				Closes: hours.Closes.String(),
			})
		}
		render.JSON(w, res)
	})
}

func handlePharmaciesByMaskCount(s catalogService, l logger.Logger) http.Handler {
	type query struct {
		MinPrice   decimal.Decimal `json:"min_price"`
		MaxPrice   decimal.Decimal `json:"max_price"`
		Comparison string          `json:"comparison" validate:"required,oneof=gt gte lt lte"`
		Count      int             `json:"count" validate:"gte=0"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := newQueryParser(r)
		q := query{
			MinPrice:   p.Decimal("min_price"),
			MaxPrice:   p.Decimal("max_price"),
			Comparison: p.String("comparison"),
			Count:      p.Int("count"),
		}
		if !p.Bind(w, q) {
			return
		}

		found, err := s.PharmaciesByMaskCount(r.Context(), catalog.MaskCountFilter{
			MinPrice:   q.MinPrice,
			MaxPrice:   q.MaxPrice,
			Comparison: q.Comparison,
			Count:      q.Count,
		})
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, pharmacies(found))
	})
}
