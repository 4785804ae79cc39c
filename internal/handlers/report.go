package handlers

import (
	"net/http"

	"github.com/nkiryanov/phantommask/internal/handlers/render"
	"github.com/nkiryanov/phantommask/internal/logger"
)

func handleTopUsers(s reportService, l logger.Logger) http.Handler {
	type query struct {
		StartDate string `json:"start_date" validate:"required"`
		EndDate   string `json:"end_date" validate:"required"`
		Limit     int    `json:"limit" validate:"gt=0"`
	}

	type user struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		TotalAmount      string `json:"total_amount"`
		TransactionCount int64  `json:"transaction_count"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := newQueryParser(r)
		q := query{StartDate: p.String("start_date"), EndDate: p.String("end_date"), Limit: p.Int("limit")}
		if !p.Bind(w, q) {
			return
		}

		top, err := s.TopUsers(r.Context(), q.StartDate, q.EndDate, q.Limit)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		res := make([]user, 0, len(top))
		for _, u := range top {
			res = append(res, user{
				ID:               u.UserID,
				Name:             u.Name,
				TotalAmount:      money(u.TotalAmount),
				TransactionCount: u.TransactionCount,
			})
		}
		render.JSON(w, res)
	})
}

func handleTransactionTotals(s reportService, l logger.Logger) http.Handler {
	type query struct {
		StartDate string `json:"start_date" validate:"required"`
		EndDate   string `json:"end_date" validate:"required"`
	}

	type response struct {
		TotalMasks  int64  `json:"total_masks"`
		TotalAmount string `json:"total_amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := newQueryParser(r)
		q := query{StartDate: p.String("start_date"), EndDate: p.String("end_date")}
		if !p.Bind(w, q) {
			return
		}

		totals, err := s.Totals(r.Context(), q.StartDate, q.EndDate)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, response{TotalMasks: totals.MaskCount, TotalAmount: money(totals.Amount)})
	})
}
