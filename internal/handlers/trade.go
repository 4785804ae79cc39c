package handlers

import (
	"net/http"

	"github.com/nkiryanov/phantommask/internal/handlers/operatorctx"
	"github.com/nkiryanov/phantommask/internal/handlers/render"
	"github.com/nkiryanov/phantommask/internal/logger"
	"github.com/nkiryanov/phantommask/internal/models"
)

func handlePurchase(s tradeService, l logger.Logger) http.Handler {
	type request struct {
		PharmacyID int64 `json:"pharmacy_id" validate:"required"`
		MaskID     int64 `json:"mask_id" validate:"required"`
		UserID     int64 `json:"user_id" validate:"required"`
		Quantity   int   `json:"quantity" validate:"gt=0"`
	}

	type response struct {
		Message         string `json:"message"`
		TransactionID   int64  `json:"transaction_id"`
		UserName        string `json:"user_name"`
		PharmacyName    string `json:"pharmacy_name"`
		MaskName        string `json:"mask_name"`
		Quantity        int    `json:"quantity"`
		TotalCost       string `json:"total_cost"`
		TransactionDate string `json:"transaction_date"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 4096)
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		receipt, err := s.Purchase(r.Context(), models.PurchaseRequest{
			PharmacyID: req.PharmacyID,
			MaskID:     req.MaskID,
			UserID:     req.UserID,
			Quantity:   req.Quantity,
		})
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		operator, _ := operatorctx.FromContext(r.Context())
		logger.FromContext(r.Context(), l).Info("Purchase completed",
			"operator", operator,
			"transaction_id", receipt.TransactionID,
			"total_cost", money(receipt.TotalCost),
		)

		render.JSON(w, response{
			Message:         "Purchase completed successfully",
			TransactionID:   receipt.TransactionID,
			UserName:        receipt.UserName,
			PharmacyName:    receipt.PharmacyName,
			MaskName:        receipt.MaskName,
			Quantity:        receipt.Quantity,
			TotalCost:       money(receipt.TotalCost),
			TransactionDate: timestamp(receipt.CreatedAt),
		})
	})
}

func handleCancelLatest(s tradeService, l logger.Logger) http.Handler {
	type response struct {
		Message           string `json:"message"`
		TransactionID     int64  `json:"transaction_id"`
		UserName          string `json:"user_name"`
		PharmacyName      string `json:"pharmacy_name"`
		MaskName          string `json:"mask_name"`
		TransactionAmount string `json:"transaction_amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receipt, err := s.CancelLatest(r.Context())
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		operator, _ := operatorctx.FromContext(r.Context())
		logger.FromContext(r.Context(), l).Info("Transaction cancelled",
			"operator", operator,
			"transaction_id", receipt.TransactionID,
			"amount", money(receipt.Amount),
		)

		render.JSON(w, response{
			Message:           "Latest transaction cancelled successfully",
			TransactionID:     receipt.TransactionID,
			UserName:          receipt.UserName,
			PharmacyName:      receipt.PharmacyName,
			MaskName:          receipt.MaskName,
			TransactionAmount: money(receipt.Amount),
		})
	})
}
