package handlers

import (
	"context"
	"net/http"

	"github.com/andybalholm/brotli"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nkiryanov/phantommask/internal/handlers/middleware"
	"github.com/nkiryanov/phantommask/internal/logger"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/service/catalog"
	"github.com/nkiryanov/phantommask/internal/service/search"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Services struct {
	Catalog catalogService
	Report  reportService
	Search  searchService
	Trade   tradeService
}

func NewRouter(s Services, tokens tokenParser, logger logger.Logger) http.Handler {
	authMiddleware := middleware.AuthMiddleware(tokens)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("GET /pharmacies", handlePharmaciesByMaskCount(s.Catalog, logger))
	api.Handle("GET /pharmacies/open", handleOpenPharmacies(s.Catalog, logger))
	api.Handle("GET /pharmacies/{name}/masks", handlePharmacyMasks(s.Catalog, logger))
	api.Handle("GET /pharmacies/{name}/hours", handlePharmacyHours(s.Catalog, logger))

	api.Handle("GET /users/top", handleTopUsers(s.Report, logger))
	api.Handle("GET /transactions/totals", handleTransactionTotals(s.Report, logger))

	api.Handle("GET /search", handleSearch(s.Search, logger))

	api.Handle("POST /purchases", withAuth(handlePurchase(s.Trade, logger)))
	api.Handle("DELETE /transactions/latest", withAuth(handleCancelLatest(s.Trade, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		chimw.RequestID,
		chimw.Recoverer,
		middleware.LoggerMiddleware(logger),
		middleware.Compress(brotli.DefaultCompression),
	)

	return handler
}

type tokenParser interface {
	Parse(token string) (string, error)
}

type catalogService interface {
	OpenPharmacies(ctx context.Context, day string, at string) ([]models.Pharmacy, error)

	// Has to return apperrors.ErrPharmacyNotFound if pharmacy not found
	PharmacyMasks(ctx context.Context, pharmacyName string, sortBy string) ([]models.Listing, error)
	PharmacySchedule(ctx context.Context, pharmacyName string) (models.Pharmacy, models.WeeklySchedule, error)

	PharmaciesByMaskCount(ctx context.Context, f catalog.MaskCountFilter) ([]models.Pharmacy, error)
}

type reportService interface {
	TopUsers(ctx context.Context, startDate string, endDate string, limit int) ([]models.UserSpending, error)
	Totals(ctx context.Context, startDate string, endDate string) (models.TransactionTotals, error)
}

type searchService interface {
	Search(ctx context.Context, domain search.Domain, query string) ([]models.SearchResult, error)
}

type tradeService interface {
	Purchase(ctx context.Context, req models.PurchaseRequest) (models.PurchaseReceipt, error)

	// Has to return apperrors.ErrTransactionNotFound if there is nothing to cancel
	CancelLatest(ctx context.Context) (models.CancelReceipt, error)
}
