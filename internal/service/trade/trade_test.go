package trade

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
	"github.com/nkiryanov/phantommask/internal/repository/postgres"
	"github.com/nkiryanov/phantommask/internal/testutil"
)

var fixedNow = time.Date(2024, 5, 17, 10, 30, 15, 987654321, time.UTC)

type world struct {
	ana        models.User
	greenCross models.Pharmacy
	cloudFit   models.Mask
	listing    models.Listing
}

// Pharmacy "Green Cross" (balance 100) sells "CloudFit (blue) (5 per pack)" for 9.5, user "Ana" has 50
func newWorld(f *testutil.Fixtures) world {
	w := world{
		ana:        f.User("Ana", "50"),
		greenCross: f.Pharmacy("Green Cross", "100"),
		cloudFit:   f.Mask("CloudFit", "blue", 5),
	}
	w.listing = f.Listing(w.greenCross.ID, w.cloudFit.ID, "9.5")
	return w
}

type snapshot struct {
	user         decimal.Decimal
	pharmacy     decimal.Decimal
	latestID     int64
	transactions bool
}

func takeSnapshot(t *testing.T, storage repository.Storage, w world) snapshot {
	t.Helper()

	u, err := storage.User().GetUser(t.Context(), w.ana.ID, false)
	require.NoError(t, err)
	p, err := storage.Pharmacy().GetPharmacy(t.Context(), w.greenCross.ID, false)
	require.NoError(t, err)

	s := snapshot{user: u.CashBalance, pharmacy: p.CashBalance}
	latest, err := storage.Transaction().GetLatest(t.Context(), false)
	switch {
	case err == nil:
		s.latestID, s.transactions = latest.ID, true
	default:
		require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
	}
	return s
}

func requireUnchanged(t *testing.T, before, after snapshot) {
	t.Helper()

	require.True(t, before.user.Equal(after.user), "user balance changed: %s -> %s", before.user, after.user)
	require.True(t, before.pharmacy.Equal(after.pharmacy), "pharmacy balance changed: %s -> %s", before.pharmacy, after.pharmacy)
	require.Equal(t, before.transactions, after.transactions, "transactions table changed")
	require.Equal(t, before.latestID, after.latestID, "latest transaction changed")
}

func TestTrade(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, fn func(s *Service, storage repository.Storage, w world, f *testutil.Fixtures)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s, err := NewService(storage, WithClock(func() time.Time { return fixedNow }))
			require.NoError(t, err, "service should be created")

			f := testutil.NewFixtures(t, storage)
			fn(s, storage, newWorld(f), f)
		})
	}

	t.Run("Purchase", func(t *testing.T) {
		t.Run("example scenario", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage, w world, _ *testutil.Fixtures) {
				receipt, err := s.Purchase(t.Context(), models.PurchaseRequest{
					PharmacyID: w.greenCross.ID,
					MaskID:     w.cloudFit.ID,
					UserID:     w.ana.ID,
					Quantity:   2,
				})

				require.NoError(t, err, "purchase should succeed")
				require.Equal(t, "Ana", receipt.UserName)
				require.Equal(t, "Green Cross", receipt.PharmacyName)
				require.Equal(t, "CloudFit (blue) (5 per pack)", receipt.MaskName)
				require.Equal(t, 2, receipt.Quantity)
				require.Equal(t, "19.00", receipt.TotalCost.StringFixed(2))
				require.True(t, fixedNow.Truncate(time.Second).Equal(receipt.CreatedAt), "timestamp has second precision, got %v", receipt.CreatedAt)

				after := takeSnapshot(t, storage, w)
				require.Equal(t, "31.00", after.user.StringFixed(2))
				require.Equal(t, "119.00", after.pharmacy.StringFixed(2))

				latest, err := storage.Transaction().GetLatest(t.Context(), false)
				require.NoError(t, err)
				require.Equal(t, receipt.TransactionID, latest.ID)
				require.Equal(t, "19.00", latest.Amount.StringFixed(2))
				require.Equal(t, 2, latest.Quantity)
			})
		})

		t.Run("money is conserved", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage, w world, f *testutil.Fixtures) {
				odd := f.Mask("Masquerade", "green", 3)
				f.Listing(w.greenCross.ID, odd.ID, "3.33")
				before := takeSnapshot(t, storage, w)

				for qty := 1; qty <= 3; qty++ {
					_, err := s.Purchase(t.Context(), models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: odd.ID, UserID: w.ana.ID, Quantity: qty})
					require.NoError(t, err)
				}

				after := takeSnapshot(t, storage, w)
				require.True(t, before.user.Add(before.pharmacy).Equal(after.user.Add(after.pharmacy)), "sum of balances must not change")
				require.Equal(t, "30.02", after.user.StringFixed(2), "50 - 3.33*6")
			})
		})

		t.Run("buy whole balance", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage, w world, f *testutil.Fixtures) {
				exact := f.Mask("Exact", "red", 1)
				f.Listing(w.greenCross.ID, exact.ID, "25")

				_, err := s.Purchase(t.Context(), models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: exact.ID, UserID: w.ana.ID, Quantity: 2})

				require.NoError(t, err, "balance equal to cost is enough")
				require.True(t, takeSnapshot(t, storage, w).user.IsZero())
			})
		})

		t.Run("failures leave everything unchanged", func(t *testing.T) {
			tests := []struct {
				name     string
				request  func(w world, f *testutil.Fixtures) models.PurchaseRequest
				expected error
			}{
				{
					name: "pharmacy checked first",
					request: func(w world, _ *testutil.Fixtures) models.PurchaseRequest {
						return models.PurchaseRequest{PharmacyID: -1, MaskID: -1, UserID: -1, Quantity: 1}
					},
					expected: apperrors.ErrPharmacyNotFound,
				},
				{
					name: "mask checked before user",
					request: func(w world, _ *testutil.Fixtures) models.PurchaseRequest {
						return models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: -1, UserID: -1, Quantity: 1}
					},
					expected: apperrors.ErrMaskNotFound,
				},
				{
					name: "user",
					request: func(w world, _ *testutil.Fixtures) models.PurchaseRequest {
						return models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: -1, Quantity: 1}
					},
					expected: apperrors.ErrUserNotFound,
				},
				{
					name: "pharmacy does not sell the mask",
					request: func(w world, f *testutil.Fixtures) models.PurchaseRequest {
						other := f.Mask("Other", "white", 1)
						return models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: other.ID, UserID: w.ana.ID, Quantity: 1}
					},
					expected: apperrors.ErrListingNotFound,
				},
				{
					name: "insufficient funds",
					request: func(w world, _ *testutil.Fixtures) models.PurchaseRequest {
						return models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: w.ana.ID, Quantity: 6}
					},
					expected: apperrors.ErrInsufficientFunds,
				},
				{
					name: "total cost does not fit amount column",
					request: func(w world, f *testutil.Fixtures) models.PurchaseRequest {
						rich := f.User("Rich", "100000000000")
						f.Price(w.greenCross.ID, w.cloudFit.ID, "9999999999.99")
						return models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: rich.ID, Quantity: 2}
					},
					expected: apperrors.ErrInvalidArgument,
				},
				{
					name: "zero quantity",
					request: func(w world, _ *testutil.Fixtures) models.PurchaseRequest {
						return models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: w.ana.ID, Quantity: 0}
					},
					expected: apperrors.ErrInvalidArgument,
				},
				{
					name: "negative quantity",
					request: func(w world, _ *testutil.Fixtures) models.PurchaseRequest {
						return models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: w.ana.ID, Quantity: -3}
					},
					expected: apperrors.ErrInvalidArgument,
				},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					inTx(t, func(s *Service, storage repository.Storage, w world, f *testutil.Fixtures) {
						req := tt.request(w, f)
						before := takeSnapshot(t, storage, w)

						_, err := s.Purchase(t.Context(), req)

						require.ErrorIs(t, err, tt.expected)
						requireUnchanged(t, before, takeSnapshot(t, storage, w))
					})
				})
			}
		})
	})

	t.Run("CancelLatest", func(t *testing.T) {
		t.Run("empty table", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage, w world, _ *testutil.Fixtures) {
				before := takeSnapshot(t, storage, w)

				for range 2 {
					_, err := s.CancelLatest(t.Context())
					require.ErrorIs(t, err, apperrors.ErrTransactionNotFound, "cancel on empty table always fails")
				}

				requireUnchanged(t, before, takeSnapshot(t, storage, w))
			})
		})

		t.Run("purchase round trip", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage, w world, _ *testutil.Fixtures) {
				before := takeSnapshot(t, storage, w)
				purchase, err := s.Purchase(t.Context(), models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: w.ana.ID, Quantity: 2})
				require.NoError(t, err)

				receipt, err := s.CancelLatest(t.Context())

				require.NoError(t, err)
				require.Equal(t, purchase.TransactionID, receipt.TransactionID)
				require.Equal(t, "Ana", receipt.UserName)
				require.Equal(t, "Green Cross", receipt.PharmacyName)
				require.Equal(t, "CloudFit (blue) (5 per pack)", receipt.MaskName)
				require.Equal(t, "19.00", receipt.Amount.StringFixed(2))

				after := takeSnapshot(t, storage, w)
				require.Equal(t, "50.00", after.user.StringFixed(2))
				require.Equal(t, "100.00", after.pharmacy.StringFixed(2))
				requireUnchanged(t, before, after)
			})
		})

		t.Run("newest first across users", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage, w world, f *testutil.Fixtures) {
				bob := f.User("Bob", "20")
				older := f.Transaction(models.Transaction{UserID: bob.ID, PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, Quantity: 1, Amount: decimal.RequireFromString("9.5"), CreatedAt: fixedNow.Add(-time.Hour)})

				newer, err := s.Purchase(t.Context(), models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: w.ana.ID, Quantity: 1})
				require.NoError(t, err)

				first, err := s.CancelLatest(t.Context())
				require.NoError(t, err)
				require.Equal(t, newer.TransactionID, first.TransactionID)

				second, err := s.CancelLatest(t.Context())
				require.NoError(t, err, "repeated cancel reverts whatever is latest now")
				require.Equal(t, older.ID, second.TransactionID)
				require.Equal(t, "Bob", second.UserName)

				b, err := storage.User().GetUser(t.Context(), bob.ID, false)
				require.NoError(t, err)
				require.Equal(t, "29.50", b.CashBalance.StringFixed(2), "bob gets money back")

				_, err = s.CancelLatest(t.Context())
				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
			})
		})

		t.Run("stored amount is reverted after price change", func(t *testing.T) {
			inTx(t, func(s *Service, storage repository.Storage, w world, f *testutil.Fixtures) {
				cheap := f.Mask("Cheap", "gray", 1)
				f.Listing(w.greenCross.ID, cheap.ID, "1")
				before := takeSnapshot(t, storage, w)

				_, err := s.Purchase(t.Context(), models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: cheap.ID, UserID: w.ana.ID, Quantity: 3})
				require.NoError(t, err)
				f.Price(w.greenCross.ID, cheap.ID, "2")

				receipt, err := s.CancelLatest(t.Context())

				require.NoError(t, err)
				require.Equal(t, "3.00", receipt.Amount.StringFixed(2))
				requireUnchanged(t, before, takeSnapshot(t, storage, w))
			})
		})
	})
}

// Runs against committed data, so tables are truncated before and after
func TestTrade_Concurrent(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	s, err := NewService(storage)
	require.NoError(t, err)

	testutil.Truncate(t, pg.Pool)
	t.Cleanup(func() { testutil.Truncate(t, pg.Pool) })

	f := testutil.NewFixtures(t, storage)
	w := newWorld(f) // Ana can afford 5 masks priced 9.5

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Purchase(t.Context(), models.PurchaseRequest{PharmacyID: w.greenCross.ID, MaskID: w.cloudFit.ID, UserID: w.ana.ID, Quantity: 1})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected purchase error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded, "only 5 purchases fit into the balance")
	require.Equal(t, workers-5, rejected)

	after := takeSnapshot(t, storage, w)
	require.Equal(t, "2.50", after.user.StringFixed(2), "no lost updates on user balance")
	require.Equal(t, "147.50", after.pharmacy.StringFixed(2), "no lost updates on pharmacy balance")

	// Cancel everything concurrently
	for range succeeded {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CancelLatest(t.Context())
			if err != nil {
				t.Errorf("unexpected cancel error: %v", err)
			}
		}()
	}
	wg.Wait()

	final := takeSnapshot(t, storage, w)
	require.Equal(t, "50.00", final.user.StringFixed(2))
	require.Equal(t, "100.00", final.pharmacy.StringFixed(2))
	require.False(t, final.transactions, "every transaction should be cancelled exactly once")
}
