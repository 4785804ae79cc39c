package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/phantommask/internal/apperrors"
	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
	"github.com/nkiryanov/phantommask/internal/testutil"
)

var pg testutil.PostgresContainer

func inTx(t *testing.T, fn func(storage repository.Storage, f *testutil.Fixtures)) {
	testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
		storage := NewStorage(tx)
		fn(storage, testutil.NewFixtures(t, storage))
	})
}

func TestStorage(t *testing.T) {
	pg = testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("InTx", func(t *testing.T) {
		t.Run("commit on success", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				var created models.User

				err := storage.InTx(t.Context(), func(s repository.Storage) error {
					var err error
					created, err = s.User().CreateUser(t.Context(), "Ana", decimal.NewFromInt(50))
					return err
				})

				require.NoError(t, err)
				got, err := storage.User().GetUser(t.Context(), created.ID, false)
				require.NoError(t, err, "user created in committed tx should be visible")
				require.Equal(t, "Ana", got.Name)
			})
		})

		t.Run("rollback on error", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				user := f.User("Ana", "50")
				boom := errors.New("boom")

				err := storage.InTx(t.Context(), func(s repository.Storage) error {
					_, err := s.User().AddBalance(t.Context(), user.ID, decimal.NewFromInt(-10))
					require.NoError(t, err)
					return boom
				})

				require.ErrorIs(t, err, boom, "fn error should be returned as is")
				got, err := storage.User().GetUser(t.Context(), user.ID, false)
				require.NoError(t, err)
				require.True(t, decimal.NewFromInt(50).Equal(got.CashBalance), "balance change should be rolled back, got %s", got.CashBalance)
			})
		})

		t.Run("rollback on panic", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				user := f.User("Ana", "50")

				require.PanicsWithValue(t, "boom", func() {
					_ = storage.InTx(t.Context(), func(s repository.Storage) error {
						_, err := s.User().AddBalance(t.Context(), user.ID, decimal.NewFromInt(-10))
						require.NoError(t, err)
						panic("boom")
					})
				}, "panic should be re-raised")

				got, err := storage.User().GetUser(t.Context(), user.ID, false)
				require.NoError(t, err)
				require.True(t, decimal.NewFromInt(50).Equal(got.CashBalance), "balance change should be rolled back, got %s", got.CashBalance)
			})
		})
	})

	t.Run("User", func(t *testing.T) {
		t.Run("get not existed", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				_, err := storage.User().GetUser(t.Context(), 424242, true)

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
				require.ErrorIs(t, err, apperrors.ErrNotFound)
			})
		})

		t.Run("add balance", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				user := f.User("Ana", "50")

				updated, err := storage.User().AddBalance(t.Context(), user.ID, decimal.RequireFromString("-19.5"))

				require.NoError(t, err)
				require.Equal(t, "30.50", updated.CashBalance.StringFixed(2))
			})
		})

		t.Run("add balance below zero", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				user := f.User("Ana", "10")

				_, err := storage.User().AddBalance(t.Context(), user.ID, decimal.NewFromInt(-11))

				require.ErrorIs(t, err, apperrors.ErrInsufficientFunds, "check constraint has to be reported as insufficient funds")
			})
		})
	})

	t.Run("Pharmacy", func(t *testing.T) {
		t.Run("duplicate name", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				f.Pharmacy("Green Cross", "100")

				_, err := storage.Pharmacy().CreatePharmacy(t.Context(), "Green Cross", decimal.Zero)

				require.ErrorIs(t, err, apperrors.ErrPharmacyAlreadyExists)
			})
		})

		t.Run("get by name", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				created := f.Pharmacy("Green Cross", "100")

				got, err := storage.Pharmacy().GetPharmacyByName(t.Context(), "Green Cross")
				require.NoError(t, err)
				require.Equal(t, created.ID, got.ID)

				_, err = storage.Pharmacy().GetPharmacyByName(t.Context(), "Nope")
				require.ErrorIs(t, err, apperrors.ErrPharmacyNotFound)
			})
		})

		t.Run("pharmacy balance may go negative", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				p := f.Pharmacy("Green Cross", "5")

				updated, err := storage.Pharmacy().AddBalance(t.Context(), p.ID, decimal.NewFromInt(-7))

				require.NoError(t, err)
				require.Equal(t, "-2.00", updated.CashBalance.StringFixed(2))
			})
		})

		t.Run("schedule", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				p := f.Pharmacy("Green Cross", "0")
				f.Hours(p.ID, models.Monday, "08:00", "17:00")
				f.Hours(p.ID, models.Saturday, "20:00", "02:00")
				f.Hours(p.ID, models.Monday, "09:00", "18:00") // overwrite

				schedule, err := storage.Pharmacy().GetSchedule(t.Context(), p.ID)

				require.NoError(t, err)
				require.Equal(t, &models.OpeningHours{Opens: models.NewTimeOfDay(9, 0), Closes: models.NewTimeOfDay(18, 0)}, schedule[models.Monday])
				require.Equal(t, &models.OpeningHours{Opens: models.NewTimeOfDay(20, 0), Closes: models.NewTimeOfDay(2, 0)}, schedule[models.Saturday])
				require.Nil(t, schedule[models.Sunday], "no hours means closed")
			})
		})

		t.Run("list open at", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				day := f.Pharmacy("Day Care", "0")
				night := f.Pharmacy("Night Owl", "0")
				f.Hours(day.ID, models.Monday, "08:00", "17:00")
				f.Hours(night.ID, models.Monday, "20:00", "02:00")

				names := func(at string) []string {
					tod, err := models.ParseTimeOfDay(at)
					require.NoError(t, err)
					pharmacies, err := storage.Pharmacy().ListOpenAt(t.Context(), models.Monday, tod)
					require.NoError(t, err)
					res := make([]string, 0, len(pharmacies))
					for _, p := range pharmacies {
						res = append(res, p.Name)
					}
					return res
				}

				require.Equal(t, []string{"Day Care"}, names("08:00"), "opening minute is inclusive")
				require.Equal(t, []string{"Day Care"}, names("17:00"), "closing minute is inclusive")
				require.Equal(t, []string{"Night Owl"}, names("23:30"))
				require.Equal(t, []string{"Night Owl"}, names("01:00"), "window past midnight covers early hours")
				require.Empty(t, names("18:00"))

				other, err := storage.Pharmacy().ListOpenAt(t.Context(), models.Tuesday, models.NewTimeOfDay(10, 0))
				require.NoError(t, err)
				require.Empty(t, other, "nobody works on tuesday")
			})
		})

		t.Run("list by listing count", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				a := f.Pharmacy("A", "0")
				b := f.Pharmacy("B", "0")
				f.Pharmacy("C", "0")
				m1 := f.Mask("CloudFit", "blue", 5)
				m2 := f.Mask("CloudFit", "black", 10)
				f.Listing(a.ID, m1.ID, "5")
				f.Listing(a.ID, m2.ID, "15")
				f.Listing(b.ID, m1.ID, "50")

				list := func(cmp repository.Comparison, count int) []string {
					pharmacies, err := storage.Pharmacy().ListByListingCount(t.Context(), decimal.NewFromInt(0), decimal.NewFromInt(20), cmp, count)
					require.NoError(t, err)
					res := make([]string, 0, len(pharmacies))
					for _, p := range pharmacies {
						res = append(res, p.Name)
					}
					return res
				}

				require.Equal(t, []string{"A"}, list(repository.CompareGT, 1))
				require.Equal(t, []string{"A"}, list(repository.CompareGTE, 2))
				require.Equal(t, []string{"B", "C"}, list(repository.CompareLT, 1), "listings outside price range are not counted")
				require.Equal(t, []string{"A", "B", "C"}, list(repository.CompareLTE, 2))

				_, err := storage.Pharmacy().ListByListingCount(t.Context(), decimal.Zero, decimal.Zero, repository.Comparison("eq"), 1)
				require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
			})
		})
	})

	t.Run("Mask and Listing", func(t *testing.T) {
		t.Run("mask name", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				m := f.Mask("CloudFit", "blue", 5)
				require.Equal(t, "CloudFit (blue) (5 per pack)", m.Name)

				_, err := storage.Mask().GetMask(t.Context(), m.ID+1000)
				require.ErrorIs(t, err, apperrors.ErrMaskNotFound)

				// failed statement aborts the transaction, so it goes last
				_, err = storage.Mask().CreateMask(t.Context(), "CloudFit", "blue", 5)
				require.ErrorIs(t, err, apperrors.ErrMaskAlreadyExists)
			})
		})

		t.Run("list models keeps duplicates", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				f.Mask("CloudFit", "blue", 5)
				f.Mask("CloudFit", "black", 5)
				f.Mask("Masquerade", "green", 6)

				modelNames, err := storage.Mask().ListModels(t.Context())

				require.NoError(t, err)
				require.Equal(t, []string{"CloudFit", "CloudFit", "Masquerade"}, modelNames)
			})
		})

		t.Run("listing", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				p := f.Pharmacy("Green Cross", "0")
				cheap := f.Mask("Zeta", "white", 1)
				expensive := f.Mask("Alpha", "black", 10)
				f.Listing(p.ID, cheap.ID, "1.25")
				f.Listing(p.ID, expensive.ID, "30")

				got, err := storage.Listing().GetListing(t.Context(), p.ID, cheap.ID)
				require.NoError(t, err)
				require.Equal(t, "1.25", got.Price.StringFixed(2))
				require.Equal(t, cheap.Name, got.MaskName)

				byName, err := storage.Listing().ListByPharmacy(t.Context(), p.ID, repository.SortByName)
				require.NoError(t, err)
				require.Len(t, byName, 2)
				require.Equal(t, expensive.ID, byName[0].MaskID)

				byPrice, err := storage.Listing().ListByPharmacy(t.Context(), p.ID, repository.SortByPrice)
				require.NoError(t, err)
				require.Equal(t, cheap.ID, byPrice[0].MaskID)

				updated, err := storage.Listing().UpdatePrice(t.Context(), p.ID, cheap.ID, decimal.NewFromInt(99))
				require.NoError(t, err)
				require.Equal(t, "99.00", updated.Price.StringFixed(2))

				byPrice, err = storage.Listing().ListByPharmacy(t.Context(), p.ID, repository.SortByPrice)
				require.NoError(t, err)
				require.Equal(t, expensive.ID, byPrice[0].MaskID, "order follows the new price")

				_, err = storage.Listing().CreateListing(t.Context(), p.ID, cheap.ID, decimal.NewFromInt(2))
				require.ErrorIs(t, err, apperrors.ErrListingAlreadyExists)
			})
		})

		t.Run("listing not found", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				p := f.Pharmacy("Green Cross", "0")
				m := f.Mask("Zeta", "white", 1)

				_, err := storage.Listing().GetListing(t.Context(), p.ID, m.ID)

				require.ErrorIs(t, err, apperrors.ErrListingNotFound)
			})
		})
	})

	t.Run("Transaction", func(t *testing.T) {
		setup := func(f *testutil.Fixtures) models.Transaction {
			u := f.User("Ana", "100")
			p := f.Pharmacy("Green Cross", "0")
			m := f.Mask("CloudFit", "blue", 5)
			return models.Transaction{UserID: u.ID, PharmacyID: p.ID, MaskID: m.ID, Quantity: 2, Amount: decimal.RequireFromString("19")}
		}

		t.Run("latest on empty table", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				_, err := storage.Transaction().GetLatest(t.Context(), true)

				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
			})
		})

		t.Run("latest by date then id", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				base := setup(f)
				at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

				newest := base
				newest.CreatedAt = at.Add(time.Hour)
				first := f.Transaction(newest)

				sameTime := base
				sameTime.CreatedAt = at.Add(time.Hour)
				second := f.Transaction(sameTime)

				older := base
				older.CreatedAt = at
				f.Transaction(older)

				latest, err := storage.Transaction().GetLatest(t.Context(), false)

				require.NoError(t, err)
				require.Equal(t, second.ID, latest.ID, "ties on date are broken by the biggest id")
				require.Greater(t, second.ID, first.ID)
				require.Equal(t, 2, latest.Quantity)
				require.True(t, newest.CreatedAt.Equal(latest.CreatedAt))
			})
		})

		t.Run("delete", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				tr := setup(f)
				tr.CreatedAt = time.Now().UTC().Truncate(time.Second)
				created := f.Transaction(tr)

				err := storage.Transaction().DeleteTransaction(t.Context(), created.ID)
				require.NoError(t, err)

				err = storage.Transaction().DeleteTransaction(t.Context(), created.ID)
				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound, "second delete should report not found")
			})
		})

		t.Run("lock latest", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				err := storage.Transaction().LockLatest(t.Context())
				require.NoError(t, err)

				err = storage.Transaction().LockLatest(t.Context())
				require.NoError(t, err, "advisory lock is reentrant within one session")
			})
		})

		t.Run("invalid quantity", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				tr := setup(f)
				tr.Quantity = 0
				tr.CreatedAt = time.Now()

				_, err := storage.Transaction().CreateTransaction(t.Context(), tr)

				require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
				require.ErrorContains(t, err, "quantity must be positive, amount non-negative")
			})
		})

		t.Run("free transaction", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				tr := setup(f)
				tr.Amount = decimal.Zero
				tr.CreatedAt = time.Now().UTC().Truncate(time.Second)

				created, err := storage.Transaction().CreateTransaction(t.Context(), tr)

				require.NoError(t, err, "zero amount is allowed")
				require.True(t, created.Amount.IsZero())
			})
		})

		t.Run("amount too large", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				tr := setup(f)
				tr.Amount = decimal.RequireFromString("10000000000.00")
				tr.CreatedAt = time.Now()

				_, err := storage.Transaction().CreateTransaction(t.Context(), tr)

				require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
				require.ErrorContains(t, err, "too large")
			})
		})

		t.Run("aggregates", func(t *testing.T) {
			inTx(t, func(storage repository.Storage, f *testutil.Fixtures) {
				ana := f.User("Ana", "100")
				bob := f.User("Bob", "100")
				p := f.Pharmacy("Green Cross", "0")
				m := f.Mask("CloudFit", "blue", 5)
				day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

				add := func(userID int64, qty int, amount string, at time.Time) {
					f.Transaction(models.Transaction{UserID: userID, PharmacyID: p.ID, MaskID: m.ID, Quantity: qty, Amount: decimal.RequireFromString(amount), CreatedAt: at})
				}
				add(ana.ID, 1, "9.50", day.Add(time.Hour))
				add(ana.ID, 2, "19.00", day.Add(2*time.Hour))
				add(bob.ID, 4, "38.00", day.Add(3*time.Hour))
				add(bob.ID, 1, "9.50", day.Add(48*time.Hour)) // out of range

				from, to := day, day.AddDate(0, 0, 1)

				top, err := storage.Transaction().TopUsers(t.Context(), from, to, 10)
				require.NoError(t, err)
				require.Len(t, top, 2)
				require.Equal(t, "Bob", top[0].Name)
				require.Equal(t, "38.00", top[0].TotalAmount.StringFixed(2))
				require.Equal(t, int64(2), top[1].TransactionCount)

				top, err = storage.Transaction().TopUsers(t.Context(), from, to, 1)
				require.NoError(t, err)
				require.Len(t, top, 1, "limit should be applied")

				totals, err := storage.Transaction().Totals(t.Context(), from, to)
				require.NoError(t, err)
				require.Equal(t, int64((1+2+4)*5), totals.MaskCount, "masks are counted as quantity times pack size")
				require.Equal(t, "66.50", totals.Amount.StringFixed(2))

				empty, err := storage.Transaction().Totals(t.Context(), day.AddDate(1, 0, 0), day.AddDate(1, 0, 1))
				require.NoError(t, err)
				require.Zero(t, empty.MaskCount)
				require.True(t, empty.Amount.IsZero())
			})
		})
	})
}
