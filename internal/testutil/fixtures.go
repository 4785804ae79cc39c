package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/phantommask/internal/models"
	"github.com/nkiryanov/phantommask/internal/repository"
)

// Fixtures creates domain rows and fails the test on any error
type Fixtures struct {
	t       *testing.T
	storage repository.Storage
}

func NewFixtures(t *testing.T, storage repository.Storage) *Fixtures {
	return &Fixtures{t: t, storage: storage}
}

func (f *Fixtures) User(name string, balance string) models.User {
	f.t.Helper()
	u, err := f.storage.User().CreateUser(f.t.Context(), name, decimal.RequireFromString(balance))
	require.NoError(f.t, err, "fixture user %q should be created", name)
	return u
}

func (f *Fixtures) Pharmacy(name string, balance string) models.Pharmacy {
	f.t.Helper()
	p, err := f.storage.Pharmacy().CreatePharmacy(f.t.Context(), name, decimal.RequireFromString(balance))
	require.NoError(f.t, err, "fixture pharmacy %q should be created", name)
	return p
}

// Hours sets opening hours, opens and closes in HH:MM format
func (f *Fixtures) Hours(pharmacyID int64, day models.Weekday, opens string, closes string) {
	f.t.Helper()
	o, err := models.ParseTimeOfDay(opens)
	require.NoError(f.t, err)
	c, err := models.ParseTimeOfDay(closes)
	require.NoError(f.t, err)

	err = f.storage.Pharmacy().SetOpeningHours(f.t.Context(), pharmacyID, day, models.OpeningHours{Opens: o, Closes: c})
	require.NoError(f.t, err, "fixture opening hours should be set")
}

func (f *Fixtures) Mask(model string, color string, packSize int) models.Mask {
	f.t.Helper()
	m, err := f.storage.Mask().CreateMask(f.t.Context(), model, color, packSize)
	require.NoError(f.t, err, "fixture mask %q should be created", model)
	return m
}

func (f *Fixtures) Listing(pharmacyID int64, maskID int64, price string) models.Listing {
	f.t.Helper()
	l, err := f.storage.Listing().CreateListing(f.t.Context(), pharmacyID, maskID, decimal.RequireFromString(price))
	require.NoError(f.t, err, "fixture listing should be created")
	return l
}

func (f *Fixtures) Price(pharmacyID int64, maskID int64, price string) models.Listing {
	f.t.Helper()
	l, err := f.storage.Listing().UpdatePrice(f.t.Context(), pharmacyID, maskID, decimal.RequireFromString(price))
	require.NoError(f.t, err, "fixture listing price should be updated")
	return l
}

func (f *Fixtures) Transaction(tr models.Transaction) models.Transaction {
	f.t.Helper()
	created, err := f.storage.Transaction().CreateTransaction(f.t.Context(), tr)
	require.NoError(f.t, err, "fixture transaction should be created")
	return created
}
