package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	testingutil "github.com/amirphl/kargo/testing"
	"github.com/amirphl/kargo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceCounterRepository(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewSequenceCounterRepository(testDB.DB)
		ctx := context.Background()

		t.Run("StartsAtOneAndIncrements", func(t *testing.T) {
			first, err := repo.Next(ctx, "QT-20260101")
			require.NoError(t, err)
			second, err := repo.Next(ctx, "QT-20260101")
			require.NoError(t, err)
			assert.Equal(t, int64(1), first)
			assert.Equal(t, int64(2), second)

			other, err := repo.Next(ctx, "PU-20260101")
			require.NoError(t, err)
			assert.Equal(t, int64(1), other)
		})

		t.Run("ConcurrentCallersGetDistinctValues", func(t *testing.T) {
			const workers = 20
			values := make(chan int64, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
						v, err := repo.Next(txCtx, "TRK-20260101")
						if err != nil {
							return err
						}
						values <- v
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			close(values)

			seen := make(map[int64]bool)
			for v := range values {
				assert.False(t, seen[v], "duplicate value %d", v)
				seen[v] = true
			}
			assert.Len(t, seen, workers)
		})

		t.Run("RolledBackIncrementIsReleased", func(t *testing.T) {
			err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				_, err := repo.Next(txCtx, "PR-20260101")
				require.NoError(t, err)
				return fmt.Errorf("abort")
			})
			require.Error(t, err)

			v, err := repo.Next(ctx, "PR-20260101")
			require.NoError(t, err)
			assert.Equal(t, int64(1), v)
		})
	})
}

func TestPricingConfigRepository(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewPricingConfigRepository(testDB.DB)
		ctx := context.Background()

		active, err := repo.Active(ctx)
		require.NoError(t, err)
		require.NotNil(t, active, "migration seeds version 1")
		assert.Equal(t, 1, active.Version)
		assert.Equal(t, 1.0, active.TransportMultipliers[models.TransportModeRoad])
		assert.False(t, active.UseVolumetricWeightPerMode[models.TransportModeSea])

		err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
			current, err := repo.LockActive(txCtx)
			if err != nil {
				return err
			}
			if err := repo.Deactivate(txCtx, current.ID); err != nil {
				return err
			}
			next := *current
			next.ID = 0
			next.Version = current.Version + 1
			next.IsActive = true
			return repo.Save(txCtx, &next)
		})
		require.NoError(t, err)

		active, err = repo.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, active.Version)

		latest, err := repo.LatestVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, latest)

		count, err := repo.Count(ctx, models.PricingConfigFilter{IsActive: utils.ToPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		_, err = repo.LockActive(ctx)
		assert.ErrorIs(t, err, repository.ErrNoTransaction)
	})
}

func TestTransportRateRepository(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewTransportRateRepository(testDB.DB)
		ctx := context.Background()

		err := repo.Upsert(ctx, []*models.TransportRate{
			{OriginCountry: "fr", DestinationCountry: "bf", TransportMode: models.TransportModeRoad, RatePerKg: 1200},
			{OriginCountry: "FR", DestinationCountry: "BF", TransportMode: models.TransportModeAir, RatePerKg: 4500},
		})
		require.NoError(t, err)

		err = repo.Upsert(ctx, []*models.TransportRate{
			{OriginCountry: "FR", DestinationCountry: "BF", TransportMode: models.TransportModeRoad, RatePerKg: 1300, IsActive: utils.ToPtr(true)},
		})
		require.NoError(t, err)

		road, err := repo.ByKey(ctx, models.RateKey{OriginCountry: "FR", DestinationCountry: "BF", TransportMode: models.TransportModeRoad})
		require.NoError(t, err)
		require.NotNil(t, road)
		assert.Equal(t, 1300.0, road.RatePerKg)

		require.NoError(t, repo.SetActive(ctx, road.ID, false))
		rates, err := repo.ActiveForRoute(ctx, "FR", "BF")
		require.NoError(t, err)
		require.Len(t, rates, 1)
		assert.Equal(t, models.TransportModeAir, rates[0].TransportMode)

		missing, err := repo.ByKey(ctx, models.RateKey{OriginCountry: "FR", DestinationCountry: "ML", TransportMode: models.TransportModeSea})
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestQuoteAndShipmentRepositories(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		quotes := repository.NewQuoteRepository(testDB.DB)
		shipments := repository.NewShipmentRepository(testDB.DB)
		ctx := context.Background()

		client, err := fixtures.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		quote, err := fixtures.CreateTestQuote(client, models.QuoteStatusSent)
		require.NoError(t, err)

		t.Run("ByUUIDRoundTripsArrayAndJSON", func(t *testing.T) {
			found, err := quotes.ByUUID(ctx, quote.UUID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, []models.TransportMode{models.TransportModeRoad}, found.Modes())
			require.Len(t, found.Packages, 1)
			assert.Equal(t, 2, found.Packages[0].Quantity)
		})

		t.Run("LockRequiresTransaction", func(t *testing.T) {
			_, err := quotes.LockByUUID(ctx, quote.UUID)
			assert.ErrorIs(t, err, repository.ErrNoTransaction)

			err = repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
				locked, err := quotes.LockByUUID(txCtx, quote.UUID)
				require.NoError(t, err)
				require.NotNil(t, locked)
				locked.Status = models.QuoteStatusAccepted
				return quotes.Update(txCtx, locked)
			})
			require.NoError(t, err)

			reloaded, err := quotes.ByID(ctx, quote.ID)
			require.NoError(t, err)
			assert.Equal(t, models.QuoteStatusAccepted, reloaded.Status)
		})

		t.Run("OneShipmentPerQuote", func(t *testing.T) {
			_, err := fixtures.CreateTestShipment(quote, models.ShipmentStatusRegistered, "TRK-20260101-00001")
			require.NoError(t, err)
			_, err = fixtures.CreateTestShipment(quote, models.ShipmentStatusRegistered, "TRK-20260101-00002")
			assert.Error(t, err)

			found, err := shipments.ByTrackingNumber(ctx, "TRK-20260101-00001")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, quote.ID, found.QuoteID)

			byQuote, err := shipments.ByQuoteID(ctx, quote.ID)
			require.NoError(t, err)
			assert.Equal(t, found.ID, byQuote.ID)
		})

		t.Run("FilterByClient", func(t *testing.T) {
			rows, err := quotes.ByFilter(ctx, models.QuoteFilter{ClientID: &client.ID}, "", 10, 0)
			require.NoError(t, err)
			assert.Len(t, rows, 1)

			exists, err := quotes.Exists(ctx, models.QuoteFilter{Status: utils.ToPtr(models.QuoteStatusValidated)})
			require.NoError(t, err)
			assert.False(t, exists)
		})
	})
}

func TestStatusHistoryIsAppendOnly(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewStatusHistoryRepository(testDB.DB)
		ctx := context.Background()

		entry := &models.StatusHistory{
			EntityType: models.EntityTypeQuote,
			EntityID:   42,
			Action:     string(models.QuoteActionCancel),
			OldStatus:  string(models.QuoteStatusSent),
			NewStatus:  string(models.QuoteStatusCancelled),
		}
		require.NoError(t, repo.Save(ctx, entry))

		err := testDB.DB.Model(&models.StatusHistory{}).Where("id = ?", entry.ID).Update("new_status", "SENT").Error
		assert.Error(t, err)

		err = testDB.DB.Delete(&models.StatusHistory{}, entry.ID).Error
		assert.Error(t, err)

		rows, err := repo.ListByEntity(ctx, models.EntityTypeQuote, 42)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "CANCELLED", rows[0].NewStatus)
	})
}

func TestProspectRepository(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fixtures := testingutil.NewTestFixtures(testDB)
		prospects := repository.NewProspectRepository(testDB.DB)
		pickups := repository.NewPickupRequestRepository(testDB.DB)
		ctx := context.Background()

		byEmail, err := fixtures.CreateTestProspect("Guest@Example.com", "")
		require.NoError(t, err)
		byPhone, err := fixtures.CreateTestProspect("", "+226 70 11 22 33")
		require.NoError(t, err)
		_, err = fixtures.CreateTestProspect("someone-else@example.com", "")
		require.NoError(t, err)

		matches, err := prospects.ListUnconvertedByContact(ctx, utils.ToPtr("guest@example.com"), utils.ToPtr("+22670112233"))
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, byEmail.ID, matches[0].ID)
		assert.Equal(t, byPhone.ID, matches[1].ID)

		none, err := prospects.ByContact(ctx, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, none)

		user, err := fixtures.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		_, err = fixtures.CreateTestPickupRequest(nil, &byEmail.ID, models.PickupStatusRequested)
		require.NoError(t, err)

		attached, err := pickups.AttachProspectsToUser(ctx, []uint{byEmail.ID, byPhone.ID}, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), attached)

		owned, err := pickups.ByFilter(ctx, models.PickupRequestFilter{UserID: &user.ID}, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, owned, 1)
	})
}
