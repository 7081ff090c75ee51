package businessflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/kargo/app/dto"
	"github.com/amirphl/kargo/app/services"
	"github.com/amirphl/kargo/models"
	"github.com/amirphl/kargo/repository"
	testingutil "github.com/amirphl/kargo/testing"
	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestQuoteFlow(db *gorm.DB) QuoteFlow {
	return newTestQuoteFlowWithShipments(db, repository.NewShipmentRepository(db))
}

func newTestQuoteFlowWithShipments(db *gorm.DB, shipments repository.ShipmentRepository) QuoteFlow {
	return NewQuoteFlow(
		repository.NewQuoteRepository(db),
		shipments,
		repository.NewTransportRateRepository(db),
		repository.NewStatusHistoryRepository(db),
		repository.NewAuditLogRepository(db),
		repository.NewUserRepository(db),
		nil,
		NewSequenceGenerator(repository.NewSequenceCounterRepository(db)),
		nil,
		db,
		0,
	)
}

func actorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, CompanyID: u.CompanyID}
}

func TestQuoteCancelThenAcceptConflicts(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fx := testingutil.NewTestFixtures(testDB)
		client, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		ops, err := fx.CreateTestUser(models.RoleOperationsManager)
		require.NoError(t, err)
		quote, err := fx.CreateTestQuote(client, models.QuoteStatusSent)
		require.NoError(t, err)

		flow := newTestQuoteFlow(testDB.DB)
		ctx := context.Background()

		cancelled, err := flow.CancelQuote(ctx, actorOf(ops), quote.UUID, &dto.ReasonRequest{Reason: "client changed carrier"}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.QuoteStatusCancelled), cancelled.Status)
		assert.Empty(t, cancelled.AvailableActions)

		_, err = flow.AcceptQuote(ctx, actorOf(client), quote.UUID, &dto.AcceptQuoteRequest{PaymentMethod: "CASH"}, nil)
		require.Error(t, err)
		var conflict *StateConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, string(models.QuoteStatusCancelled), conflict.CurrentStatus)
		assert.Equal(t, "accept", conflict.Action)

		history, err := flow.GetQuoteHistory(ctx, actorOf(ops), quote.UUID)
		require.NoError(t, err)
		require.Len(t, history.Items, 1)
		assert.Equal(t, "cancel", history.Items[0].Action)
		assert.Equal(t, string(models.QuoteStatusSent), history.Items[0].OldStatus)
		assert.Equal(t, string(models.QuoteStatusCancelled), history.Items[0].NewStatus)
	})
}

func TestQuoteAcceptReplayIsIdempotent(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fx := testingutil.NewTestFixtures(testDB)
		client, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		quote, err := fx.CreateTestQuote(client, models.QuoteStatusSent)
		require.NoError(t, err)

		flow := newTestQuoteFlow(testDB.DB)
		ctx := context.Background()
		req := &dto.AcceptQuoteRequest{PaymentMethod: "BANK_TRANSFER"}

		first, err := flow.AcceptQuote(ctx, actorOf(client), quote.UUID, req, nil)
		require.NoError(t, err)
		second, err := flow.AcceptQuote(ctx, actorOf(client), quote.UUID, req, nil)
		require.NoError(t, err)
		assert.Equal(t, first.Status, second.Status)

		count, err := repository.NewStatusHistoryRepository(testDB.DB).CountByEntity(ctx, models.EntityTypeQuote, quote.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		_, err = flow.AcceptQuote(ctx, actorOf(client), quote.UUID, &dto.AcceptQuoteRequest{PaymentMethod: "CASH"}, nil)
		assert.True(t, IsStateConflict(err))
	})
}

func TestQuoteActionsRejectForeignClient(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fx := testingutil.NewTestFixtures(testDB)
		owner, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		other, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		quote, err := fx.CreateTestQuote(owner, models.QuoteStatusSent)
		require.NoError(t, err)

		flow := newTestQuoteFlow(testDB.DB)
		_, err = flow.AcceptQuote(context.Background(), actorOf(other), quote.UUID, &dto.AcceptQuoteRequest{PaymentMethod: "CASH"}, nil)
		assert.True(t, IsForbidden(err))

		reloaded, err := repository.NewQuoteRepository(testDB.DB).ByUUID(context.Background(), quote.UUID)
		require.NoError(t, err)
		assert.Equal(t, models.QuoteStatusSent, reloaded.Status)
	})
}

func TestValidateCreatesExactlyOneShipment(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fx := testingutil.NewTestFixtures(testDB)
		client, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		admin, err := fx.CreateTestUser(models.RoleAdmin)
		require.NoError(t, err)
		quote, err := fx.CreateTestQuote(client, models.QuoteStatusInTreatment)
		require.NoError(t, err)

		flow := newTestQuoteFlow(testDB.DB)
		ctx := context.Background()
		req := &dto.ValidateQuoteRequest{PackageCount: 2, CargoDescription: utils.ToPtr("two cartons")}

		const callers = 4
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := flow.ValidateQuote(ctx, actorOf(admin), quote.UUID, req, nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case IsStateConflict(err):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, callers-1, conflicts)

		shipments, err := repository.NewShipmentRepository(testDB.DB).Count(ctx, models.ShipmentFilter{QuoteID: &quote.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), shipments)

		view, err := flow.GetQuote(ctx, actorOf(client), quote.UUID)
		require.NoError(t, err)
		require.NotNil(t, view.ShipmentTrackingNumber)
		_, err = NormalizeTrackingNumber(*view.ShipmentTrackingNumber)
		assert.NoError(t, err)
	})
}

// failingShipmentRepository refuses to persist shipments
type failingShipmentRepository struct {
	repository.ShipmentRepository
}

func (failingShipmentRepository) Save(context.Context, *models.Shipment) error {
	return errors.New("disk full")
}

func TestValidateRollsBackWhenShipmentCannotBeSaved(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fx := testingutil.NewTestFixtures(testDB)
		client, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		admin, err := fx.CreateTestUser(models.RoleAdmin)
		require.NoError(t, err)
		quote, err := fx.CreateTestQuote(client, models.QuoteStatusInTreatment)
		require.NoError(t, err)

		ctx := context.Background()
		shipments := repository.NewShipmentRepository(testDB.DB)
		flow := newTestQuoteFlowWithShipments(testDB.DB, failingShipmentRepository{shipments})

		_, err = flow.ValidateQuote(ctx, actorOf(admin), quote.UUID, &dto.ValidateQuoteRequest{PackageCount: 2}, nil)
		require.Error(t, err)
		var be *BusinessError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, "SHIPMENT_CREATE_FAILED", be.Code)

		reloaded, err := repository.NewQuoteRepository(testDB.DB).ByUUID(ctx, quote.UUID)
		require.NoError(t, err)
		assert.Equal(t, models.QuoteStatusInTreatment, reloaded.Status)
		assert.Nil(t, reloaded.ValidatedAt)

		count, err := repository.NewStatusHistoryRepository(testDB.DB).CountByEntity(ctx, models.EntityTypeQuote, quote.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		created, err := shipments.Count(ctx, models.ShipmentFilter{QuoteID: &quote.ID})
		require.NoError(t, err)
		assert.Zero(t, created)
	})
}

func TestQuotePrechecksBlockTransitions(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		fx := testingutil.NewTestFixtures(testDB)
		client, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		ops, err := fx.CreateTestUser(models.RoleOperationsManager)
		require.NoError(t, err)

		ctx := context.Background()
		flow := newTestQuoteFlow(testDB.DB)
		history := repository.NewStatusHistoryRepository(testDB.DB)
		quotes := repository.NewQuoteRepository(testDB.DB)

		t.Run("accept after validity elapsed", func(t *testing.T) {
			quote, err := fx.CreateTestQuote(client, models.QuoteStatusSent)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(&models.Quote{}).Where("id = ?", quote.ID).
				Update("valid_until", utils.UTCNow().Add(-time.Hour)).Error)

			_, err = flow.AcceptQuote(ctx, actorOf(client), quote.UUID, &dto.AcceptQuoteRequest{PaymentMethod: "CASH"}, nil)
			var conflict *StateConflictError
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, string(models.QuoteStatusSent), conflict.CurrentStatus)

			reloaded, err := quotes.ByUUID(ctx, quote.UUID)
			require.NoError(t, err)
			assert.Equal(t, models.QuoteStatusSent, reloaded.Status)
			assert.Nil(t, reloaded.PaymentMethod)
			count, err := history.CountByEntity(ctx, models.EntityTypeQuote, quote.ID)
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		t.Run("start treatment without payment method", func(t *testing.T) {
			quote, err := fx.CreateTestQuote(client, models.QuoteStatusAccepted)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(&models.Quote{}).Where("id = ?", quote.ID).
				Update("payment_method", gorm.Expr("NULL")).Error)

			_, err = flow.StartTreatment(ctx, actorOf(ops), quote.UUID, &dto.StartTreatmentRequest{}, nil)
			assert.True(t, IsStateConflict(err))

			reloaded, err := quotes.ByUUID(ctx, quote.UUID)
			require.NoError(t, err)
			assert.Equal(t, models.QuoteStatusAccepted, reloaded.Status)
			count, err := history.CountByEntity(ctx, models.EntityTypeQuote, quote.ID)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	})
}

func TestHeldShipmentIsTrackableOnlyAfterPublish(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		db := testDB.DB
		fx := testingutil.NewTestFixtures(testDB)
		client, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)
		admin, err := fx.CreateTestUser(models.RoleAdmin)
		require.NoError(t, err)
		quote, err := fx.CreateTestQuote(client, models.QuoteStatusInTreatment)
		require.NoError(t, err)

		ctx := context.Background()
		validated, err := newTestQuoteFlow(db).ValidateQuote(ctx, actorOf(admin), quote.UUID,
			&dto.ValidateQuoteRequest{PackageCount: 1, HoldUnpublished: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.QuoteStatusValidated), validated.Quote.Status)
		assert.Equal(t, string(models.ShipmentStatusDraft), validated.Shipment.Status)

		shipmentRepo := repository.NewShipmentRepository(db)
		eventRepo := repository.NewTrackingEventRepository(db)
		tracking := NewTrackingFlow(shipmentRepo, eventRepo)
		number := validated.Shipment.TrackingNumber

		view, err := tracking.TrackShipment(ctx, number, "en")
		require.NoError(t, err)
		assert.Nil(t, view)

		shipments := NewShipmentFlow(
			shipmentRepo,
			eventRepo,
			repository.NewQuoteRepository(db),
			repository.NewStatusHistoryRepository(db),
			repository.NewAuditLogRepository(db),
			repository.NewUserRepository(db),
			nil,
			db,
		)
		shipmentUUID, err := uuid.Parse(validated.Shipment.UUID)
		require.NoError(t, err)
		published, err := shipments.TransitionShipment(ctx, actorOf(admin), shipmentUUID, &dto.ShipmentTransitionRequest{Action: "publish"}, nil)
		require.NoError(t, err)
		assert.Equal(t, string(models.ShipmentStatusRegistered), published.Status)

		view, err = tracking.TrackShipment(ctx, number, "en")
		require.NoError(t, err)
		require.NotNil(t, view)
		assert.Equal(t, string(models.ShipmentStatusRegistered), view.Status)
	})
}

func TestGuestWithAccountEmailIsClaimedOnRefresh(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		db := testDB.DB
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(testDB)

		client, err := fx.CreateTestUser(models.RoleClient)
		require.NoError(t, err)

		prospects := &ProspectFlowImpl{prospectRepo: repository.NewProspectRepository(db)}
		prospectID, err := prospects.prospectFor(ctx, dto.ContactDetails{
			ContactName:  "Someone Else",
			ContactEmail: utils.ToPtr(client.Email),
			ContactPhone: "+22675555555",
		})
		require.NoError(t, err)
		require.NotNil(t, prospectID)
		request, err := fx.CreateTestPickupRequest(nil, prospectID, models.PickupStatusRequested)
		require.NoError(t, err)

		pickupRepo := repository.NewPickupRequestRepository(db)
		filed, err := pickupRepo.ByUUID(ctx, request.UUID)
		require.NoError(t, err)
		assert.Nil(t, filed.UserID, "a guest is never filed straight under an account")

		tokens, err := services.NewTokenService(time.Hour, 24*time.Hour, time.Hour, "kargo", "kargo-api", false, "", "", "0123456789abcdef0123456789abcdef")
		require.NoError(t, err)
		_, refresh, err := tokens.GenerateTokens(services.ActorSubject{UserID: client.ID, Role: string(client.Role)})
		require.NoError(t, err)

		users := NewUserFlow(
			repository.NewUserRepository(db),
			repository.NewProspectRepository(db),
			pickupRepo,
			repository.NewPurchaseRequestRepository(db),
			repository.NewAuditLogRepository(db),
			tokens,
			db,
		)
		_, err = users.RefreshSession(ctx, &dto.RefreshTokenRequest{RefreshToken: refresh})
		require.NoError(t, err)

		claimed, err := pickupRepo.ByUUID(ctx, request.UUID)
		require.NoError(t, err)
		require.NotNil(t, claimed.UserID)
		assert.Equal(t, client.ID, *claimed.UserID)
	})
}

func TestGuestSubmissionIsAttachedOnRegistration(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		db := testDB.DB
		ctx := context.Background()
		fx := testingutil.NewTestFixtures(testDB)

		prospect, err := fx.CreateTestProspect("guest@example.com", "+22670000001")
		require.NoError(t, err)
		_, err = fx.CreateTestPickupRequest(nil, &prospect.ID, models.PickupStatusRequested)
		require.NoError(t, err)
		// same phone, different prospect row
		twin, err := fx.CreateTestProspect("", "+22670000001")
		require.NoError(t, err)
		_, err = fx.CreateTestPickupRequest(nil, &twin.ID, models.PickupStatusRequested)
		require.NoError(t, err)

		admin, err := fx.CreateTestUser(models.RoleAdmin)
		require.NoError(t, err)

		users := NewUserFlow(
			repository.NewUserRepository(db),
			repository.NewProspectRepository(db),
			repository.NewPickupRequestRepository(db),
			repository.NewPurchaseRequestRepository(db),
			repository.NewAuditLogRepository(db),
			nil,
			db,
		)
		resp, err := users.CreateUser(ctx, actorOf(admin), &dto.CreateUserRequest{
			Email:    "Guest@Example.com",
			FullName: "Moussa Traore",
			Phone:    utils.ToPtr("+226 70 00 00 01"),
			Role:     "CLIENT",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "guest@example.com", resp.User.Email)
		assert.Equal(t, int64(2), resp.AttachedPickupRequests)

		converted, err := repository.NewProspectRepository(db).ByUUID(ctx, twin.UUID)
		require.NoError(t, err)
		assert.True(t, converted.IsConverted())

		_, err = users.CreateUser(ctx, actorOf(admin), &dto.CreateUserRequest{
			Email: "guest@example.com", FullName: "Again", Role: "CLIENT",
		}, nil)
		assert.ErrorIs(t, err, ErrEmailAlreadyExists)
	})
}
