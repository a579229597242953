package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"offerwall-rewards-system/models"
	"offerwall-rewards-system/services"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupWorkerFixture(t *testing.T, providerURL string) (*FulfillmentClient, *services.LedgerService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Transaction{}, &models.Withdrawal{}, &models.Reward{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := services.Config{
		FulfillmentURL:     providerURL,
		FulfillmentToken:   "svc-token",
		FulfillmentTimeout: 5 * time.Second,
	}
	ledger := services.NewLedgerService(db)
	withdrawals := services.NewWithdrawalService(db, ledger, cfg)
	return NewFulfillmentClient(withdrawals, cfg), ledger, db
}

func seedProcessingWithdrawal(t *testing.T, db *gorm.DB, ledger *services.LedgerService) models.Withdrawal {
	t.Helper()
	if err := db.Create(&models.User{ID: "user-1"}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := ledger.Credit("user-1", 500, models.SourceOfferNetwork, "offer", nil, ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Debit("user-1", 100, models.SourceWithdrawal, "redeem"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	w := models.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      "user-1",
		RewardID:    uuid.NewString(),
		RewardName:  "Gift Card",
		PointsSpent: 100,
		Status:      models.WithdrawalProcessing,
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("create withdrawal: %v", err)
	}
	return w
}

func TestDeliverSendsFormattedNote(t *testing.T) {
	var got fulfillmentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Service-Token") != "svc-token" {
			t.Errorf("missing service token header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, ledger, db := setupWorkerFixture(t, srv.URL)
	w := seedProcessingWithdrawal(t, db, ledger)
	w.PointsSpent = 12500

	if err := client.Deliver(context.Background(), w); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.WithdrawalID != w.ID {
		t.Fatalf("withdrawal id = %q, want %q", got.WithdrawalID, w.ID)
	}
	if got.Note != "Redemption of 12,500 points for Gift Card" {
		t.Fatalf("note = %q", got.Note)
	}
}

func TestDeliverFailsClosedOnProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of inventory", http.StatusConflict)
	}))
	defer srv.Close()

	client, ledger, db := setupWorkerFixture(t, srv.URL)
	w := seedProcessingWithdrawal(t, db, ledger)

	if err := client.Deliver(context.Background(), w); err == nil {
		t.Fatal("deliver succeeded against failing provider")
	}

	// The worker loop reacts by aborting with a refund.
	if err := client.Withdrawals.Abort(w.ID, models.WithdrawalProcessing, models.WithdrawalFailed, "provider delivery failed"); err != nil {
		t.Fatalf("abort: %v", err)
	}
	balance, err := ledger.Balance("user-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 500 {
		t.Fatalf("balance = %d, want 500 after refund", balance)
	}
	var final models.Withdrawal
	db.First(&final, "id = ?", w.ID)
	if final.Status != models.WithdrawalFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
}
