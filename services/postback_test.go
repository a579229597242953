package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"offerwall-rewards-system/models"

	"github.com/gofiber/fiber/v2"
)

func newPostbackService(t *testing.T) (*PostbackService, *LedgerService) {
	t.Helper()
	db := setupTestDB(t)
	cfg := testConfig()
	ledger := NewLedgerService(db)
	referrals := NewReferralService(db, ledger, cfg)
	return NewPostbackService(db, ledger, referrals, cfg), ledger
}

func postbackApp(svc *PostbackService) *fiber.App {
	app := fiber.New()
	app.Get("/postback", svc.HandlePostback)
	return app
}

func doPostback(t *testing.T, app *fiber.App, query string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("GET", "/postback?"+query, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestPostbackCreditMath(t *testing.T) {
	svc, ledger := newPostbackService(t)
	createTestUser(t, svc.DB, "user-1")

	result, err := svc.Process("user-1", 2.00, "tx1", "1.2.3.4", "survey")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	// floor(2.00 * 1000 * 0.6) = 1200 to the user, 800 retained
	if result.PointsCredited != 1200 {
		t.Fatalf("points = %d, want 1200", result.PointsCredited)
	}
	if result.PlatformShare != 800 {
		t.Fatalf("platform share = %d, want 800", result.PlatformShare)
	}

	balance, _ := ledger.Balance("user-1")
	if balance != 1200 {
		t.Fatalf("balance = %d, want 1200", balance)
	}
}

func TestPostbackSignupScenario(t *testing.T) {
	// New user with signup bonus 50, postback payout=2.00 → 50 + 1200 = 1250.
	db := setupTestDB(t)
	cfg := testConfig()
	ledger := NewLedgerService(db)
	referrals := NewReferralService(db, ledger, cfg)
	users := NewUserService(db, ledger, referrals, cfg)
	svc := NewPostbackService(db, ledger, referrals, cfg)

	if _, err := users.EnsureUser("user-1", "9.9.9.9"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	if _, err := svc.Process("user-1", 2.00, "tx1", "1.2.3.4", ""); err != nil {
		t.Fatalf("process: %v", err)
	}
	balance, _ := ledger.Balance("user-1")
	if balance != 1250 {
		t.Fatalf("balance = %d, want 1250", balance)
	}

	// Replay mutates nothing and reports duplicate.
	result, err := svc.Process("user-1", 2.00, "tx1", "1.2.3.4", "")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("replay not flagged duplicate")
	}
	balance, _ = ledger.Balance("user-1")
	if balance != 1250 {
		t.Fatalf("balance after replay = %d, want 1250", balance)
	}

	var count int64
	db.Model(&models.Transaction{}).Where("id = ?", "tx1").Count(&count)
	if count != 1 {
		t.Fatalf("entries for tx1 = %d, want 1", count)
	}
}

func TestPostbackUnknownUser(t *testing.T) {
	svc, _ := newPostbackService(t)

	_, err := svc.Process("ghost", 1.00, "tx1", "", "")
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestPostbackTinyPayoutRejected(t *testing.T) {
	svc, _ := newPostbackService(t)
	createTestUser(t, svc.DB, "user-1")

	// floor(0.0005 * 1000 * 0.6) = 0 — nothing to credit.
	_, err := svc.Process("user-1", 0.0005, "tx1", "", "")
	if !errors.Is(err, models.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestPostbackEndpointAuthAndValidationOrder(t *testing.T) {
	svc, _ := newPostbackService(t)
	createTestUser(t, svc.DB, "user-1")
	app := postbackApp(svc)

	// 1. Bad secret wins over everything else.
	resp, _ := doPostback(t, app, "secret=wrong")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bad secret status = %d, want 403", resp.StatusCode)
	}

	// 2. Missing fields.
	resp, _ = doPostback(t, app, "secret=test-secret&user_id=user-1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields status = %d, want 400", resp.StatusCode)
	}

	// Malformed payout.
	resp, _ = doPostback(t, app, "secret=test-secret&user_id=user-1&transaction_id=tx1&payout=abc")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad payout status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doPostback(t, app, "secret=test-secret&user_id=user-1&transaction_id=tx1&payout=-1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative payout status = %d, want 400", resp.StatusCode)
	}

	// 4. Unknown user.
	resp, _ = doPostback(t, app, "secret=test-secret&user_id=ghost&transaction_id=tx1&payout=1.00")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown user status = %d, want 404", resp.StatusCode)
	}

	// Success, then replay answers 200 with already_processed.
	resp, body := doPostback(t, app, "secret=test-secret&user_id=user-1&transaction_id=tx1&payout=1.00")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("success = %d %v, want 200 ok", resp.StatusCode, body)
	}
	resp, body = doPostback(t, app, "secret=test-secret&user_id=user-1&transaction_id=tx1&payout=1.00")
	if resp.StatusCode != http.StatusOK || body["status"] != "already_processed" {
		t.Fatalf("replay = %d %v, want 200 already_processed", resp.StatusCode, body)
	}
}

func TestPostbackIPAllowList(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	cfg.PostbackAllowedIPs = []string{"10.0.0.1"}
	ledger := NewLedgerService(db)
	referrals := NewReferralService(db, ledger, cfg)
	svc := NewPostbackService(db, ledger, referrals, cfg)
	createTestUser(t, db, "user-1")
	app := postbackApp(svc)

	// The test connection's origin address is never 10.0.0.1.
	resp, _ := doPostback(t, app, "secret=test-secret&user_id=user-1&transaction_id=tx1&payout=1.00")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("allow-list miss status = %d, want 403", resp.StatusCode)
	}

	balance, _ := ledger.Balance("user-1")
	if balance != 0 {
		t.Fatalf("balance = %d, want 0 (no credit from disallowed origin)", balance)
	}
}

func TestPostbackSequentialUniqueTransactions(t *testing.T) {
	svc, ledger := newPostbackService(t)
	createTestUser(t, svc.DB, "user-1")

	for i := 0; i < 5; i++ {
		if _, err := svc.Process("user-1", 1.00, fmt.Sprintf("tx-%d", i), "", ""); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	balance, _ := ledger.Balance("user-1")
	if balance != 5*600 {
		t.Fatalf("balance = %d, want 3000", balance)
	}
}
