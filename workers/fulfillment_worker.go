package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"offerwall-rewards-system/models"
	"offerwall-rewards-system/services"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FulfillmentClient delivers approved withdrawals to the gift-card provider.
// It holds no ledger locks: the withdrawal row is claimed first (guarded
// status flip), the outbound call happens unlocked, and the outcome is a new
// state transition — completed, or failed with a compensating refund.
type FulfillmentClient struct {
	BaseURL     string
	Token       string
	HTTPClient  *http.Client
	Withdrawals *services.WithdrawalService
}

func NewFulfillmentClient(withdrawals *services.WithdrawalService, cfg services.Config) *FulfillmentClient {
	return &FulfillmentClient{
		BaseURL:     cfg.FulfillmentURL,
		Token:       cfg.FulfillmentToken,
		Withdrawals: withdrawals,
		HTTPClient: &http.Client{
			Timeout: cfg.FulfillmentTimeout,
		},
	}
}

type fulfillmentRequest struct {
	WithdrawalID string  `json:"withdrawal_id"`
	UserID       string  `json:"user_id"`
	RewardName   string  `json:"reward_name"`
	DeliveryInfo *string `json:"delivery_info,omitempty"`
	Note         string  `json:"note"`
}

// Deliver sends one claimed withdrawal to the provider. A non-2xx answer or
// a timeout fails closed: the withdrawal is marked failed and the points go
// back to the user as a fresh ledger entry.
func (c *FulfillmentClient) Deliver(ctx context.Context, w models.Withdrawal) error {
	printer := message.NewPrinter(language.English)
	payload := fulfillmentRequest{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		RewardName:   w.RewardName,
		DeliveryInfo: w.DeliveryInfo,
		Note:         printer.Sprintf("Redemption of %d points for %s", w.PointsSpent, w.RewardName),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal fulfillment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/fulfillments", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call fulfillment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// PollWithdrawals claims pending withdrawals in batches and pushes each one
// through the provider.
func PollWithdrawals(ctx context.Context, client *FulfillmentClient, pollInterval time.Duration) {
	log.Println("Starting withdrawal fulfillment polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Withdrawal fulfillment polling stopped.")
			return
		case <-ticker.C:
			claimed, err := client.Withdrawals.ClaimPending(20)
			if err != nil {
				log.Printf("❌ Error claiming pending withdrawals: %v", err)
				continue
			}
			if len(claimed) == 0 {
				continue
			}
			log.Printf("📤 Claimed %d withdrawal(s) for fulfillment.", len(claimed))

			for _, w := range claimed {
				if err := client.Deliver(ctx, w); err != nil {
					log.Printf("❌ Fulfillment failed for %s: %v", w.ID, err)
					if abortErr := client.Withdrawals.Abort(w.ID, models.WithdrawalProcessing, models.WithdrawalFailed, "provider delivery failed"); abortErr != nil {
						log.Printf("❌ Refund after failed fulfillment %s also failed: %v", w.ID, abortErr)
					}
					continue
				}
				if err := client.Withdrawals.Complete(w.ID); err != nil {
					log.Printf("❌ Failed to mark %s completed: %v", w.ID, err)
					continue
				}
				log.Printf("✅ Fulfilled withdrawal %s (%s for %s)", w.ID, w.RewardName, w.UserID)
			}
		}
	}
}
