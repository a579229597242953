package services

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the reward-economy constants and partner credentials. It is
// built once at startup from the environment and never mutated afterwards.
type Config struct {
	// Postback economy: credited points = floor(payout * PointsPerUnit * UserSplit).
	PointsPerUnit float64
	UserSplit     float64

	// Referral program.
	ReferralThreshold  int64
	ReferralBonus      int64
	CommissionRate     float64
	SignupBonus        int64
	WithdrawalCooldown time.Duration

	// Partner postback authentication.
	PostbackSecret     string
	PostbackAllowedIPs []string // empty = no allow-list

	// Withdrawal fulfillment provider.
	FulfillmentURL     string
	FulfillmentToken   string
	PendingMaxAge      time.Duration
	FulfillmentTimeout time.Duration
}

// LoadConfig reads the environment with the documented defaults. Only the
// postback secret is mandatory — the service cannot credit money on the word
// of an unauthenticated partner.
func LoadConfig() Config {
	cfg := Config{
		PointsPerUnit:      envFloat("POINTS_PER_UNIT", 1000),
		UserSplit:          envFloat("USER_SPLIT", 0.6),
		ReferralThreshold:  envInt("REFERRAL_THRESHOLD", 500),
		ReferralBonus:      envInt("REFERRAL_BONUS", 50),
		CommissionRate:     envFloat("REFERRAL_COMMISSION_RATE", 0.05),
		SignupBonus:        envInt("SIGNUP_BONUS", 50),
		WithdrawalCooldown: time.Duration(envInt("WITHDRAWAL_COOLDOWN_DAYS", 7)) * 24 * time.Hour,
		PostbackSecret:     os.Getenv("POSTBACK_SECRET"),
		FulfillmentURL:     os.Getenv("FULFILLMENT_URL"),
		FulfillmentToken:   os.Getenv("FULFILLMENT_TOKEN"),
		PendingMaxAge:      time.Duration(envInt("WITHDRAWAL_PENDING_MAX_AGE_HOURS", 72)) * time.Hour,
		FulfillmentTimeout: time.Duration(envInt("FULFILLMENT_TIMEOUT_SECONDS", 15)) * time.Second,
	}

	if raw := os.Getenv("POSTBACK_ALLOWED_IPS"); raw != "" {
		for _, ip := range strings.Split(raw, ",") {
			ip = strings.TrimSpace(ip)
			if ip != "" {
				cfg.PostbackAllowedIPs = append(cfg.PostbackAllowedIPs, ip)
			}
		}
	}

	return cfg
}

func envInt(key string, def int64) int64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}
