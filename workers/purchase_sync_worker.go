package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"music-access-system/models"
	"music-access-system/services"
	"music-access-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompletedOrder matches the payment service's JSON for a finished checkout.
// Signature verification happened on the payment side; by the time an order
// shows up here it is settled.
type CompletedOrder struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	ContentID   string    `json:"content_id"`
	ContentType string    `json:"content_type"`
	AmountCents int64     `json:"amount_cents"`
	CompletedAt time.Time `json:"completed_at"`
}

// maxOrderAttempts bounds how often a failing order is retried before it is
// dropped, so one poison order cannot pin the sync window forever.
const maxOrderAttempts = 5

// PurchaseSyncClient polls the payment service and turns completed checkouts
// into purchase records.
type PurchaseSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
	Revenue    *services.RevenueService
	Referrals  *services.ReferralService

	// per-order failure counts; only touched from the poll goroutine
	orderFailures map[string]int
}

func NewPurchaseSyncClient(db *gorm.DB, revenue *services.RevenueService, referrals *services.ReferralService) *PurchaseSyncClient {
	baseURL := os.Getenv("PAYMENT_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("PAYMENT_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("MUSIC_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("MUSIC_SERVICE_TOKEN environment variable is required for purchase sync")
	}

	return &PurchaseSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: utils.HTTPClient,
		DB:         db,
		Revenue:    revenue,
		Referrals:  referrals,
	}
}

func (c *PurchaseSyncClient) GetCompletedOrders(ctx context.Context, since time.Time) ([]CompletedOrder, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/internal/orders", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("status", "completed")
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("payment service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Orders []CompletedOrder `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode payment service response: %w", err)
	}

	return response.Orders, nil
}

// RecordOrder turns one completed checkout into an immutable purchase row,
// with the revenue split captured at record time, and accrues purchase
// points. Both writes are idempotent (unique order id / ledger dedup key), so
// re-polling the same window is harmless.
func (c *PurchaseSyncClient) RecordOrder(order CompletedOrder) error {
	if order.UserID == "" || order.ContentID == "" || !models.ValidContentType(order.ContentType) {
		return fmt.Errorf("malformed order %s", order.OrderID)
	}

	var content models.Content
	if err := c.DB.Where("id = ?", order.ContentID).First(&content).Error; err != nil {
		return fmt.Errorf("content %s not found for order %s: %w", order.ContentID, order.OrderID, err)
	}

	split := c.Revenue.Split(content.DJID, order.AmountCents)

	purchase := models.Purchase{
		ID:                  uuid.NewString(),
		UserID:              order.UserID,
		ContentType:         order.ContentType,
		ContentID:           order.ContentID,
		ExternalOrderID:     order.OrderID,
		AmountCents:         order.AmountCents,
		DJAmountCents:       split.DJAmountCents,
		PlatformAmountCents: split.PlatformAmountCents,
		DJSharePct:          split.DJSharePct,
	}
	if err := c.DB.Create(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil // already recorded in a previous poll
		}
		return err
	}

	// 1 point per whole currency unit spent.
	if points := order.AmountCents / 100; points > 0 {
		key := "purchase:" + order.OrderID
		if err := c.Referrals.CreditPoints(order.UserID, points, models.PointsReasonPurchase, &key); err != nil {
			log.Printf("⚠️ Failed to accrue purchase points for order %s: %v", order.OrderID, err)
		}
	}

	return nil
}

// recordBatch records each order and returns how many failed with retries
// left. Orders still failing at maxOrderAttempts are logged and dropped; the
// window may then advance past them.
func (c *PurchaseSyncClient) recordBatch(orders []CompletedOrder) int {
	if c.orderFailures == nil {
		c.orderFailures = make(map[string]int)
	}

	failed := 0
	for _, order := range orders {
		err := c.RecordOrder(order)
		if err == nil {
			delete(c.orderFailures, order.OrderID)
			continue
		}

		c.orderFailures[order.OrderID]++
		if c.orderFailures[order.OrderID] >= maxOrderAttempts {
			log.Printf("❌ Dropping order %s after %d failed attempts: %v", order.OrderID, c.orderFailures[order.OrderID], err)
			delete(c.orderFailures, order.OrderID)
			continue
		}
		failed++
		log.Printf("❌ Failed to record order %s: %v", order.OrderID, err)
	}
	return failed
}

// PollPurchases drives the sync loop until ctx is cancelled.
func PollPurchases(ctx context.Context, client *PurchaseSyncClient, pollInterval time.Duration) {
	log.Println("Starting purchase polling (payment service → purchases)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Purchase polling stopped.")
			return
		case <-ticker.C:
			logTime := time.Now().UTC()

			orders, err := client.GetCompletedOrders(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling completed orders: %v", err)
				continue
			}

			if len(orders) == 0 {
				continue
			}
			log.Printf("📥 Received %d completed order(s) from payment service.", len(orders))

			if failed := client.recordBatch(orders); failed > 0 {
				// Do NOT advance lastSyncTime: retry the same window next
				// tick, idempotent writes absorb the replay.
				continue
			}

			lastSyncTime = logTime
			log.Printf("✅ Recorded %d purchase(s).", len(orders))
		}
	}
}
