package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/medipay/internal/utils"
)

// Gateway result codes.
const (
	GatewayCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	GatewayCodeInvalidAccount      = "INVALID_ACCOUNT"
	GatewayCodeAccountBlocked      = "ACCOUNT_BLOCKED"
	GatewayCodeLimitExceeded       = "LIMIT_EXCEEDED"
	GatewayCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	GatewayCodeTimeout             = "TIMEOUT"
	GatewayCodeNetworkError        = "NETWORK_ERROR"
)

// GatewayResult is the gateway's answer to a charge or refund call.
type GatewayResult struct {
	Success       bool   `json:"success"`
	GatewayTxnID  string `json:"gateway_txn_id,omitempty"`
	MaskedContact string `json:"masked_contact,omitempty"`
	Code          string `json:"code,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// PaymentGateway is the contract to the external mobile-wallet
// processor. The simulator below is swappable for a real integration
// behind the same interface.
type PaymentGateway interface {
	Charge(ctx context.Context, contact string, amount decimal.Decimal, attemptCount int) (*GatewayResult, error)
	Refund(ctx context.Context, gatewayTxnID string, amount decimal.Decimal) (*GatewayResult, error)
}

// declineContacts maps reserved sandbox wallet numbers to fixed
// decline outcomes, the way wallet sandboxes publish test MSISDNs.
var declineContacts = map[string]struct {
	code   string
	reason string
}{
	"01700000001": {GatewayCodeInsufficientBalance, "wallet balance below charge amount"},
	"01700000002": {GatewayCodeInvalidAccount, "wallet account does not exist"},
	"01700000003": {GatewayCodeAccountBlocked, "wallet account is blocked by the operator"},
	"01700000004": {GatewayCodeLimitExceeded, "wallet monthly cash-out limit reached"},
	"01700000005": {GatewayCodeServiceUnavailable, "wallet service window closed"},
}

// WalletSimulator is a deterministic stand-in for a mobile-wallet
// gateway. Reserved contacts always decline with their mapped code;
// otherwise a small dice roll produces a transient timeout on the
// first attempt or a network fault on later attempts.
type WalletSimulator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	delay time.Duration

	timeoutChance float64
	networkChance float64
	refundChance  float64
}

// NewWalletSimulator builds a simulator with production-like fault
// rates. Pass a non-nil source to make the dice deterministic.
func NewWalletSimulator(src rand.Source) *WalletSimulator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &WalletSimulator{
		rng:           rand.New(src),
		delay:         150 * time.Millisecond,
		timeoutChance: 0.05,
		networkChance: 0.03,
		refundChance:  0.95,
	}
}

// Charge simulates a wallet debit. The synthetic delay is bounded and
// honors context cancellation.
func (g *WalletSimulator) Charge(ctx context.Context, contact string, amount decimal.Decimal, attemptCount int) (*GatewayResult, error) {
	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	contact = strings.TrimSpace(contact)
	if decline, ok := declineContacts[contact]; ok {
		return &GatewayResult{
			Success: false,
			Code:    decline.code,
			Reason:  decline.reason,
		}, nil
	}

	roll := g.roll()
	if attemptCount <= 1 {
		if roll < g.timeoutChance {
			return &GatewayResult{
				Success: false,
				Code:    GatewayCodeTimeout,
				Reason:  "no response from wallet within the processing window",
			}, nil
		}
	} else if roll < g.networkChance {
		return &GatewayResult{
			Success: false,
			Code:    GatewayCodeNetworkError,
			Reason:  "connection to wallet network dropped",
		}, nil
	}

	return &GatewayResult{
		Success:       true,
		GatewayTxnID:  g.newGatewayTxnID(),
		MaskedContact: utils.MaskPhone(contact),
	}, nil
}

// Refund simulates a wallet credit back to the payer. High but not
// guaranteed success rate.
func (g *WalletSimulator) Refund(ctx context.Context, gatewayTxnID string, amount decimal.Decimal) (*GatewayResult, error) {
	if err := g.sleep(ctx); err != nil {
		return nil, err
	}

	if g.roll() >= g.refundChance {
		log.Printf("[Gateway] simulated refund declined for %s", gatewayTxnID)
		return &GatewayResult{
			Success: false,
			Code:    GatewayCodeServiceUnavailable,
			Reason:  "wallet refund service rejected the request",
		}, nil
	}

	return &GatewayResult{
		Success:      true,
		GatewayTxnID: g.newGatewayTxnID(),
	}, nil
}

func (g *WalletSimulator) sleep(ctx context.Context) error {
	select {
	case <-time.After(g.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *WalletSimulator) roll() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *WalletSimulator) newGatewayTxnID() string {
	g.mu.Lock()
	n := g.rng.Int63n(1_000_000_0000)
	g.mu.Unlock()
	return fmt.Sprintf("MW%s%010d", time.Now().Format("060102"), n)
}
