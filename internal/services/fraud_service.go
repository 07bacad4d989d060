package services

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/medipay/internal/models"
)

// Risk levels, ascending.
const (
	RiskMinimal  = "MINIMAL"
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// Recommendation actions.
const (
	ActionAllow     = "ALLOW"
	ActionMonitor   = "MONITOR"
	ActionChallenge = "CHALLENGE"
	ActionBlock     = "BLOCK"
)

// Fraud flags.
const (
	FlagLargeAmount        = "LARGE_AMOUNT"
	FlagAboveAverageAmount = "ABOVE_AVERAGE_AMOUNT"
	FlagHighFrequency      = "HIGH_FREQUENCY"
	FlagRapidFire          = "RAPID_FIRE"
	FlagMultipleFailed     = "MULTIPLE_FAILED_ATTEMPTS"
	FlagSuspiciousOrigin   = "SUSPICIOUS_ORIGIN"
	FlagNewDevice          = "NEW_DEVICE"
	FlagUnusualLocation    = "UNUSUAL_LOCATION"
	FlagUnusualTime        = "UNUSUAL_TIME"
)

// FraudRules holds every tunable weight and threshold of the engine.
// Weights and level thresholds are independent fields so tuning one
// never implies re-deriving the other.
type FraudRules struct {
	LargeAmountThreshold decimal.Decimal `json:"large_amount_threshold"`
	LargeAmountWeight    int             `json:"large_amount_weight"`

	AverageMultiplier  decimal.Decimal `json:"average_multiplier"`
	AboveAverageWeight int             `json:"above_average_weight"`

	HourlyMaxTransactions int `json:"hourly_max_transactions"`
	HourlyWeight          int `json:"hourly_weight"`
	BurstMaxTransactions  int `json:"burst_max_transactions"`
	BurstWeight           int `json:"burst_weight"`

	FailedMaxAttempts int `json:"failed_max_attempts"`
	FailedWeight      int `json:"failed_weight"`

	SuspiciousOriginWeight int `json:"suspicious_origin_weight"`

	NewDeviceWindowDays int `json:"new_device_window_days"`
	NewDeviceWeight     int `json:"new_device_weight"`

	LocationWindowDays    int `json:"location_window_days"`
	MaxDistinctOrigins    int `json:"max_distinct_origins"`
	UnusualLocationWeight int `json:"unusual_location_weight"`

	NightStartHour    int `json:"night_start_hour"`
	NightEndHour      int `json:"night_end_hour"`
	UnusualTimeWeight int `json:"unusual_time_weight"`

	LowThreshold      int `json:"low_threshold"`
	MediumThreshold   int `json:"medium_threshold"`
	HighThreshold     int `json:"high_threshold"`
	CriticalThreshold int `json:"critical_threshold"`
}

// DefaultFraudRules returns the production defaults.
func DefaultFraudRules() FraudRules {
	return FraudRules{
		LargeAmountThreshold: decimal.NewFromInt(50000),
		LargeAmountWeight:    25,

		AverageMultiplier:  decimal.NewFromInt(5),
		AboveAverageWeight: 20,

		HourlyMaxTransactions: 10,
		HourlyWeight:          15,
		BurstMaxTransactions:  3,
		BurstWeight:           25,

		FailedMaxAttempts: 3,
		FailedWeight:      30,

		SuspiciousOriginWeight: 20,

		NewDeviceWindowDays: 90,
		NewDeviceWeight:     15,

		LocationWindowDays:    30,
		MaxDistinctOrigins:    5,
		UnusualLocationWeight: 15,

		NightStartHour:    2,
		NightEndHour:      5,
		UnusualTimeWeight: 10,

		LowThreshold:      25,
		MediumThreshold:   50,
		HighThreshold:     75,
		CriticalThreshold: 90,
	}
}

// Validate rejects rule sets that would make the step function
// non-monotonic.
func (r FraudRules) Validate() error {
	if !(r.LowThreshold < r.MediumThreshold && r.MediumThreshold < r.HighThreshold && r.HighThreshold < r.CriticalThreshold) {
		return fmt.Errorf("risk thresholds must be strictly ascending")
	}
	if r.LowThreshold < 0 || r.CriticalThreshold > 100 {
		return fmt.Errorf("risk thresholds must stay within [0,100]")
	}
	return nil
}

// TransactionContext carries the data the engine scores.
type TransactionContext struct {
	UserID          uuid.UUID       `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Contact         string          `json:"contact"`
	OriginAddress   string          `json:"origin_address"`
	DeviceSignature string          `json:"device_signature"`
	SessionID       string          `json:"session_id"`
	At              time.Time       `json:"at"`
}

// Recommendation is the engine's verdict.
type Recommendation struct {
	Action               string `json:"action"`
	RequiresManualReview bool   `json:"requires_manual_review"`
}

// Analysis is the full result of one fraud evaluation. Success false
// means the engine could not evaluate and the caller should proceed
// with the zero-risk defaults carried here.
type Analysis struct {
	Success        bool           `json:"success"`
	RiskScore      int            `json:"risk_score"`
	RiskLevel      string         `json:"risk_level"`
	FraudFlags     []string       `json:"fraud_flags"`
	Details        []string       `json:"details"`
	Recommendation Recommendation `json:"recommendation"`
}

// historySnapshot is the payer's transaction history reduced to the
// numbers the rules need. Kept separate from rule evaluation so the
// rules stay pure.
type historySnapshot struct {
	HasHistory        bool
	AverageAmount30d  decimal.Decimal
	CountLastHour     int
	CountLast5Min     int
	FailedLast30Min   int
	KnownDevice       bool
	DistinctOrigins30 int
}

// FraudService evaluates payment attempts against the rule set. It is
// read-only over transaction history and never mutates persisted state
// itself; findings go to the audit trail.
type FraudService struct {
	db    *gorm.DB
	audit *AuditService

	mu    sync.RWMutex
	rules FraudRules
}

func NewFraudService(db *gorm.DB, audit *AuditService) *FraudService {
	return &FraudService{db: db, audit: audit, rules: DefaultFraudRules()}
}

// Rules returns a copy of the active rule set.
func (s *FraudService) Rules() FraudRules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// UpdateRules swaps the active rule set atomically.
func (s *FraudService) UpdateRules(rules FraudRules) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	return nil
}

// Analyze scores a transaction context. History lookup failures never
// block the caller: the engine logs a warning, records the failure and
// returns a zero-risk envelope with Success false.
func (s *FraudService) Analyze(ctx context.Context, txc TransactionContext) *Analysis {
	rules := s.Rules()

	if txc.At.IsZero() {
		txc.At = time.Now()
	}

	history, err := s.loadHistory(ctx, txc, rules)
	if err != nil {
		log.Printf("[Fraud] history lookup failed for user %s: %v", txc.UserID, err)
		analysis := &Analysis{
			Success:        false,
			RiskLevel:      RiskMinimal,
			FraudFlags:     []string{},
			Details:        []string{"history unavailable, defaulting to zero risk"},
			Recommendation: Recommendation{Action: ActionAllow},
		}
		s.logFinding(ctx, txc, analysis)
		return analysis
	}

	score, flags, details := evaluateRules(rules, txc, history)
	if score > 100 {
		score = 100
	}

	level := riskLevel(rules, score)
	analysis := &Analysis{
		Success:        true,
		RiskScore:      score,
		RiskLevel:      level,
		FraudFlags:     flags,
		Details:        details,
		Recommendation: recommend(level, flags),
	}

	s.logFinding(ctx, txc, analysis)
	return analysis
}

// evaluateRules runs the five rule groups and sums their
// contributions. Pure over its inputs.
func evaluateRules(rules FraudRules, txc TransactionContext, h historySnapshot) (int, []string, []string) {
	score := 0
	flags := []string{}
	details := []string{}

	// Amount rules.
	if txc.Amount.GreaterThan(rules.LargeAmountThreshold) {
		score += rules.LargeAmountWeight
		flags = append(flags, FlagLargeAmount)
		details = append(details, fmt.Sprintf("amount %s exceeds large-amount threshold %s",
			txc.Amount.StringFixed(2), rules.LargeAmountThreshold.StringFixed(2)))
	}
	if h.HasHistory && h.AverageAmount30d.IsPositive() &&
		txc.Amount.GreaterThan(h.AverageAmount30d.Mul(rules.AverageMultiplier)) {
		score += rules.AboveAverageWeight
		flags = append(flags, FlagAboveAverageAmount)
		details = append(details, fmt.Sprintf("amount %s is more than %sx the 30-day average %s",
			txc.Amount.StringFixed(2), rules.AverageMultiplier.String(), h.AverageAmount30d.StringFixed(2)))
	}

	// Frequency rules.
	if h.CountLastHour > rules.HourlyMaxTransactions {
		score += rules.HourlyWeight
		flags = append(flags, FlagHighFrequency)
		details = append(details, fmt.Sprintf("%d transactions in the last hour (limit %d)",
			h.CountLastHour, rules.HourlyMaxTransactions))
	}
	if h.CountLast5Min > rules.BurstMaxTransactions {
		score += rules.BurstWeight
		flags = append(flags, FlagRapidFire)
		details = append(details, fmt.Sprintf("%d transactions in the last five minutes (limit %d)",
			h.CountLast5Min, rules.BurstMaxTransactions))
	}

	// Pattern rules.
	if h.FailedLast30Min >= rules.FailedMaxAttempts {
		score += rules.FailedWeight
		flags = append(flags, FlagMultipleFailed)
		details = append(details, fmt.Sprintf("%d failed attempts in the last 30 minutes", h.FailedLast30Min))
	}
	if suspiciousOrigin(txc.OriginAddress) {
		score += rules.SuspiciousOriginWeight
		flags = append(flags, FlagSuspiciousOrigin)
		details = append(details, fmt.Sprintf("origin address %s is in a suspicious range", txc.OriginAddress))
	}

	// Device rules.
	if h.HasHistory && txc.DeviceSignature != "" && !h.KnownDevice {
		score += rules.NewDeviceWeight
		flags = append(flags, FlagNewDevice)
		details = append(details, fmt.Sprintf("device signature not seen in the last %d days", rules.NewDeviceWindowDays))
	}
	if h.DistinctOrigins30 > rules.MaxDistinctOrigins {
		score += rules.UnusualLocationWeight
		flags = append(flags, FlagUnusualLocation)
		details = append(details, fmt.Sprintf("%d distinct origin addresses in the last %d days (limit %d)",
			h.DistinctOrigins30, rules.LocationWindowDays, rules.MaxDistinctOrigins))
	}

	// Time rules.
	hour := txc.At.Hour()
	if hour >= rules.NightStartHour && hour <= rules.NightEndHour {
		score += rules.UnusualTimeWeight
		flags = append(flags, FlagUnusualTime)
		details = append(details, fmt.Sprintf("transaction initiated at %02d:00 local time", hour))
	}

	return score, flags, details
}

// riskLevel maps a clamped score onto the level step function.
func riskLevel(rules FraudRules, score int) string {
	switch {
	case score >= rules.CriticalThreshold:
		return RiskCritical
	case score >= rules.HighThreshold:
		return RiskHigh
	case score >= rules.MediumThreshold:
		return RiskMedium
	case score >= rules.LowThreshold:
		return RiskLow
	default:
		return RiskMinimal
	}
}

// recommend maps level to action and applies the flag overrides:
// repeated failures always block, a suspicious origin is at least
// challenged.
func recommend(level string, flags []string) Recommendation {
	rec := Recommendation{Action: ActionAllow}
	switch level {
	case RiskCritical:
		rec = Recommendation{Action: ActionBlock, RequiresManualReview: true}
	case RiskHigh:
		rec = Recommendation{Action: ActionChallenge, RequiresManualReview: true}
	case RiskMedium:
		rec = Recommendation{Action: ActionMonitor}
	}

	for _, flag := range flags {
		switch flag {
		case FlagMultipleFailed:
			return Recommendation{Action: ActionBlock, RequiresManualReview: true}
		case FlagSuspiciousOrigin:
			if rec.Action == ActionAllow || rec.Action == ActionMonitor {
				rec = Recommendation{Action: ActionChallenge, RequiresManualReview: rec.RequiresManualReview}
			}
		}
	}

	return rec
}

// suspiciousOrigin flags loopback, private, link-local, unspecified
// and broadcast addresses: none of them should ever reach the service
// as a real client origin.
func suspiciousOrigin(address string) bool {
	if address == "" {
		return false
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		return true
	}
	return ip.Equal(net.IPv4bcast)
}

func (s *FraudService) loadHistory(ctx context.Context, txc TransactionContext, rules FraudRules) (historySnapshot, error) {
	var h historySnapshot
	db := s.db.WithContext(ctx)
	now := txc.At

	var totalCount int64
	if err := db.Model(&models.Transaction{}).
		Where("user_id = ?", txc.UserID).
		Count(&totalCount).Error; err != nil {
		return h, err
	}
	h.HasHistory = totalCount > 0

	var avg decimal.NullDecimal
	if err := db.Model(&models.Transaction{}).
		Select("AVG(amount)").
		Where("user_id = ? AND status = ? AND created_at >= ?",
			txc.UserID, models.TransactionCompleted, now.AddDate(0, 0, -30)).
		Scan(&avg).Error; err != nil {
		return h, err
	}
	if avg.Valid {
		h.AverageAmount30d = avg.Decimal
	}

	var lastHour int64
	if err := db.Model(&models.Transaction{}).
		Where("user_id = ? AND created_at >= ?", txc.UserID, now.Add(-time.Hour)).
		Count(&lastHour).Error; err != nil {
		return h, err
	}
	h.CountLastHour = int(lastHour)

	var last5 int64
	if err := db.Model(&models.Transaction{}).
		Where("user_id = ? AND created_at >= ?", txc.UserID, now.Add(-5*time.Minute)).
		Count(&last5).Error; err != nil {
		return h, err
	}
	h.CountLast5Min = int(last5)

	var failed int64
	if err := db.Model(&models.Transaction{}).
		Where("user_id = ? AND status = ? AND created_at >= ?",
			txc.UserID, models.TransactionFailed, now.Add(-30*time.Minute)).
		Count(&failed).Error; err != nil {
		return h, err
	}
	h.FailedLast30Min = int(failed)

	if txc.DeviceSignature != "" {
		var seen int64
		if err := db.Model(&models.Transaction{}).
			Where("user_id = ? AND device_signature = ? AND created_at >= ?",
				txc.UserID, txc.DeviceSignature, now.AddDate(0, 0, -rules.NewDeviceWindowDays)).
			Count(&seen).Error; err != nil {
			return h, err
		}
		h.KnownDevice = seen > 0
	}

	var origins int64
	if err := db.Model(&models.Transaction{}).
		Distinct("origin_address").
		Where("user_id = ? AND origin_address <> '' AND created_at >= ?",
			txc.UserID, now.AddDate(0, 0, -rules.LocationWindowDays)).
		Count(&origins).Error; err != nil {
		return h, err
	}
	h.DistinctOrigins30 = int(origins)

	return h, nil
}

// logFinding forwards every analysis to the audit trail. Severity
// mirrors the risk level; failures are logged, never surfaced.
func (s *FraudService) logFinding(ctx context.Context, txc TransactionContext, analysis *Analysis) {
	if s.audit == nil {
		return
	}

	severity := models.SeverityInfo
	switch analysis.RiskLevel {
	case RiskCritical:
		severity = models.SeverityCritical
	case RiskHigh:
		severity = models.SeverityHigh
	}

	if _, err := s.audit.RecordSecurityEvent(ctx, SecurityEvent{
		UserID:        txc.UserID,
		EventType:     "FRAUD_ANALYSIS",
		Severity:      severity,
		OriginAddress: txc.OriginAddress,
		Details: map[string]any{
			"risk_score":  analysis.RiskScore,
			"risk_level":  analysis.RiskLevel,
			"fraud_flags": analysis.FraudFlags,
			"action":      analysis.Recommendation.Action,
			"session_id":  txc.SessionID,
			"evaluated":   analysis.Success,
		},
	}); err != nil {
		log.Printf("[Fraud] failed to record analysis event: %v", err)
	}
}
