package services

import "fmt"

// Payment error kinds. Every failure surfaced by the payment pipeline
// belongs to exactly one of these.
const (
	ErrKindValidation     = "validation"
	ErrKindStateConflict  = "state_conflict"
	ErrKindSecurity       = "security"
	ErrKindGateway        = "gateway"
	ErrKindInfrastructure = "infrastructure"
)

// PaymentErrorInfo describes one failure mode of the payment pipeline.
// Message carries the user-facing text per language; internal
// diagnostics never travel in Message.
type PaymentErrorInfo struct {
	Kind      string
	Code      string
	Retryable bool
	Message   map[string]string
}

var (
	ErrInfoBookingNotFound = PaymentErrorInfo{
		Kind: ErrKindStateConflict,
		Code: "BOOKING_NOT_FOUND",
		Message: map[string]string{
			"en": "Booking not found",
			"bn": "বুকিং খুঁজে পাওয়া যায়নি",
		},
	}
	ErrInfoDuplicateTransaction = PaymentErrorInfo{
		Kind: ErrKindStateConflict,
		Code: "DUPLICATE_TRANSACTION",
		Message: map[string]string{
			"en": "This booking has already been paid",
			"bn": "এই বুকিংয়ের জন্য ইতিমধ্যে পেমেন্ট করা হয়েছে",
		},
	}
	ErrInfoBookingCancelled = PaymentErrorInfo{
		Kind: ErrKindStateConflict,
		Code: "BOOKING_CANCELLED",
		Message: map[string]string{
			"en": "Cannot pay for a cancelled booking",
			"bn": "বাতিল বুকিংয়ের জন্য পেমেন্ট করা যাবে না",
		},
	}
	ErrInfoValidationFailed = PaymentErrorInfo{
		Kind: ErrKindValidation,
		Code: "VALIDATION_FAILED",
		Message: map[string]string{
			"en": "Payment details are invalid",
			"bn": "পেমেন্টের তথ্য সঠিক নয়",
		},
	}
	ErrInfoAddonIneligible = PaymentErrorInfo{
		Kind: ErrKindValidation,
		Code: "ADDON_INELIGIBLE",
		Message: map[string]string{
			"en": "The requested additional service is not available for this patient",
			"bn": "অনুরোধকৃত অতিরিক্ত সেবাটি এই রোগীর জন্য প্রযোজ্য নয়",
		},
	}
	ErrInfoDataProcessing = PaymentErrorInfo{
		Kind: ErrKindValidation,
		Code: "DATA_PROCESSING_FAILED",
		Message: map[string]string{
			"en": "Payment data could not be processed",
			"bn": "পেমেন্টের তথ্য প্রক্রিয়া করা যায়নি",
		},
	}
	ErrInfoFraudBlocked = PaymentErrorInfo{
		Kind: ErrKindSecurity,
		Code: "FRAUD_BLOCKED",
		Message: map[string]string{
			"en": "This transaction was declined for security reasons",
			"bn": "নিরাপত্তার কারণে এই লেনদেনটি প্রত্যাখ্যান করা হয়েছে",
		},
	}
	ErrInfoRevenueConfig = PaymentErrorInfo{
		Kind: ErrKindInfrastructure,
		Code: "REVENUE_CONFIG_FAILED",
		Message: map[string]string{
			"en": "Payment could not be completed, please try again later",
			"bn": "পেমেন্ট সম্পন্ন করা যায়নি, অনুগ্রহ করে পরে আবার চেষ্টা করুন",
		},
	}
	ErrInfoRefundNotAllowed = PaymentErrorInfo{
		Kind: ErrKindStateConflict,
		Code: "REFUND_NOT_ALLOWED",
		Message: map[string]string{
			"en": "This transaction cannot be refunded",
			"bn": "এই লেনদেনটি ফেরত দেওয়া যাবে না",
		},
	}
	ErrInfoRefundExceedsAmount = PaymentErrorInfo{
		Kind: ErrKindValidation,
		Code: "REFUND_EXCEEDS_AMOUNT",
		Message: map[string]string{
			"en": "Refund amount exceeds the original payment",
			"bn": "ফেরতের পরিমাণ মূল পেমেন্টের চেয়ে বেশি",
		},
	}
	ErrInfoRefundDeclined = PaymentErrorInfo{
		Kind: ErrKindGateway,
		Code: "REFUND_DECLINED",
		Message: map[string]string{
			"en": "The refund was declined by the payment provider",
			"bn": "পেমেন্ট প্রদানকারী ফেরত প্রত্যাখ্যান করেছে",
		},
	}
	ErrInfoInternal = PaymentErrorInfo{
		Kind: ErrKindInfrastructure,
		Code: "INTERNAL_ERROR",
		Message: map[string]string{
			"en": "Payment could not be completed, please try again later",
			"bn": "পেমেন্ট সম্পন্ন করা যায়নি, অনুগ্রহ করে পরে আবার চেষ্টা করুন",
		},
	}
)

// gatewayErrorInfos maps gateway decline/fault codes onto the error
// taxonomy. Timeouts and transient service faults are retryable;
// declines and blocks are not.
var gatewayErrorInfos = map[string]PaymentErrorInfo{
	GatewayCodeInsufficientBalance: {
		Kind: ErrKindGateway,
		Code: GatewayCodeInsufficientBalance,
		Message: map[string]string{
			"en": "Insufficient balance in the wallet account",
			"bn": "ওয়ালেট অ্যাকাউন্টে পর্যাপ্ত ব্যালেন্স নেই",
		},
	},
	GatewayCodeInvalidAccount: {
		Kind: ErrKindGateway,
		Code: GatewayCodeInvalidAccount,
		Message: map[string]string{
			"en": "The wallet account number is not valid",
			"bn": "ওয়ালেট অ্যাকাউন্ট নম্বরটি সঠিক নয়",
		},
	},
	GatewayCodeAccountBlocked: {
		Kind: ErrKindGateway,
		Code: GatewayCodeAccountBlocked,
		Message: map[string]string{
			"en": "The wallet account is blocked",
			"bn": "ওয়ালেট অ্যাকাউন্টটি ব্লক করা আছে",
		},
	},
	GatewayCodeLimitExceeded: {
		Kind: ErrKindGateway,
		Code: GatewayCodeLimitExceeded,
		Message: map[string]string{
			"en": "The wallet transaction limit has been exceeded",
			"bn": "ওয়ালেটের লেনদেন সীমা অতিক্রম করেছে",
		},
	},
	GatewayCodeServiceUnavailable: {
		Kind:      ErrKindGateway,
		Code:      GatewayCodeServiceUnavailable,
		Retryable: true,
		Message: map[string]string{
			"en": "The payment service is temporarily unavailable",
			"bn": "পেমেন্ট সেবা সাময়িকভাবে বন্ধ আছে",
		},
	},
	GatewayCodeTimeout: {
		Kind:      ErrKindGateway,
		Code:      GatewayCodeTimeout,
		Retryable: true,
		Message: map[string]string{
			"en": "The payment request timed out",
			"bn": "পেমেন্টের অনুরোধের সময় শেষ হয়ে গেছে",
		},
	},
	GatewayCodeNetworkError: {
		Kind:      ErrKindGateway,
		Code:      GatewayCodeNetworkError,
		Retryable: true,
		Message: map[string]string{
			"en": "A network error interrupted the payment",
			"bn": "নেটওয়ার্ক ত্রুটির কারণে পেমেন্ট বিঘ্নিত হয়েছে",
		},
	},
}

// RetryContinuation tells a caller how to resume after a retryable
// failure.
type RetryContinuation struct {
	AttemptCount int `json:"attempt_count"`
}

// PaymentError is the single structured failure type for the payment
// pipeline. It is built only through the constructors below so shape
// never drifts between call sites.
type PaymentError struct {
	Info         PaymentErrorInfo
	Detail       string
	Details      map[string]any
	AttemptCount int
}

func (e *PaymentError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Info.Code, e.Detail)
	}
	return e.Info.Code
}

// CanRetry reports whether the caller may retry the same request.
func (e *PaymentError) CanRetry() bool {
	return e.Info.Retryable
}

// Retry returns the continuation for a retryable error, nil otherwise.
func (e *PaymentError) Retry() *RetryContinuation {
	if !e.Info.Retryable {
		return nil
	}
	return &RetryContinuation{AttemptCount: e.AttemptCount + 1}
}

// NewPaymentError builds a PaymentError from a known failure mode.
// detail is the internal diagnostic, details the caller-facing extras.
func NewPaymentError(info PaymentErrorInfo, attemptCount int, detail string, details map[string]any) *PaymentError {
	return &PaymentError{
		Info:         info,
		Detail:       detail,
		Details:      details,
		AttemptCount: attemptCount,
	}
}

// MapGatewayError translates a gateway decline or fault into the error
// taxonomy.
func MapGatewayError(res *GatewayResult, attemptCount int) *PaymentError {
	if info, ok := gatewayErrorInfos[res.Code]; ok {
		return NewPaymentError(info, attemptCount, res.Reason, map[string]any{
			"gateway_code": res.Code,
		})
	}
	return NewPaymentError(ErrInfoInternal, attemptCount, fmt.Sprintf("unmapped gateway code %q: %s", res.Code, res.Reason), nil)
}

// MapInfrastructureError wraps an unexpected internal failure without
// leaking its diagnostic to the caller.
func MapInfrastructureError(err error, attemptCount int) *PaymentError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return NewPaymentError(ErrInfoInternal, attemptCount, detail, nil)
}
