package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// NotificationService delivers payment confirmations and receipts to
// Telegram. Every send is best-effort: callers run it after commit and
// only log failures.
type NotificationService struct {
	botToken    string
	adminChatID string
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(botToken, adminChatID string) *NotificationService {
	return &NotificationService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *NotificationService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Notify] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Notify] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Notify] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *NotificationService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Notify] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// FormatPrice formats an amount with thousand separators and currency.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "BDT"
	}

	str := amount.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(str, ".")

	negative := strings.HasPrefix(intPart, "-")
	if negative {
		intPart = intPart[1:]
	}

	var result strings.Builder
	if negative {
		result.WriteString("-")
	}
	length := len(intPart)
	for i, digit := range intPart {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	return result.String() + "." + fracPart + " " + currency
}

// PaymentConfirmation contains successful payment data.
type PaymentConfirmation struct {
	TransactionRef string
	HospitalName   string
	ResourceLabel  string
	PatientName    string
	MaskedContact  string
	Amount         decimal.Decimal
	ServiceCharge  decimal.Decimal
	Currency       string
	PaymentMethod  string
}

// SendPaymentConfirmation notifies the admin chat about a completed
// payment.
func (s *NotificationService) SendPaymentConfirmation(p PaymentConfirmation) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ PAYMENT RECEIVED</b>
<b>📋 Reference:</b> %s
<b>🏥 Hospital:</b> %s
<b>🛏 Service:</b> %s
<b>👤 Patient:</b> %s (%s)
<b>💰 Amount:</b> %s
<b>🧾 Service charge:</b> %s
<b>💳 Method:</b> %s
━━━━━━━━━━━━━━━━━━`,
		p.TransactionRef,
		p.HospitalName,
		p.ResourceLabel,
		p.PatientName,
		p.MaskedContact,
		FormatPrice(p.Amount, p.Currency),
		FormatPrice(p.ServiceCharge, p.Currency),
		p.PaymentMethod,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// Receipt is the generated proof of payment sent to the payer.
type Receipt struct {
	ReceiptRef     string
	TransactionRef string
	HospitalName   string
	Amount         decimal.Decimal
	Currency       string
	IssuedTo       string
}

// BuildReceipt derives the receipt for a completed transaction.
func BuildReceipt(p PaymentConfirmation) Receipt {
	return Receipt{
		ReceiptRef:     "RCPT-" + p.TransactionRef,
		TransactionRef: p.TransactionRef,
		HospitalName:   p.HospitalName,
		Amount:         p.Amount,
		Currency:       p.Currency,
		IssuedTo:       p.PatientName,
	}
}

// SendReceipt delivers a generated receipt.
func (s *NotificationService) SendReceipt(receipt Receipt) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>🧾 RECEIPT %s</b>
<b>Transaction:</b> %s
<b>Hospital:</b> %s
<b>Issued to:</b> %s
<b>Total:</b> %s
<i>MediPay</i>`,
		receipt.ReceiptRef,
		receipt.TransactionRef,
		receipt.HospitalName,
		receipt.IssuedTo,
		FormatPrice(receipt.Amount, receipt.Currency),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
