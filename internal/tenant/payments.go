package tenant

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rightupnext/billing/internal/shared"
)

// PaymentProof is what the payment gateway hands the client after checkout.
type PaymentProof struct {
	OrderID   string
	PaymentID string
	Signature string
}

// PaymentVerifier confirms that a payment really happened before a plan is activated.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, proof PaymentProof) error
}

// SignatureVerifier checks the gateway signature: hex HMAC-SHA256 of "order_id|payment_id" keyed
// with the merchant secret.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier returns nil for an empty secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	if secret == "" {
		return nil
	}
	return &SignatureVerifier{secret: []byte(secret)}
}

// Sign computes the signature the gateway attaches to proof.
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayment implements PaymentVerifier.
func (v *SignatureVerifier) VerifyPayment(ctx context.Context, proof PaymentProof) error {
	got, err := hex.DecodeString(proof.Signature)
	if err != nil {
		return shared.Validationf("payment verification failed")
	}
	want, _ := hex.DecodeString(v.Sign(proof.OrderID, proof.PaymentID))
	if !hmac.Equal(got, want) {
		return shared.Validationf("payment verification failed")
	}
	return nil
}
