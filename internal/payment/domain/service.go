package domain

import (
	"context"
	"errors"
	"time"

	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
)

type Service interface {
	// Start opens a payment attempt for a pending order, superseding any
	// earlier open attempt. The order stays pending until a verified
	// confirmation arrives.
	Start(ctx context.Context, req StartRequest) (*StartResponse, error)
	// HandleReturn captures a hosted checkout after the buyer is sent
	// back; on success the order advances to processing and the attempt
	// settles as confirmed.
	HandleReturn(ctx context.Context, token, externalID string) (*Response, error)
	// VerifyCrypto checks a submitted transaction hash against the chain;
	// a matching transfer advances the order to processing and settles
	// the attempt.
	VerifyCrypto(ctx context.Context, req VerifyCryptoRequest) (*Response, error)
	// SubmitProof attaches the buyer's manual-transfer evidence for admin
	// review; the order stays pending until an admin confirms.
	SubmitProof(ctx context.Context, req SubmitProofRequest) (*Response, error)
	// ConfirmManual is the admin override that settles any open attempt
	// and completes the order.
	ConfirmManual(ctx context.Context, req ConfirmManualRequest) (*Response, error)
	ListByOrder(ctx context.Context, token string) ([]Response, error)
}

type StartRequest struct {
	Token  string
	UserID int64
}

type StartResponse struct {
	Payment      Response      `json:"payment"`
	Instructions *Instructions `json:"instructions"`
	// ExpiresAt is the payment window deadline; unpaid orders are swept
	// after it passes.
	ExpiresAt time.Time `json:"expires_at"`
}

type VerifyCryptoRequest struct {
	Token  string
	UserID int64
	TxHash string
}

type SubmitProofRequest struct {
	Token  string
	UserID int64
	Note   string
}

type ConfirmManualRequest struct {
	Token        string
	AdminID      int64
	DeliveryInfo *string
}

type Response struct {
	ID             string             `json:"id"`
	OrderID        string             `json:"order_id"`
	Method         orderdomain.Method `json:"method"`
	ExternalID     *string            `json:"external_id,omitempty"`
	Amount         int64              `json:"amount"`
	CryptoAmount   *float64           `json:"crypto_amount,omitempty"`
	CryptoCurrency *string            `json:"crypto_currency,omitempty"`
	Status         Status             `json:"status"`
	TxHash         *string            `json:"tx_hash,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrNoOpenPayment     = errors.New("no_open_payment")
	ErrAlreadySettled    = errors.New("already_settled")
	ErrVerificationMatch = errors.New("verification_mismatch")
	ErrInvalidTxHash     = errors.New("invalid_tx_hash")
	ErrInvalidProof      = errors.New("invalid_proof")
	ErrConfirmInFlight   = errors.New("confirmation_in_flight")
)
