package handler

import (
	"strings"
	"time"

	"trustee/internal/vesting"
	id "trustee/pkg/domain"
	dErrors "trustee/pkg/domain-errors"
)

const maxBatchSize = 256

// GrantRequest is the HTTP request body for POST /grants and
// POST /grants/deposit. Timestamps are unix seconds.
type GrantRequest struct {
	Beneficiary string `json:"beneficiary"`
	Value       string `json:"value"`
	Start       int64  `json:"start"`
	Cliff       int64  `json:"cliff"`
	End         int64  `json:"end"`
	Installment int64  `json:"installment_seconds"`
	Revokable   bool   `json:"revokable"`

	// Parsed values (populated by Validate)
	parsedBeneficiary id.Address
	parsedValue       *id.Amount
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *GrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Beneficiary = strings.TrimSpace(r.Beneficiary)
	if r.Beneficiary == "" {
		return dErrors.New(dErrors.CodeValidation, "beneficiary is required")
	}
	beneficiary, err := id.ParseAddress(r.Beneficiary)
	if err != nil {
		return err
	}
	r.parsedBeneficiary = beneficiary

	r.Value = strings.TrimSpace(r.Value)
	if r.Value == "" {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}
	value, err := id.ParseAmount(r.Value)
	if err != nil {
		return err
	}
	r.parsedValue = value

	if r.Start < 0 || r.Cliff < 0 || r.End < 0 {
		return dErrors.New(dErrors.CodeValidation, "timestamps must be non-negative")
	}
	if r.Installment <= 0 {
		return dErrors.New(dErrors.CodeValidation, "installment_seconds must be positive")
	}

	return nil
}

// Domain builds the domain admission request from the parsed fields.
func (r *GrantRequest) Domain() vesting.GrantRequest {
	return vesting.GrantRequest{
		Beneficiary: r.parsedBeneficiary,
		Value:       r.parsedValue,
		Start:       time.Unix(r.Start, 0).UTC(),
		Cliff:       time.Unix(r.Cliff, 0).UTC(),
		End:         time.Unix(r.End, 0).UTC(),
		Installment: time.Duration(r.Installment) * time.Second,
		Revokable:   r.Revokable,
	}
}

// UnlockRequest is the HTTP request body for POST /unlock.
type UnlockRequest struct {
	Beneficiary string `json:"beneficiary"`

	parsedBeneficiary id.Address
}

// Validate validates and parses the request.
func (r *UnlockRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Beneficiary = strings.TrimSpace(r.Beneficiary)
	if r.Beneficiary == "" {
		return dErrors.New(dErrors.CodeValidation, "beneficiary is required")
	}
	beneficiary, err := id.ParseAddress(r.Beneficiary)
	if err != nil {
		return err
	}
	r.parsedBeneficiary = beneficiary
	return nil
}

// ParsedBeneficiary returns the validated beneficiary address.
func (r *UnlockRequest) ParsedBeneficiary() id.Address {
	return r.parsedBeneficiary
}

// BatchUnlockRequest is the HTTP request body for POST /unlock/batch.
type BatchUnlockRequest struct {
	Beneficiaries []string `json:"beneficiaries"`

	parsedBeneficiaries []id.Address
}

// Validate validates and parses the request.
func (r *BatchUnlockRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Beneficiaries) == 0 {
		return dErrors.New(dErrors.CodeValidation, "beneficiaries is required")
	}
	if len(r.Beneficiaries) > maxBatchSize {
		return dErrors.New(dErrors.CodeValidation, "beneficiaries exceeds maximum batch size")
	}
	parsed := make([]id.Address, 0, len(r.Beneficiaries))
	for _, raw := range r.Beneficiaries {
		addr, err := id.ParseAddress(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		parsed = append(parsed, addr)
	}
	r.parsedBeneficiaries = parsed
	return nil
}

// ParsedBeneficiaries returns the validated beneficiary addresses.
func (r *BatchUnlockRequest) ParsedBeneficiaries() []id.Address {
	return r.parsedBeneficiaries
}

// WithdrawRequest is the HTTP request body for POST /withdrawals.
type WithdrawRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`

	parsedAsset  id.Address
	parsedAmount *id.Amount
}

// Validate validates and parses the request.
func (r *WithdrawRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Asset = strings.TrimSpace(r.Asset)
	if r.Asset == "" {
		return dErrors.New(dErrors.CodeValidation, "asset is required")
	}
	asset, err := id.ParseAddress(r.Asset)
	if err != nil {
		return err
	}
	r.parsedAsset = asset

	r.Amount = strings.TrimSpace(r.Amount)
	if r.Amount == "" {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	amount, err := id.ParseAmount(r.Amount)
	if err != nil {
		return err
	}
	r.parsedAmount = amount
	return nil
}

// ParsedAsset returns the validated asset address.
func (r *WithdrawRequest) ParsedAsset() id.Address {
	return r.parsedAsset
}

// ParsedAmount returns the validated amount.
func (r *WithdrawRequest) ParsedAmount() *id.Amount {
	return r.parsedAmount
}
