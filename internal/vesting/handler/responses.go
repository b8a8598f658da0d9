package handler

import (
	"time"

	"trustee/internal/vesting"
)

// GrantResponse is the HTTP representation of a grant. Amounts are decimal
// strings, timestamps unix seconds.
type GrantResponse struct {
	Beneficiary string `json:"beneficiary"`
	Value       string `json:"value"`
	Start       int64  `json:"start"`
	Cliff       int64  `json:"cliff"`
	End         int64  `json:"end"`
	Installment int64  `json:"installment_seconds"`
	Transferred string `json:"transferred"`
	Revokable   bool   `json:"revokable"`
	Vested      string `json:"vested,omitempty"`
	Ready       string `json:"ready,omitempty"`
}

// FromGrant maps a domain grant to its HTTP representation.
func FromGrant(g *vesting.Grant) GrantResponse {
	return GrantResponse{
		Beneficiary: g.Beneficiary.String(),
		Value:       g.Value.Dec(),
		Start:       g.Start.Unix(),
		Cliff:       g.Cliff.Unix(),
		End:         g.End.Unix(),
		Installment: int64(g.Installment / time.Second),
		Transferred: g.Transferred.Dec(),
		Revokable:   g.Revokable,
	}
}

// FromGrantAt maps a grant plus its schedule position at the given time.
func FromGrantAt(g *vesting.Grant, at time.Time) GrantResponse {
	resp := FromGrant(g)
	resp.Vested = vesting.VestedAmount(g, at).Dec()
	resp.Ready = vesting.ReadyAmount(g, at).Dec()
	return resp
}

// UnlockResponse is the HTTP representation of a single unlock outcome.
type UnlockResponse struct {
	Beneficiary string `json:"beneficiary"`
	Status      string `json:"status"`
	Amount      string `json:"amount,omitempty"`
	Code        int    `json:"code,omitempty"`
}

// FromUnlockResult maps an unlock outcome to its HTTP representation.
func FromUnlockResult(res vesting.UnlockResult) UnlockResponse {
	resp := UnlockResponse{
		Beneficiary: res.Beneficiary.String(),
		Status:      string(res.Status),
		Code:        int(res.Code),
	}
	if res.Amount != nil {
		resp.Amount = res.Amount.Dec()
	}
	return resp
}

// BatchUnlockResponse is the HTTP response body for POST /unlock/batch.
type BatchUnlockResponse struct {
	Results []UnlockResponse `json:"results"`
}

// FromUnlockResults maps a batch of unlock outcomes.
func FromUnlockResults(results []vesting.UnlockResult) BatchUnlockResponse {
	out := make([]UnlockResponse, 0, len(results))
	for _, res := range results {
		out = append(out, FromUnlockResult(res))
	}
	return BatchUnlockResponse{Results: out}
}

// RevokeResponse is the HTTP response body for DELETE /grants/{beneficiary}.
type RevokeResponse struct {
	Beneficiary string `json:"beneficiary"`
	Refunded    string `json:"refunded"`
}
