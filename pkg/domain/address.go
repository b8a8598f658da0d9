package domain

import (
	"encoding/hex"
	"strings"

	dErrors "trustee/pkg/domain-errors"
)

// AddressLength is the byte length of a ledger account identifier.
const AddressLength = 20

// Address identifies an account on the token ledger. It is a fixed-size
// value type so it can key maps and be compared directly.
//
// Invariant: addresses accepted at trust boundaries are well-formed 20-byte
// hex strings. The zero value is the null identity and is never a valid
// beneficiary, funder, or owner.
//
// Usage: construct via ParseAddress in handlers/adapters; direct casting
// bypasses validation.
type Address [AddressLength]byte

// ZeroAddress is the null identity.
var ZeroAddress = Address{}

// ParseAddress constructs an Address from external input.
//
// Accepts 40 hex characters with an optional 0x prefix, case-insensitive.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or
// the wrong length; no other errors are expected.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != AddressLength*2 {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be 20 bytes of hex")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address is not valid hex")
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// String renders the address as lowercase hex with a 0x prefix.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as
// hex strings in JSON payloads and audit events.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler with full validation.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
