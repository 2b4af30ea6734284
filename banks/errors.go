package banks

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Op tags an upstream failure with the bank call that produced it.
type Op string

const (
	OpToken    Op = "token"
	OpConsent  Op = "consent"
	OpAccounts Op = "accounts"
)

// InvalidBankError means the requested bank is not in the registry. It is
// a caller error and is never retried.
type InvalidBankError struct {
	Bank string
}

func (e *InvalidBankError) Error() string {
	return fmt.Sprintf("unknown bank %q", e.Bank)
}

// NetworkError wraps a transport-level failure (connect, timeout). It maps
// to a 503 at the API boundary.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("bank request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UpstreamError carries a bank's non-2xx status and body unmodified so the
// caller can see exactly what the provider said. Body is the provider's
// JSON if it parsed, otherwise its raw text encoded as a JSON string.
type UpstreamError struct {
	Op     Op
	Status int
	Body   json.RawMessage
}

func (e *UpstreamError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("bank returned status %d", e.Status)
	}
	return fmt.Sprintf("bank %s request returned status %d", e.Op, e.Status)
}

// FormatError means the bank returned a 2xx response that was not valid
// JSON where JSON was expected.
type FormatError struct {
	Op  Op
	Err error
}

func (e *FormatError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("bank returned a non-JSON response: %v", e.Err)
	}
	return fmt.Sprintf("bank %s request returned a non-JSON response: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// tagOp stamps the originating operation onto gateway errors as they
// bubble out of the token/consent/accounts paths.
func tagOp(err error, op Op) error {
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Op == "" {
		upstream.Op = op
	}
	var format *FormatError
	if errors.As(err, &format) && format.Op == "" {
		format.Op = op
	}
	return err
}
