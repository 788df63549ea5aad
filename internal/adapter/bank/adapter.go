// Package bank implements the abstract acquiring-bank contract (C10): an
// authorize/capture/release/refund call set the lifecycle engine drives
// without ever knowing which concrete processor sits behind it.
package bank

import (
	"secure-payment-gateway/internal/core/ports"
)

// Adapter is an alias for ports.BankAdapter, kept so adapter implementations
// in this package can reference the contract without importing ports
// directly in every file.
type Adapter = ports.BankAdapter
