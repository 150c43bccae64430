// Package shared provides common domain types used across the data-security core.
package shared

import (
	"errors"
)

// Common domain errors.
var (
	// Connection and query errors
	ErrPoolUnavailable   = errors.New("connection pool is not initialized")
	ErrQueryFailed       = errors.New("query execution failed")
	ErrTransactionFailed = errors.New("transaction failed")

	// Encryption errors
	ErrEncryptionFailed       = errors.New("encryption failed")
	ErrDecryptionFailed       = errors.New("decryption failed")
	ErrKeyNotFound            = errors.New("encryption key not found")
	ErrKeyInactive            = errors.New("encryption key is not active")
	ErrUnsupportedCipherType  = errors.New("unsupported encryption type")
	ErrInvalidEncryptedFormat = errors.New("invalid encrypted data format")

	// Audit errors
	ErrFlushFailed = errors.New("audit flush failed")
)
