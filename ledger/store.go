package ledger

import (
	"context"
	"errors"
)

// AccountKey is the fixed key the account record is stored under.
const AccountKey = "pulse_paper_account"

// ErrNotFound is returned by a Store that has no record yet.
var ErrNotFound = errors.New("account record not found")

// ErrPersistence wraps every load/save failure reported by the ledger.
var ErrPersistence = errors.New("persistence")

// Store persists the serialized account as an opaque blob.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}
