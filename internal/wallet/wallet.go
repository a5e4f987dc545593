// Package wallet maps users to their on-chain addresses. Key custody is
// a collaborator concern: transactions are assembled and signed by the
// external signer service, so no key material passes through here.
package wallet

import (
	"errors"
	"fmt"

	"sniper-core/pkg/db"
	"sniper-core/pkg/solana"
)

// ErrNoWallet is returned when a user has no registered address.
var ErrNoWallet = errors.New("wallet: no wallet registered")

// Registry is the db-backed address book.
type Registry struct {
	q *db.Queries
}

func NewRegistry(q *db.Queries) *Registry {
	return &Registry{q: q}
}

// Address returns the user's registered public address.
func (r *Registry) Address(userID string) (string, error) {
	pk, err := r.q.GetWallet(userID)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrNoWallet
	}
	if err != nil {
		return "", err
	}
	return pk, nil
}

// Register validates and stores the user's public address.
func (r *Registry) Register(userID, pubkey string) error {
	if _, err := solana.ParsePublicKey(pubkey); err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	if err := r.q.EnsureUser(userID); err != nil {
		return err
	}
	return r.q.SetWallet(userID, pubkey)
}
