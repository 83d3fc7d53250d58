// Package registry owns the mapping from identifier namespaces to account
// ids and enforces global uniqueness at account creation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"corebank/internal/account/models"
	"corebank/pkg/platform/sentinel"
)

// Namespace is a logical identifier category within which values must be
// unique process-wide.
type Namespace string

const (
	NamespaceEmail         Namespace = "email"
	NamespaceAccountNumber Namespace = "accountNumber"
	NamespaceCardNumber    Namespace = "cardNumber"
	NamespaceUPIHandle     Namespace = "upiHandle"
	NamespaceKYCID         Namespace = "kycId"
)

// priority fixes the order in which namespaces are checked and reserved, so
// the conflicting namespace reported under concurrent signups is
// deterministic.
var priority = []Namespace{
	NamespaceEmail,
	NamespaceAccountNumber,
	NamespaceCardNumber,
	NamespaceUPIHandle,
	NamespaceKYCID,
}

// DuplicateError names the first namespace whose value is already taken.
type DuplicateError struct {
	Namespace Namespace
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already registered", e.Namespace)
}

// ReservationStore is the atomic insert-if-absent primitive backing the
// registry. Implementations must make PutIfAbsent linearizable per
// namespace+value key.
type ReservationStore interface {
	// PutIfAbsent binds value to accountID within namespace. Returns
	// sentinel.ErrConflict when the value is already bound to any account.
	PutIfAbsent(ctx context.Context, ns Namespace, value, accountID string) error

	// Release removes a binding. Releasing an absent binding is a no-op.
	Release(ctx context.Context, ns Namespace, value string) error

	// Lookup resolves a binding to its account id, or sentinel.ErrNotFound.
	Lookup(ctx context.Context, ns Namespace, value string) (string, error)
}

// Registry enforces uniqueness across the five identifier namespaces.
type Registry struct {
	store  ReservationStore
	logger *slog.Logger
}

// New constructs a Registry.
func New(store ReservationStore, logger *slog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// pairs lists the present (namespace, value) bindings in priority order.
// Optional namespaces participate only when non-empty (sparse uniqueness).
func pairs(ids models.Identifiers) [][2]string {
	byNS := map[Namespace]string{
		NamespaceEmail:         ids.Email,
		NamespaceAccountNumber: ids.AccountNumber,
		NamespaceCardNumber:    ids.CardNumber,
		NamespaceUPIHandle:     ids.UPIHandle,
		NamespaceKYCID:         ids.KYCID,
	}
	out := make([][2]string, 0, len(priority))
	for _, ns := range priority {
		if value := byNS[ns]; value != "" {
			out = append(out, [2]string{string(ns), value})
		}
	}
	return out
}

// Register reserves every present identifier for accountID as one logical
// unit. On any conflict, reservations already made for this attempt are
// released before the DuplicateError is returned, so a failed signup leaves
// no residue. Reservations happen in priority order: under a concurrent race
// on the same value, exactly one caller wins and the loser observes the
// conflict on the first contested namespace.
func (r *Registry) Register(ctx context.Context, ids models.Identifiers, accountID string) error {
	reserved := make([][2]string, 0, 5)
	for _, p := range pairs(ids) {
		ns, value := Namespace(p[0]), p[1]
		err := r.store.PutIfAbsent(ctx, ns, value, accountID)
		if err == nil {
			reserved = append(reserved, p)
			continue
		}
		r.rollback(ctx, reserved)
		if errors.Is(err, sentinel.ErrConflict) {
			return &DuplicateError{Namespace: ns}
		}
		return fmt.Errorf("reserve %s: %w", ns, err)
	}
	return nil
}

// Release frees every present identifier. Used as the compensating action
// when account persistence fails after a successful Register; without it the
// namespaces would be poisoned forever.
func (r *Registry) Release(ctx context.Context, ids models.Identifiers) {
	r.rollback(ctx, pairs(ids))
}

// Lookup resolves a single identifier to its account id.
func (r *Registry) Lookup(ctx context.Context, ns Namespace, value string) (string, error) {
	return r.store.Lookup(ctx, ns, value)
}

func (r *Registry) rollback(ctx context.Context, reserved [][2]string) {
	for _, p := range reserved {
		if err := r.store.Release(ctx, Namespace(p[0]), p[1]); err != nil {
			// A failed release poisons the namespace; surface it loudly.
			r.logger.ErrorContext(ctx, "identifier release failed",
				"namespace", p[0],
				"error", err,
			)
		}
	}
}
