// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.
package repository

import "errors"

var (
	// ErrNotFound is returned when a signature or signer does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEnvelopeAlreadySet is returned when a signature already has an envelope id.
	ErrEnvelopeAlreadySet = errors.New("envelope id already set")
)

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
