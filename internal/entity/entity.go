// Package entity implements the generic store engine behind every domain
// collection: fetch/create/update/delete with loading and error state, a
// local cache reconciled against the remote store, and permission checks
// ahead of every mutation.
package entity

import "condosync/internal/remote"

// State is the lifecycle of a store's cached list.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StatePopulated State = "populated"
	StateErrored   State = "errored"
)

// Codec maps one domain type onto the adapter's document shape. Decode is
// total: missing fields become zero values, never errors, because documents
// arrive from the authoritative store.
type Codec[T any] struct {
	Collection string
	Encode     func(T) remote.Document
	Decode     func(remote.Document) T
	ID         func(T) string
}
