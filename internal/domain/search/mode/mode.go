// Package mode defines the operating mode of a search request.
package mode

// Mode selects which stores participate in a search. It is fixed for the
// lifetime of a request.
type Mode string

// Operating mode constants.
const (
	// Hybrid searches the search store for identifiers, then fetches full
	// records from the record store.
	Hybrid Mode = "hybrid"
	// SearchStoreOnly decrypts full projections directly out of the search
	// store; the record store is never consulted.
	SearchStoreOnly Mode = "search_store_only"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == SearchStoreOnly
}
