package repos

import (
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/types"
)

type sequence struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// nextID allocates the next value of a named sequence inside tx. IDs start at 1.
func nextID(tx store.Transaction, name string) (int64, error) {
	var seq sequence
	err := tx.Get(types.ResourceTypeSequence, types.SystemNamespace, name, &seq)
	if err != nil && !store.IsNotFoundError(err) {
		return 0, err
	}
	seq.Name = name
	seq.Value++
	if err := tx.Put(types.ResourceTypeSequence, types.SystemNamespace, name, &seq); err != nil {
		return 0, err
	}
	return seq.Value, nil
}
