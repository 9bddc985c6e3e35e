// Package metastore resolves a logical map name ("occurrence",
// "clustered") to the physical store table currently serving it. Two
// implementations exist: Static, for a table layout fixed at startup,
// and Watched, which applies live updates from a coordination topic
// so a table can be swapped without restarting the service.
package metastore

import "fmt"

// Metastore is what the Tile Assembler consults to resolve the table
// prefix before it asks the Tile Store Adapter for a tile.
type Metastore interface {
	TableFor(logical string) (string, error)
}

// Static serves a fixed mapping configured at startup. It is the
// right choice for deployments where table swaps are coordinated by a
// restart/rollout rather than a live message.
type Static struct {
	tables map[string]string
}

func NewStatic(tables map[string]string) *Static {
	cp := make(map[string]string, len(tables))
	for k, v := range tables {
		cp[k] = v
	}
	return &Static{tables: cp}
}

func (s *Static) TableFor(logical string) (string, error) {
	t, ok := s.tables[logical]
	if !ok {
		return "", fmt.Errorf("metastore: no table configured for logical map %q", logical)
	}
	return t, nil
}
