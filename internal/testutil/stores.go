package testutil

import (
	"fmt"
	"slices"

	"github.com/roach88/treeup/internal/update"
)

// MemoryStores builds one in-memory store per entry of docs, keyed by store
// name, and returns them sorted by name.
func MemoryStores(docs map[string]string) ([]update.Store, error) {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	slices.Sort(names)

	stores := make([]update.Store, 0, len(names))
	for _, name := range names {
		m, err := update.ParseMemory(name, docs[name])
		if err != nil {
			return nil, fmt.Errorf("store %q: %w", name, err)
		}
		stores = append(stores, m)
	}
	return stores, nil
}

// NormalizeXML parses xml the way MemoryStores does and serializes it
// again, so expected documents compare equal regardless of formatting.
func NormalizeXML(xml string) (string, error) {
	m, err := update.ParseMemory("normalize", xml)
	if err != nil {
		return "", err
	}
	return m.Data().XML(), nil
}
