package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]EntityDefinition)
	registryMu sync.RWMutex
)

// Register adds an entity definition to the registry and builds its header
// lookup. Panics on a duplicate key or on two fields claiming the same
// header name.
func Register(def EntityDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Info.Key))
	}

	def.lookup = make(map[string]int)
	for i, spec := range def.FieldSpecs {
		names := append([]string{spec.Name}, spec.Aliases...)
		for _, name := range names {
			folded := foldHeader(name)
			if prev, taken := def.lookup[folded]; taken && prev != i {
				panic(fmt.Sprintf("entity %s: header %q claimed by %s and %s",
					def.Info.Key, name, def.FieldSpecs[prev].Name, spec.Name))
			}
			def.lookup[folded] = i
		}
	}

	registry[def.Info.Key] = def
}

// Get returns an entity definition by key.
func Get(key string) (EntityDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered definitions sorted by key.
func All() []EntityDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// resolveColumn maps a header or JSON key to its field spec.
func (d EntityDefinition) resolveColumn(name string) (FieldSpec, bool) {
	i, ok := d.lookup[foldHeader(name)]
	if !ok {
		return FieldSpec{}, false
	}
	return d.FieldSpecs[i], true
}
