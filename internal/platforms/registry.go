// Package platforms is the closed set of platform adapters.
package platforms

import (
	"fmt"
	"sort"
	"strings"

	"racefeed/internal/adapter"
	"racefeed/internal/platforms/athlinks"
	"racefeed/internal/platforms/mikatiming"
	"racefeed/internal/platforms/russiarunning"
	"racefeed/internal/platforms/trackshack"
)

// Constructor builds an adapter from process dependencies.
type Constructor func(adapter.Deps) (adapter.Adapter, error)

var constructors = map[string]Constructor{
	athlinks.Platform:      athlinks.New,
	mikatiming.Platform:    mikatiming.New,
	russiarunning.Platform: russiarunning.New,
	trackshack.Platform:    trackshack.New,
}

// Known returns the sorted platform ids with an adapter.
func Known() []string {
	ids := make([]string, 0, len(constructors))
	for id := range constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New builds the adapter for platform.
func New(platform string, deps adapter.Deps) (adapter.Adapter, error) {
	ctor, ok := constructors[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (known: %s)", platform, strings.Join(Known(), ", "))
	}
	return ctor(deps)
}

// NewPipeline builds the adapter for platform and binds it to deps.
func NewPipeline(platform string, deps adapter.Deps) (*adapter.Pipeline, error) {
	a, err := New(platform, deps)
	if err != nil {
		return nil, err
	}
	return adapter.NewPipeline(a, deps)
}
