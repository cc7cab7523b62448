// Package stage describes the readiness of the platform pipelines the
// scheduler drives.
package stage

import (
	"sort"
	"strings"
)

// Health summarizes the readiness of one platform pipeline.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// FromError is Healthy when err is nil and Unhealthy with err's text otherwise.
func FromError(name string, err error) Health {
	if err == nil {
		return Healthy(name)
	}
	return Unhealthy(name, err.Error())
}

// Summarize reports whether every record is ready and joins the details of
// the ones that are not, ordered by name.
func Summarize(records map[string]Health) (bool, string) {
	names := make([]string, 0, len(records))
	for name, h := range records {
		if !h.Ready {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return true, ""
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+records[name].Detail)
	}
	return false, strings.Join(parts, "; ")
}
