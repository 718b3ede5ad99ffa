package feed

import "github.com/vicky5124/robo-arc-sub000/internal/model"

// ContentFilter is the per-destination tag policy.
//
// Restricted destinations accept anything tagged from the broader
// allow-list; general destinations use the narrow allow-list and
// additionally reject banned tags. A rejection drops the item for that
// destination only, never globally.
type ContentFilter struct {
	// GeneralAllow gates general destinations. Empty means "no gate".
	GeneralAllow []string
	// RestrictedExtra extends GeneralAllow for restricted destinations.
	RestrictedExtra []string
	// Banned drops an item for general destinations.
	Banned []string
}

// Accepts reports whether an item with the given tags may go to a
// destination held to policy p.
func (f ContentFilter) Accepts(p model.Policy, tags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}

	if p == model.PolicyGeneral {
		for _, b := range f.Banned {
			if _, ok := set[b]; ok {
				return false
			}
		}
	}

	allow := f.GeneralAllow
	if p == model.PolicyRestricted {
		allow = append(append([]string(nil), f.GeneralAllow...), f.RestrictedExtra...)
	}
	if len(allow) == 0 {
		return true
	}
	for _, a := range allow {
		if _, ok := set[a]; ok {
			return true
		}
	}
	return false
}
