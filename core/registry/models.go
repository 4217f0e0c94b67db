package registry

import (
	"encoding/json"
	"sort"

	"github.com/trezcool/karibu/core"
)

// Categories are independent namespaces within the registry: the same key may
// be claimed in one category and not another.
type Category string

const (
	CategoryOfficer      Category = "officer"
	CategoryMember       Category = "member"
	CategoryRSVP         Category = "rsvp"
	CategoryAnnouncement Category = "announcement"
)

var AllCategories = []Category{CategoryOfficer, CategoryMember, CategoryRSVP, CategoryAnnouncement}

func (cat Category) IsValid() bool {
	for _, c := range AllCategories {
		if c == cat {
			return true
		}
	}
	return false
}

// Registry maps each category to its set of claimed keys: normalized emails,
// or "phase:date" announcement tokens. It only ever grows.
type Registry struct {
	Officer      []string `json:"officer"`
	Member       []string `json:"member"`
	RSVP         []string `json:"rsvp"`
	Announcement []string `json:"announcement"`
}

func Default() Registry {
	return Registry{
		Officer:      []string{},
		Member:       []string{},
		RSVP:         []string{},
		Announcement: []string{},
	}
}

// Decode parses a persisted snapshot, coercing malformed fields (wrong shape,
// non-array values, missing keys) to empty sets instead of failing. Legacy
// three-category payloads therefore gain an empty announcement set.
func Decode(data []byte) Registry {
	reg := Default()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return reg
	}
	reg.Officer = decodeKeys(raw["officer"])
	reg.Member = decodeKeys(raw["member"])
	reg.RSVP = decodeKeys(raw["rsvp"])
	reg.Announcement = decodeKeys(raw["announcement"])
	return reg
}

func decodeKeys(raw json.RawMessage) []string {
	if raw == nil {
		return []string{}
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil || keys == nil {
		return []string{}
	}
	return keys
}

// NormalizeKey trims and lowercases a raw key; matching is case and
// whitespace insensitive.
func NormalizeKey(raw string) string {
	return core.CleanString(raw, true /* lower */)
}

func (reg *Registry) keys(cat Category) *[]string {
	switch cat {
	case CategoryOfficer:
		return &reg.Officer
	case CategoryMember:
		return &reg.Member
	case CategoryRSVP:
		return &reg.RSVP
	case CategoryAnnouncement:
		return &reg.Announcement
	}
	return nil
}

func (reg *Registry) Keys(cat Category) []string {
	if keys := reg.keys(cat); keys != nil {
		return *keys
	}
	return nil
}

func (reg *Registry) Has(cat Category, key string) bool {
	for _, k := range reg.Keys(cat) {
		if k == key {
			return true
		}
	}
	return false
}

// Add records key in cat keeping set semantics; it reports whether the
// registry changed.
func (reg *Registry) Add(cat Category, key string) bool {
	if reg.Has(cat, key) {
		return false
	}
	keys := reg.keys(cat)
	if keys == nil {
		return false
	}
	*keys = append(*keys, key)
	sort.Strings(*keys)
	return true
}
