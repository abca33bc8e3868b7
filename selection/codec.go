package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// CurrentVersion is the schema version written by Encode.
//
// Version 1 (and data with no version at all) is the original browser format:
// a bare object keyed by product ID whose addon indexes are strings, either as
// an array ("addonServices": ["0","2"]) or a flag map ("addonServices": {"0": true}).
const CurrentVersion = 2

var (
	ErrMalformed          = errors.New("selection: malformed data")
	ErrUnsupportedVersion = errors.New("selection: unsupported version")
)

type envelope struct {
	Version int             `json:"version"`
	Items   json.RawMessage `json:"items"`
}

type legacyEntry struct {
	Installation  bool            `json:"installation"`
	AddonServices json.RawMessage `json:"addonServices"`
}

// Encode serializes s in the current versioned format.
func Encode(s Selection) ([]byte, error) {
	if s == nil {
		s = New()
	}
	items, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: CurrentVersion, Items: items})
}

// Decode parses any known version, migrating older formats.
func Decode(data []byte) (Selection, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rawVersion, versioned := top["version"]
	if !versioned {
		return decodeLegacy(top)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: version %s: %v", ErrMalformed, rawVersion, err)
	}

	switch env.Version {
	case 1:
		var items map[string]json.RawMessage
		if err := json.Unmarshal(env.Items, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return decodeLegacy(items)
	case CurrentVersion:
		out := New()
		if len(env.Items) == 0 || string(env.Items) == "null" {
			return out, nil
		}
		if err := json.Unmarshal(env.Items, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for id, sel := range out {
			out[id] = normalize(sel)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
}

func decodeLegacy(items map[string]json.RawMessage) (Selection, error) {
	out := New()
	for id, raw := range items {
		var e legacyEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrMalformed, id, err)
		}
		addons, err := legacyAddons(e.AddonServices)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrMalformed, id, err)
		}
		out[id] = normalize(ServiceSelection{Installation: e.Installation, Addons: addons})
	}
	return out, nil
}

// legacyAddons accepts ["0","2"], [0,2] or {"0":true,"2":false}.
func legacyAddons(raw json.RawMessage) ([]int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []int
		for _, v := range list {
			if i, ok := parseIndex(v); ok {
				out = append(out, i)
			}
		}
		return out, nil
	}

	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, err
	}
	var out []int
	for k, on := range flags {
		if !on {
			continue
		}
		if i, err := strconv.Atoi(k); err == nil && i >= 0 {
			out = append(out, i)
		}
	}
	return out, nil
}

func parseIndex(v json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(v, &n); err == nil {
		return n, n >= 0
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// normalize sorts and de-duplicates addon indexes, dropping negatives.
func normalize(s ServiceSelection) ServiceSelection {
	addons := slices.DeleteFunc(slices.Clone(s.Addons), func(i int) bool { return i < 0 })
	slices.Sort(addons)
	addons = slices.Compact(addons)
	if len(addons) == 0 {
		addons = nil
	}
	return ServiceSelection{Installation: s.Installation, Addons: addons}
}
