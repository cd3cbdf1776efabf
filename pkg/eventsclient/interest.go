package eventsclient

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Interest is one desired subscription: a routing-key pattern plus an
// optional share identifier. Clients binding the same pattern with the same
// non-empty ID form a group the server load-balances events across.
type Interest struct {
	RoutingKey string `json:"routingKey" yaml:"routingKey" cbor:"routingKey"`
	ID         string `json:"id,omitempty" yaml:"id,omitempty" cbor:"id,omitempty"`
}

// Matches reports whether the registry entry i is the one a removal
// request refers to. Patterns must be equal; the request's ID, when set,
// must equal the entry's.
func (i Interest) Matches(req Interest) bool {
	if i.RoutingKey != req.RoutingKey {
		return false
	}
	return req.ID == "" || req.ID == i.ID
}

func (i Interest) String() string {
	if i.ID == "" {
		return i.RoutingKey
	}
	return i.RoutingKey + " (" + i.ID + ")"
}

// ParseInterest normalises caller input. It accepts a non-empty string, an
// Interest or *Interest with a pattern, or a map with a string "routingKey"
// and an optional string "id".
func ParseInterest(key any) (Interest, bool) {
	switch k := key.(type) {
	case string:
		if k == "" {
			return Interest{}, false
		}
		return Interest{RoutingKey: k}, true
	case Interest:
		return k, k.RoutingKey != ""
	case *Interest:
		if k == nil || k.RoutingKey == "" {
			return Interest{}, false
		}
		return *k, true
	case map[string]string:
		if k["routingKey"] == "" {
			return Interest{}, false
		}
		return Interest{RoutingKey: k["routingKey"], ID: k["id"]}, true
	case map[string]any:
		pattern, ok := k["routingKey"].(string)
		if !ok || pattern == "" {
			return Interest{}, false
		}
		in := Interest{RoutingKey: pattern}
		if raw, present := k["id"]; present && raw != nil {
			id, ok := raw.(string)
			if !ok {
				return Interest{}, false
			}
			in.ID = id
		}
		return in, true
	}
	return Interest{}, false
}

// interestFields avoids recursing into the custom unmarshalers.
type interestFields Interest

// UnmarshalYAML accepts a bare pattern or a {routingKey, id} mapping.
func (i *Interest) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var pattern string
		if err := value.Decode(&pattern); err != nil {
			return err
		}
		*i = Interest{RoutingKey: pattern}
		return nil
	}

	var f interestFields
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("invalid interest at line %d: %w", value.Line, err)
	}
	*i = Interest(f)
	return nil
}

// UnmarshalJSON accepts a bare pattern or a {routingKey, id} object.
func (i *Interest) UnmarshalJSON(b []byte) error {
	var pattern string
	if err := json.Unmarshal(b, &pattern); err == nil {
		*i = Interest{RoutingKey: pattern}
		return nil
	}

	var f interestFields
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("invalid interest: %w", err)
	}
	*i = Interest(f)
	return nil
}
