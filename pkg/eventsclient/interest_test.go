package eventsclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseInterest(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Interest
		ok    bool
	}{
		{"string", "event.testEvent.#", Interest{RoutingKey: "event.testEvent.#"}, true},
		{"interest", Interest{RoutingKey: "a.*", ID: "g"}, Interest{RoutingKey: "a.*", ID: "g"}, true},
		{"interest_pointer", &Interest{RoutingKey: "a.*"}, Interest{RoutingKey: "a.*"}, true},
		{"map_any", map[string]any{"routingKey": "a.b", "id": "g"}, Interest{RoutingKey: "a.b", ID: "g"}, true},
		{"map_any_without_id", map[string]any{"routingKey": "a.b"}, Interest{RoutingKey: "a.b"}, true},
		{"map_any_nil_id", map[string]any{"routingKey": "a.b", "id": nil}, Interest{RoutingKey: "a.b"}, true},
		{"map_string", map[string]string{"routingKey": "a.b", "id": "g"}, Interest{RoutingKey: "a.b", ID: "g"}, true},
		{"map_any_extra_fields", map[string]any{"routingKey": "a", "durable": true}, Interest{RoutingKey: "a"}, true},

		{"empty_string", "", Interest{}, false},
		{"int", 12, Interest{}, false},
		{"float", 1.5, Interest{}, false},
		{"nil", nil, Interest{}, false},
		{"bool", true, Interest{}, false},
		{"empty_map", map[string]any{}, Interest{}, false},
		{"numeric_pattern", map[string]any{"routingKey": 1}, Interest{}, false},
		{"numeric_id", map[string]any{"routingKey": "a", "id": 1}, Interest{}, false},
		{"empty_map_string", map[string]string{"id": "g"}, Interest{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInterest(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterest_Matches(t *testing.T) {
	entry := Interest{RoutingKey: "a.#", ID: "g1"}
	plain := Interest{RoutingKey: "a.#"}

	assert.True(t, entry.Matches(Interest{RoutingKey: "a.#", ID: "g1"}))
	assert.True(t, entry.Matches(Interest{RoutingKey: "a.#"}), "request without id matches any id")
	assert.False(t, entry.Matches(Interest{RoutingKey: "a.#", ID: "g2"}))
	assert.False(t, plain.Matches(Interest{RoutingKey: "a.#", ID: "g1"}), "request id must match")
	assert.False(t, entry.Matches(Interest{RoutingKey: "a.*", ID: "g1"}))
	assert.False(t, plain.Matches(Interest{RoutingKey: "a"}), "no partial pattern matching")
}

func TestInterest_String(t *testing.T) {
	assert.Equal(t, "a.#", Interest{RoutingKey: "a.#"}.String())
	assert.Equal(t, "a.# (g)", Interest{RoutingKey: "a.#", ID: "g"}.String())
}

func TestInterest_Unmarshal(t *testing.T) {
	want := []Interest{
		{RoutingKey: "event.a.#"},
		{RoutingKey: "event.b.*", ID: "workers"},
	}

	t.Run("yaml_scalars_and_mappings", func(t *testing.T) {
		var keys []Interest
		err := yaml.Unmarshal([]byte(`
- event.a.#
- routingKey: event.b.*
  id: workers
`), &keys)
		require.NoError(t, err)
		assert.Equal(t, want, keys)
	})

	t.Run("json_strings_and_objects", func(t *testing.T) {
		var keys []Interest
		err := json.Unmarshal([]byte(`["event.a.#", {"routingKey": "event.b.*", "id": "workers"}]`), &keys)
		require.NoError(t, err)
		assert.Equal(t, want, keys)
	})

	t.Run("json_rejects_numbers", func(t *testing.T) {
		var keys []Interest
		assert.Error(t, json.Unmarshal([]byte(`[42]`), &keys))
	})

	t.Run("json_marshal_omits_empty_id", func(t *testing.T) {
		b, err := json.Marshal(Interest{RoutingKey: "a"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"routingKey":"a"}`, string(b))
	})
}
