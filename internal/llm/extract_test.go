package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFromProse(t *testing.T) {
	text := `Sure! Here is the profile you asked for:

{"mission": "help teams ship", "pillars": ["speed", "trust"]}

Let me know if you need anything else.`

	var out map[string]interface{}
	require.NoError(t, ExtractJSON(text, &out))
	assert.Equal(t, "help teams ship", out["mission"])
	assert.Len(t, out["pillars"], 2)
}

func TestExtractJSONFromCodeFence(t *testing.T) {
	text := "```json\n{\"name\": \"Acme\"}\n```"

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, ExtractJSON(text, &out))
	assert.Equal(t, "Acme", out.Name)
}

func TestExtractJSONNestedBraces(t *testing.T) {
	text := `{"outer": {"inner": {"deep": 1}}, "note": "a } inside a string"}`

	var out map[string]interface{}
	require.NoError(t, ExtractJSON(text, &out))
	assert.Equal(t, "a } inside a string", out["note"])
}

func TestExtractJSONArray(t *testing.T) {
	text := `The classifications are:
[{"id": "q-1", "vertical": "fintech"}, {"id": "q-2", "vertical": "devops"}]`

	var out []struct {
		ID       string `json:"id"`
		Vertical string `json:"vertical"`
	}
	require.NoError(t, ExtractJSONArray(text, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "devops", out[1].Vertical)
}

func TestExtractJSONNoneFound(t *testing.T) {
	var out map[string]interface{}
	assert.ErrorIs(t, ExtractJSON("no structured data here", &out), ErrNoJSON)

	var arr []string
	assert.ErrorIs(t, ExtractJSONArray("still nothing", &arr), ErrNoJSON)
}

func TestExtractJSONUnbalanced(t *testing.T) {
	var out map[string]interface{}
	assert.ErrorIs(t, ExtractJSON(`{"truncated": "respon`, &out), ErrNoJSON)
}
