package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_DirectParse(t *testing.T) {
	var plan Plan
	err := extractJSON(`{"needs_tools": true, "reasoning": "because"}`, &plan)
	require.NoError(t, err)
	assert.True(t, plan.NeedsTools)
	assert.Equal(t, "because", plan.Reasoning)
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	response := "Sure, here is my analysis:\n```json\n{\"needs_tools\": false, \"reasoning\": \"just chat\"}\n```\nLet me know if that helps."
	var plan Plan
	err := extractJSON(response, &plan)
	require.NoError(t, err)
	assert.False(t, plan.NeedsTools)
	assert.Equal(t, "just chat", plan.Reasoning)
}

func TestExtractJSON_BracketScanWithNestedBraces(t *testing.T) {
	response := `I think this works: {"needs_tools": true, "reasoning": "nested {braces} in a string", "recommended_tools": []} — hope that helps!`
	var plan Plan
	err := extractJSON(response, &plan)
	require.NoError(t, err)
	assert.True(t, plan.NeedsTools)
	assert.Contains(t, plan.Reasoning, "nested")
}

func TestExtractJSON_NoJSONFound(t *testing.T) {
	var plan Plan
	err := extractJSON("I'm not going to give you JSON today.", &plan)
	assert.Error(t, err)
}

func TestFencedJSONBlock(t *testing.T) {
	block, ok := fencedJSONBlock("prefix ```json\n{\"a\":1}\n``` suffix")
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, block)

	_, ok = fencedJSONBlock("no fences here")
	assert.False(t, ok)
}

func TestBracketScan_QuotedBraceDoesNotConfuseDepth(t *testing.T) {
	obj, ok := bracketScan(`noise {"k": "a } b"} trailing`)
	require.True(t, ok)
	assert.Equal(t, `{"k": "a } b"}`, obj)
}
