package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptRender(t *testing.T) {
	p := Prompt{Name: "recommend", Template: "Based on customer data: {data}\nRespond in {language}. Keep {unknown}."}

	got := p.Render(map[string]string{"data": `{"Age":40}`, "language": "ar"})
	assert.Equal(t, "Based on customer data: {\"Age\":40}\nRespond in ar. Keep {unknown}.", got)
}

func TestPromptRender_ValuesAreNotReexpanded(t *testing.T) {
	p := Prompt{Template: "{a} {b}"}
	assert.Equal(t, "{b} x", p.Render(map[string]string{"a": "{b}", "b": "x"}))
}

func TestPromptRender_NoVars(t *testing.T) {
	p := Prompt{Template: "Respond with {query}"}
	assert.Equal(t, "Respond with {query}", p.Render(nil))
}
