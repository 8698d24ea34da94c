package model

import (
	"sort"
	"strings"
)

// Prompt is a named oracle prompt. Template placeholders are written
// {name} and filled by Render.
type Prompt struct {
	Name     string
	Template string
}

// Render substitutes every {key} in the template with vars[key]. Unknown
// placeholders are left as written.
func (p Prompt) Render(vars map[string]string) string {
	if len(vars) == 0 {
		return p.Template
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(p.Template)
}
