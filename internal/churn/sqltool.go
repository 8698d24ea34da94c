package churn

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mahmoud0nasser/Agentic-Banking-Churn-Chatbot/internal/model"
)

// ErrNotReadOnly rejects generated SQL that is not a single query.
var ErrNotReadOnly = eris.New("churn: only a single SELECT statement may run")

var (
	codeFence     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	leadingWord   = regexp.MustCompile(`^\s*([A-Za-z]+)`)
	writeKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|upsert|drop|alter|create|truncate|attach|detach|pragma|vacuum|reindex|grant|revoke|copy)\b`)
)

// SQLTool turns analytics questions into SQL over the customers table.
type SQLTool struct {
	oracle   TextOracle
	store    Store
	readOnly bool
}

// NewSQLTool creates the tool. With readOnly set only a single SELECT or
// WITH query is executed.
func NewSQLTool(oracle TextOracle, store Store, readOnly bool) *SQLTool {
	return &SQLTool{oracle: oracle, store: store, readOnly: readOnly}
}

// Generate asks the oracle for one SQL statement answering query.
func (t *SQLTool) Generate(ctx context.Context, query string) (string, error) {
	out, err := t.oracle.Generate(ctx, sqlPrompt, map[string]string{"query": query})
	if err != nil {
		return "", err
	}
	return cleanSQL(out), nil
}

// Execute generates SQL for query and runs it.
func (t *SQLTool) Execute(ctx context.Context, query string) (*model.Table, error) {
	stmt, err := t.Generate(ctx, query)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, stmt)
}

// Run answers query as a markdown table or a localized message.
func (t *SQLTool) Run(ctx context.Context, query, lang string) string {
	stmt, err := t.Generate(ctx, query)
	if err != nil {
		return errorText(lang, err)
	}
	table, err := t.run(ctx, stmt)
	if err != nil {
		return sqlErrorText(lang, err)
	}
	if table.Empty() {
		return message(lang, msgNoResults)
	}
	return table.Markdown()
}

func (t *SQLTool) run(ctx context.Context, stmt string) (*model.Table, error) {
	ctx, span := tracer.Start(ctx, "churn.sql")
	defer span.End()
	span.SetAttributes(attribute.String("db.statement", stmt))

	if t.readOnly {
		if err := checkReadOnly(stmt); err != nil {
			zap.L().Warn("churn: rejected generated sql", zap.String("sql", stmt), zap.Error(err))
			return nil, err
		}
	}
	table, err := t.store.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("churn: sql executed", zap.String("sql", stmt), zap.Int("rows", len(table.Rows)))
	return table, nil
}

// cleanSQL strips surrounding whitespace, a markdown fence and a trailing
// semicolon.
func cleanSQL(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
}

// checkReadOnly accepts one SELECT or WITH statement that writes nothing.
// Quoted text and comments are ignored when looking for separators and
// write keywords.
func checkReadOnly(stmt string) error {
	code := strings.TrimSpace(stripQuoted(stmt))
	code = strings.TrimSpace(strings.TrimSuffix(code, ";"))
	if code == "" {
		return eris.Wrap(ErrNotReadOnly, "empty statement")
	}
	if strings.Contains(code, ";") {
		return eris.Wrap(ErrNotReadOnly, "multiple statements")
	}
	m := leadingWord.FindStringSubmatch(code)
	if m == nil {
		return eris.Wrap(ErrNotReadOnly, "no leading keyword")
	}
	switch strings.ToUpper(m[1]) {
	case "SELECT", "WITH":
	default:
		return eris.Wrapf(ErrNotReadOnly, "statement starts with %s", strings.ToUpper(m[1]))
	}
	if kw := writeKeywords.FindString(code); kw != "" {
		return eris.Wrapf(ErrNotReadOnly, "statement contains %s", strings.ToUpper(kw))
	}
	return nil
}

// stripQuoted blanks out string literals, quoted identifiers and comments.
func stripQuoted(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			j := i + 1
			for j < len(rs) {
				if rs[j] == r {
					if j+1 < len(rs) && rs[j+1] == r {
						j += 2
						continue
					}
					break
				}
				j++
			}
			b.WriteString(" ")
			i = j
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			b.WriteString(" ")
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			j := i + 2
			for j+1 < len(rs) && !(rs[j] == '*' && rs[j+1] == '/') {
				j++
			}
			b.WriteString(" ")
			i = j + 1
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
