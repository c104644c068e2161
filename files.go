package users

import (
	"embed"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

//go:embed data/sql/schema
var schemaFS embed.FS

// GetSchemaFS returns the reference table definitions for this package
func GetSchemaFS() embed.FS {
	return schemaFS
}

// Schema returns the reference DDL for a dialect (sqlite, postgres, mysql).
func Schema(dialect string) (string, error) {
	raw, err := schemaFS.ReadFile("data/sql/schema/" + strings.ToLower(dialect) + ".sql")
	if err != nil {
		return "", goerrors.New("unknown schema dialect "+dialect, goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return string(raw), nil
}

// SchemaStatements splits the reference DDL into single statements.
func SchemaStatements(dialect string) ([]string, error) {
	ddl, err := Schema(dialect)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, stmt := range strings.Split(ddl, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out, nil
}
