package forum

import (
	"strings"

	"gorm.io/gorm"
)

// SearchParams selects which topic fields a query is matched against.
type SearchParams struct {
	Query      string
	InTitle    bool
	InQuestion bool
	InUsername bool
}

func (p SearchParams) anyField() bool {
	return p.InTitle || p.InQuestion || p.InUsername
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

// Apply adds an OR of case-insensitive "contains" filters for the requested fields.
// With no fields requested, allWhenEmpty searches every field; otherwise nothing is filtered.
func (p SearchParams) Apply(db *gorm.DB, allWhenEmpty bool) *gorm.DB {
	if p.Query == "" {
		return db
	}
	if !p.anyField() {
		if !allWhenEmpty {
			return db
		}
		p.InTitle, p.InQuestion, p.InUsername = true, true, true
	}

	pattern := containsPattern(p.Query)
	var clauses []string
	var args []interface{}
	if p.InTitle {
		clauses = append(clauses, `LOWER(topics.title) LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	if p.InQuestion {
		clauses = append(clauses, `LOWER(topics.question) LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	if p.InUsername {
		db = db.Joins("JOIN users AS search_authors ON search_authors.id = topics.author_id")
		clauses = append(clauses, `LOWER(search_authors.username) LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
}
