// Package retrieval turns a request into a query and fetches ranked context from the active index.
package retrieval

import (
	"strings"

	"github.com/jonathan/cover-letter-rag/internal/types"
)

// Query describes one retrieval. Base is the text that gets embedded; a non-nil
// RoleFilter restricts results to chunks whose role matches it case-insensitively.
type Query struct {
	Base       string
	RoleFilter *string
}

// BuildQuery composes the retrieval text for a generation request.
func BuildQuery(role, company string, experience types.ExperienceType) Query {
	return Query{Base: joinFields(role, company, string(experience))}
}

// RoleQuery composes a role-filtered query for browsing context by role.
func RoleQuery(role string, experience types.ExperienceType) Query {
	role = joinFields(role)
	return Query{Base: joinFields(role, string(experience)), RoleFilter: &role}
}

// WithRoleFilter returns a copy of q restricted to role.
func (q Query) WithRoleFilter(role string) Query {
	role = joinFields(role)
	q.RoleFilter = &role
	return q
}

func joinFields(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func roleMatches(filter *string, role string) bool {
	return filter == nil || strings.EqualFold(*filter, joinFields(role))
}
