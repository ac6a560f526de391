package core

import "context"

// IdentityResolver looks up the existing entity for a business identifier.
type IdentityResolver struct {
	query  EntityQuery
	locale string
	scope  string
}

// NewIdentityResolver returns a resolver querying in the given locale/scope.
func NewIdentityResolver(query EntityQuery, locale, scope string) *IdentityResolver {
	return &IdentityResolver{query: query, locale: locale, scope: scope}
}

// Resolve returns the first entity whose identifierCode attribute equals
// value, or nil when there is none. It issues exactly one query.
func (r *IdentityResolver) Resolve(ctx context.Context, identifierCode, value string) (*Entity, error) {
	matches, err := r.query.Find(ctx, Filter{
		Attribute: identifierCode,
		Operator:  OpEquals,
		Value:     value,
	}, r.locale, r.scope)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}
