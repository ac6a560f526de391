package core

import "context"

// AttributeUpdater is the default EntityUpdater. It checks values against a
// catalog and writes the normalized value onto each entity.
//
// In strict mode unknown attributes are rejected and locale/scope must match
// the attribute's localizable/scopable flags. Otherwise unknown attributes
// are stored verbatim as text; known attributes are still normalized.
type AttributeUpdater struct {
	catalog *Catalog
	strict  bool
}

// NewAttributeUpdater creates an updater backed by catalog.
func NewAttributeUpdater(catalog *Catalog, strict bool) *AttributeUpdater {
	return &AttributeUpdater{catalog: catalog, strict: strict}
}

// SetValue implements EntityUpdater.
func (u *AttributeUpdater) SetValue(ctx context.Context, entities []*Entity, attribute, raw, locale, scope string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := u.normalize(attribute, raw, locale, scope)
	if err != nil {
		return err
	}

	v := Value{Attribute: attribute, Locale: locale, Scope: scope, Data: data}
	for _, e := range entities {
		e.AddValue(v)
	}
	return nil
}

func (u *AttributeUpdater) normalize(attribute, raw, locale, scope string) (string, error) {
	def, ok := u.catalog.Get(attribute)
	if !ok {
		if u.strict {
			return "", &UnknownAttributeError{Code: attribute}
		}
		return raw, nil
	}

	invalid := func(reason string) error {
		return &InvalidValueError{Code: attribute, Value: raw, Locale: locale, Scope: scope, Reason: reason}
	}

	if def.Type == FieldIdentifier {
		return "", invalid("identifier cannot be changed")
	}

	if u.strict {
		switch {
		case def.Localizable && locale == "":
			return "", invalid("attribute is localizable, a locale is required")
		case !def.Localizable && locale != "":
			return "", invalid("attribute is not localizable")
		case def.Scopable && scope == "":
			return "", invalid("attribute is scopable, a scope is required")
		case !def.Scopable && scope != "":
			return "", invalid("attribute is not scopable")
		}
		if locale != "" && !u.catalog.localeAllowed(locale) {
			return "", invalid("locale " + locale + " is not activated")
		}
		if scope != "" && !u.catalog.scopeAllowed(scope) {
			return "", invalid("scope " + scope + " does not exist")
		}
	}

	data, err := NormalizeValue(def, raw)
	if err != nil {
		return "", invalid(err.Error())
	}
	return data, nil
}
