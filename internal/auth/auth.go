// Package auth validates API keys and binds each request to a tenant
// scope. A key either belongs to one merchant (its store name) or to an
// internal analyst with full visibility (empty scope).
package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const (
	RoleMerchant = "merchant"
	RoleAnalyst  = "analyst"
)

type Identity struct {
	TenantScope string // store name; empty grants full visibility
	Roles       []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// CanAccess reports whether the identity may open a session over the
// requested tenant scope. Analyst keys reach every scope; merchant keys
// only their own store.
func (i Identity) CanAccess(tenantScope string) bool {
	if i.TenantScope == "" {
		return true
	}
	return strings.EqualFold(i.TenantScope, tenantScope)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses a comma-separated key spec. Each
// entry is key:store name:role|role; an empty store name marks an
// analyst key with full visibility.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:store:role|role", entry)
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key", entry)
		}
		tenantScope := strings.TrimSpace(parts[1])
		roleParts := strings.Split(strings.TrimSpace(parts[2]), "|")
		roles := make([]string, 0, len(roleParts))
		for _, role := range roleParts {
			role = strings.TrimSpace(role)
			if role == "" {
				continue
			}
			roles = append(roles, role)
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
		}
		sort.Strings(roles)
		validator.keys[key] = Identity{TenantScope: tenantScope, Roles: roles}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
