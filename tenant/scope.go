// Package tenant defines the (tenant, project) scoping tuple that every
// RAE entity is keyed by. Tenant isolation is the one invariant no
// repository may violate: no query may return a row whose tenant differs
// from the scope it was issued with.
package tenant

import "fmt"

// Scope identifies the (tenant, project) namespace a request operates in.
// ProjectID may be empty to mean "all projects for this tenant" on read
// paths that explicitly support that (never on write paths).
type Scope struct {
	TenantID  string `json:"tenant_id" yaml:"tenant_id"`
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
}

// New builds a Scope, a small convenience over the struct literal used at
// every repository call site.
func New(tenantID, projectID string) Scope {
	return Scope{TenantID: tenantID, ProjectID: projectID}
}

// Validate reports an error if TenantID is empty. ProjectID emptiness is
// valid for scope-wide reads; callers that require a project must check
// RequireProject themselves.
func (s Scope) Validate() error {
	if s.TenantID == "" {
		return fmt.Errorf("tenant: tenant_id is required")
	}
	return nil
}

// RequireProject additionally validates that ProjectID is set, for the
// write paths where "all projects" makes no sense (store, upsert_node, ...).
func (s Scope) RequireProject() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ProjectID == "" {
		return fmt.Errorf("tenant: project_id is required")
	}
	return nil
}

// Contains reports whether this scope is equal to or a superset of other —
// used to check ownership: the caller's scope "contains" a row's scope
// when the tenant matches and either the project matches or the caller's
// scope has no project restriction.
func (s Scope) Contains(other Scope) bool {
	if s.TenantID != other.TenantID {
		return false
	}
	if s.ProjectID == "" {
		return true
	}
	return s.ProjectID == other.ProjectID
}

// String renders "tenant/project" or just "tenant" when ProjectID is empty.
func (s Scope) String() string {
	if s.ProjectID == "" {
		return s.TenantID
	}
	return s.TenantID + "/" + s.ProjectID
}
