package config

type TenantConfig interface {
	GetBaseDomain() string
	GetTenantParam() string
	GetTransferParam() string
}

type Tenant struct{}

var _ TenantConfig = Tenant{}

// GetBaseDomain returns the configured base domain (e.g. "kommi.click").
// Empty means subdomain resolution falls back to positional heuristics.
func (Tenant) GetBaseDomain() string {
	return GetEnv("BASE_DOMAIN", "")
}

// GetTenantParam returns the query parameter name used in selector mode.
func (Tenant) GetTenantParam() string {
	return GetEnv("TENANT_PARAM", "tenant")
}

// GetTransferParam returns the reserved query parameter used for
// cross-domain token handoff.
func (Tenant) GetTransferParam() string {
	return GetEnv("TRANSFER_PARAM", "_auth")
}
