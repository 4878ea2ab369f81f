package ratelimit

import (
	"strings"
	"time"
)

// Class identifies an endpoint class with an independent quota.
type Class string

// Endpoint classes. Admin/security endpoints carry the strictest burst.
const (
	ClassAPI    Class = "api"
	ClassAuth   Class = "auth"
	ClassUpload Class = "upload"
	ClassExport Class = "export"
	ClassAdmin  Class = "admin"
)

// DefaultClasses returns the per-class quota configuration.
func DefaultClasses() map[Class]Config {
	return map[Class]Config{
		ClassAPI:    {Window: 1 * time.Minute, MaxRequests: 100},
		ClassAuth:   {Window: 15 * time.Minute, MaxRequests: 10, SkipSuccessful: true},
		ClassUpload: {Window: 1 * time.Hour, MaxRequests: 20},
		ClassExport: {Window: 1 * time.Minute, MaxRequests: 5},
		ClassAdmin:  {Window: 1 * time.Minute, MaxRequests: 30},
	}
}

// Key builds the composite counter key. Tenant and identity are both part
// of the key so per-tenant and per-identity isolation hold even when an IP
// is shared behind NAT or the caller is anonymous.
func Key(class Class, tenantID, userID, ip string) string {
	tenant := tenantID
	if tenant == "" {
		tenant = "global"
	}

	identity := userID
	if identity == "" {
		identity = ip
	}

	return strings.Join([]string{string(class), tenant, identity, ip}, ":")
}
