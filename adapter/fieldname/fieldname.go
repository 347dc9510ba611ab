// Package fieldname centralizes the naming conventions of stored documents:
// reserved names of built-in fields, the pointer prefix and the per-provider
// auth data keys. No other package builds or strips these prefixes.
package fieldname

import (
	"regexp"
	"strings"
)

// Reserved store keys.
const (
	ID             = "_id"
	CreatedAt      = "_created_at"
	UpdatedAt      = "_updated_at"
	ReadPerm       = "_rperm"
	WritePerm      = "_wperm"
	LegacyACL      = "_acl"
	HashedPassword = "_hashed_password"
	SessionToken   = "_session_token"
	LastUsed       = "_last_used"
	TimesUsed      = "times_used"
	Metadata       = "_metadata"
	ClientPerms    = "_client_permissions"
)

// Application field names with special handling.
const (
	ObjectID      = "objectId"
	AppCreatedAt  = "createdAt"
	AppUpdatedAt  = "updatedAt"
	ACL           = "ACL"
	AuthData      = "authData"
	ExpiresAt     = "expiresAt"
	AppSession    = "sessionToken"
	AppLastUsed   = "lastUsed"
	AppTimesUsed  = "timesUsed"
	PointerPrefix = "_p_"
	authPrefix    = "_auth_data_"
)

// UserClass is the class whose auth data is split per provider.
const UserClass = "_User"

var toStore = map[string]string{
	ObjectID:     ID,
	AppCreatedAt: CreatedAt,
	AppUpdatedAt: UpdatedAt,
	AppSession:   SessionToken,
	AppLastUsed:  LastUsed,
	AppTimesUsed: TimesUsed,
}

var fromStore = map[string]string{
	ID:           ObjectID,
	CreatedAt:    AppCreatedAt,
	UpdatedAt:    AppUpdatedAt,
	SessionToken: AppSession,
	LastUsed:     AppLastUsed,
	TimesUsed:    AppTimesUsed,
	// legacy spellings
	AppCreatedAt: AppCreatedAt,
	AppUpdatedAt: AppUpdatedAt,
	AppLastUsed:  AppLastUsed,
	AppTimesUsed: AppTimesUsed,
}

var timeFields = map[string]bool{
	AppCreatedAt:                     true,
	AppUpdatedAt:                     true,
	ExpiresAt:                        true,
	AppLastUsed:                      true,
	"_email_verify_token_expires_at": true,
	"_account_lockout_expires_at":    true,
	"_perishable_token_expires_at":   true,
	"_password_changed_at":           true,
}

var passThrough = map[string]bool{
	"_email_verify_token":            true,
	"_perishable_token":              true,
	"_perishable_token_expires_at":   true,
	"_password_changed_at":           true,
	"_tombstone":                     true,
	"_email_verify_token_expires_at": true,
	"_account_lockout_expires_at":    true,
	"_failed_login_count":            true,
	"_password_history":              true,
}

var authQueryKey = regexp.MustCompile(`^authData\.([a-zA-Z0-9_]+)\.id$`)

// Builtin returns the reserved store name of a built-in field.
func Builtin(name string) (string, bool) {
	s, ok := toStore[name]
	return s, ok
}

// FromStore returns the application name of a reserved built-in key.
func FromStore(key string) (string, bool) {
	s, ok := fromStore[key]
	return s, ok
}

// IsTimeField reports whether the application field always holds a
// timestamp.
func IsTimeField(name string) bool {
	return timeFields[name]
}

// IsPassThrough reports whether a reserved key is copied verbatim between the
// application object and the store document.
func IsPassThrough(key string) bool {
	return passThrough[key]
}

// IsReserved reports whether a key uses the reserved underscore prefix.
func IsReserved(key string) bool {
	return strings.HasPrefix(key, "_")
}

// Pointer returns the store key of a pointer field.
func Pointer(name string) string {
	return PointerPrefix + name
}

// StripPointer returns the field name behind a pointer store key.
func StripPointer(key string) (string, bool) {
	return strings.CutPrefix(key, PointerPrefix)
}

// AuthDataKey returns the store key holding the auth data of provider.
func AuthDataKey(provider string) string {
	return authPrefix + provider
}

// AuthProvider returns the provider whose auth data is stored under key.
func AuthProvider(key string) (string, bool) {
	p, ok := strings.CutPrefix(key, authPrefix)
	return p, ok && p != ""
}

// AuthDataQuery rewrites an "authData.<provider>.id" query key.
func AuthDataQuery(key string) (string, bool) {
	m := authQueryKey.FindStringSubmatch(key)
	if m == nil {
		return "", false
	}
	return AuthDataKey(m[1]) + ".id", true
}
