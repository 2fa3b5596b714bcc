package auth

// Known OAuth scopes used by the session API.
const (
	ScopeSessionsWrite = "sessions:write"
	ScopeSessionsRead  = "sessions:read"
)
