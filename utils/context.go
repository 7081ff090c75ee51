package utils

type contextKey string

// Request-scoped context keys set by handlers before calling a flow
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
	ActorKey     contextKey = "actor"
)
