package utils

type contextKey string

// Request context keys populated by handlers
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"

	// Header-derived client address signals
	RealIPKey         contextKey = "x_real_ip"
	ForwardedForKey   contextKey = "x_forwarded_for"
	CFConnectingIPKey contextKey = "cf_connecting_ip"
)
