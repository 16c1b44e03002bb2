package common

const (
	// AuthorizationHeaderName is the HTTP header and gRPC metadata key that
	// carries the admin bearer token.
	AuthorizationHeaderName = "authorization"

	// RequestIDHeaderName is the header propagated by the edge proxy.
	RequestIDHeaderName = "X-Request-ID"

	// FileRefSecretEnv names the environment variable holding the shared
	// file reference secret for both the server and ibcolctl.
	FileRefSecretEnv = "IBCOL_FILE_REF_SECRET"

	// AdminTokenSecretEnv names the HMAC secret used to mint and check admin tokens.
	AdminTokenSecretEnv = "IBCOL_ADMIN_TOKEN_SECRET"
)
