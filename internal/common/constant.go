package common

// AccessTokenHeaderName is the gRPC/HTTP metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// TokenTypeBearer is reported to clients alongside issued token pairs.
const TokenTypeBearer = "bearer"
