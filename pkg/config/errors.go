package config

import "errors"

var (
	// ErrConfigFileNotFound is returned when the config file does not exist
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidUpstreamURL is returned when a hub or gateway URL cannot be parsed
	ErrInvalidUpstreamURL = errors.New("upstream URL must be an absolute http or https URL")

	// ErrInvalidRegistrationFormat is returned for an unknown gateway.registration_format
	ErrInvalidRegistrationFormat = errors.New("registration_format must be \"structured\" or \"flat\"")

	// ErrInvalidDuration is returned when a duration string cannot be parsed
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidKVSType is returned for an unknown kvs.type
	ErrInvalidKVSType = errors.New("kvs type must be one of: memory, leveldb, redis")

	// ErrInvalidPort is returned when server.port is out of range
	ErrInvalidPort = errors.New("server port must be between 1 and 65535")

	// ErrInvalidRateLimit is returned when the login rate limit is negative
	ErrInvalidRateLimit = errors.New("login_rate_limit requests must not be negative")

	// ErrUsernameRequired is returned when auth is enabled without a username
	ErrUsernameRequired = errors.New("auth username is required when auth is enabled")

	// ErrInvalidPasswordHash is returned when auth.password_hash is not a bcrypt hash
	ErrInvalidPasswordHash = errors.New("auth password_hash must be a bcrypt hash")

	// ErrInvalidSameSite is returned for an unknown cookie same_site value
	ErrInvalidSameSite = errors.New("cookie same_site must be one of: lax, strict, none")
)
