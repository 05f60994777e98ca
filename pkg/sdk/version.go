package sdk

// SupportedSchemaMajor is the major version of the waypoint://schema
// document this client understands.
const SupportedSchemaMajor = "1"
