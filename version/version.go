package version

// Version is populated by the build system.
//nolint:gochecknoglobals
var Version = "development"

const Name = "sibling-launcher"
const EnvPrefix = "SIBLING_LAUNCHER"
const Description = "Dump the environment and run the launch script next to this binary"
