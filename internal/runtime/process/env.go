package process

// EnvName and EnvVersion are set in every child's environment from its spec.
const (
	EnvName    = "NAME"
	EnvVersion = "VERSION"
)
