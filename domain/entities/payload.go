package entities

// RunRequest is the auxiliary payload of the run op.
type RunRequest struct {
	// Cmd is the program followed by its arguments.
	Cmd []string `json:"cmd" validate:"required,min=1,dive,required" jsonschema:"minItems=1,description=Program and arguments"`

	// Cwd is the working directory. Empty means the host's working directory.
	Cwd string `json:"cwd,omitempty" jsonschema:"description=Working directory"`

	// Env replaces the environment (KEY=VALUE). Empty inherits the host environment.
	Env []string `json:"env,omitempty" validate:"dive,contains==" jsonschema:"description=Environment as KEY=VALUE pairs"`

	// Stdin is written to the process's standard input.
	Stdin string `json:"stdin,omitempty" jsonschema:"description=Data written to standard input"`
}

// KillRequest is the optional auxiliary payload of the kill op.
type KillRequest struct {
	// Signal is the signal number to deliver. Zero selects SIGKILL.
	Signal int `json:"signal,omitempty" validate:"min=0,max=64" jsonschema:"minimum=0,maximum=64,description=Signal number (default SIGKILL)"`
}
