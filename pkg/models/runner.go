package models

import (
	"encoding/json"
	"fmt"
)

// RunnerKind tags the execution target of a component.
type RunnerKind string

const (
	RunnerInline RunnerKind = "inline"
	RunnerDocker RunnerKind = "docker"
	RunnerRemote RunnerKind = "remote"
)

// InlineRunnerConfig executes the component in-process.
type InlineRunnerConfig struct {
	Concurrency int `json:"concurrency,omitempty"`
}

// DockerRunnerConfig executes the component in an isolated container.
type DockerRunnerConfig struct {
	Image          string            `json:"image"`
	Command        []string          `json:"command,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	Network        string            `json:"network,omitempty"`
}

// RemoteRunnerConfig executes the component on a remote service endpoint.
type RemoteRunnerConfig struct {
	Endpoint       string `json:"endpoint"`
	AuthSecretName string `json:"auth_secret_name,omitempty"`
}

// RunnerConfig is a closed tagged union over the three execution targets.
// Exactly one variant is set, matching Kind.
type RunnerConfig struct {
	Kind   RunnerKind          `json:"kind"`
	Inline *InlineRunnerConfig `json:"inline,omitempty"`
	Docker *DockerRunnerConfig `json:"docker,omitempty"`
	Remote *RemoteRunnerConfig `json:"remote,omitempty"`
}

// InlineRunner returns an inline runner config.
func InlineRunner() RunnerConfig {
	return RunnerConfig{Kind: RunnerInline, Inline: &InlineRunnerConfig{}}
}

// DockerRunner returns a docker runner config for the given image and command.
func DockerRunner(cfg DockerRunnerConfig) RunnerConfig {
	return RunnerConfig{Kind: RunnerDocker, Docker: &cfg}
}

// RemoteRunner returns a remote runner config for the given endpoint.
func RemoteRunner(cfg RemoteRunnerConfig) RunnerConfig {
	return RunnerConfig{Kind: RunnerRemote, Remote: &cfg}
}

// Validate checks that the variant matching Kind is present.
func (rc *RunnerConfig) Validate() error {
	switch rc.Kind {
	case RunnerInline:
		return nil
	case RunnerDocker:
		if rc.Docker == nil || rc.Docker.Image == "" {
			return fmt.Errorf("docker runner requires an image")
		}

		return nil
	case RunnerRemote:
		if rc.Remote == nil || rc.Remote.Endpoint == "" {
			return fmt.Errorf("remote runner requires an endpoint")
		}

		return nil
	default:
		return &UnsupportedRunnerError{RunnerKind: string(rc.Kind)}
	}
}

// UnmarshalJSON rejects unknown runner kinds up front so a bad definition
// never reaches dispatch.
func (rc *RunnerConfig) UnmarshalJSON(data []byte) error {
	type alias RunnerConfig

	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*rc = RunnerConfig(raw)

	return rc.Validate()
}

// UnsupportedRunnerError reports an unknown runner tag. Fatal: dispatch is an
// exhaustive switch and an unknown tag means a corrupted or newer definition.
type UnsupportedRunnerError struct {
	RunnerKind string
}

func (e *UnsupportedRunnerError) Error() string {
	return fmt.Sprintf("unsupported runner kind %q", e.RunnerKind)
}

// Kind implements Kinder.
func (e *UnsupportedRunnerError) Kind() ErrorKind {
	return KindUnsupportedRunner
}
