package runner

import (
	"fmt"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// ContainerError reports a failure of the container lifecycle. PartialOutput
// holds whatever stdout was captured before the failure.
type ContainerError struct {
	Image         string
	ContainerID   string
	ExitCode      int64
	Message       string
	PartialOutput string
	Err           error
}

func (e *ContainerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("container %s: %s: %v", e.Image, e.Message, e.Err)
	}

	return fmt.Sprintf("container %s: %s", e.Image, e.Message)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// Kind implements models.Kinder.
func (e *ContainerError) Kind() models.ErrorKind {
	return models.KindContainer
}

// ServiceError reports a failed remote runner call.
type ServiceError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}

	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Endpoint, e.Message, e.Err)
	}

	return fmt.Sprintf("remote %s: %s", e.Endpoint, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Kind implements models.Kinder.
func (e *ServiceError) Kind() models.ErrorKind {
	return models.KindService
}

// TimeoutError reports an action that exceeded its allotted time.
type TimeoutError struct {
	Subject string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Subject)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Kind implements models.Kinder.
func (e *TimeoutError) Kind() models.ErrorKind {
	return models.KindTimeout
}
