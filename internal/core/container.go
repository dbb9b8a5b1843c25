package core

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"time"
)

// ImagePullPolicy controls when a JobHost pulls a container image.
type ImagePullPolicy string

const (
	PullAlways       ImagePullPolicy = "Always"
	PullIfNotPresent ImagePullPolicy = "IfNotPresent"
	PullNever        ImagePullPolicy = "Never"
)

// Valid reports whether p is one of the known pull policies.
func (p ImagePullPolicy) Valid() bool {
	switch p {
	case PullAlways, PullIfNotPresent, PullNever:
		return true
	default:
		return false
	}
}

// jobNameRegex matches names usable as container name components.
var jobNameRegex = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

const maxJobNameLength = 63

// Container describes one container of a job.
type Container struct {
	Image              string            `yaml:"image" json:"image"`
	ImagePullPolicy    ImagePullPolicy   `yaml:"imagePullPolicy" json:"imagePullPolicy,omitempty"`
	Command            []string          `yaml:"command" json:"command,omitempty"`
	Arguments          []string          `yaml:"arguments" json:"arguments,omitempty"`
	Environment        map[string]string `yaml:"environment" json:"environment,omitempty"`
	WorkingDirectory   string            `yaml:"workingDirectory" json:"workingDirectory,omitempty"`
	WorkspaceMountPath string            `yaml:"workspaceMountPath" json:"workspaceMountPath,omitempty"`
	SourceMountPath    string            `yaml:"sourceMountPath" json:"sourceMountPath,omitempty"`
	Privileged         bool              `yaml:"privileged" json:"privileged,omitempty"`
}

// Validate checks the container and fills in the default pull policy.
func (c *Container) Validate(field string) error {
	if c.Image == "" {
		return &ValidationError{Field: field + ".image", Reason: "must not be empty"}
	}
	if c.ImagePullPolicy == "" {
		c.ImagePullPolicy = PullIfNotPresent
	}
	if !c.ImagePullPolicy.Valid() {
		return &ValidationError{
			Field:  field + ".imagePullPolicy",
			Reason: fmt.Sprintf("unknown policy %q", c.ImagePullPolicy),
		}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c Container) Clone() Container {
	c.Command = slices.Clone(c.Command)
	c.Arguments = slices.Clone(c.Arguments)
	c.Environment = maps.Clone(c.Environment)
	return c
}

// HostSelector constrains where a job may be scheduled.
type HostSelector struct {
	OS           string            `yaml:"os" json:"os,omitempty"`
	NodeSelector map[string]string `yaml:"nodeSelector" json:"nodeSelector,omitempty"`
}

// JobSpec is everything a JobHost needs to run a job.
type JobSpec struct {
	Name              string               `yaml:"name" json:"name"`
	PrimaryContainer  Container            `yaml:"primaryContainer" json:"primaryContainer"`
	SidecarContainers map[string]Container `yaml:"sidecarContainers" json:"sidecarContainers,omitempty"`
	// Timeout of zero means the job may run indefinitely.
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	// Fallible jobs may fail without failing the group that runs them.
	Fallible bool          `yaml:"fallible" json:"fallible,omitempty"`
	Host     *HostSelector `yaml:"host" json:"host,omitempty"`
}

// Validate checks the spec and normalizes defaults in place.
func (s *JobSpec) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(s.Name) > maxJobNameLength || !jobNameRegex.MatchString(s.Name) {
		return &ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("%q must be a lowercase DNS label of at most %d characters", s.Name, maxJobNameLength),
		}
	}
	if err := s.PrimaryContainer.Validate("primaryContainer"); err != nil {
		return err
	}
	for name, sidecar := range s.SidecarContainers {
		if !jobNameRegex.MatchString(name) {
			return &ValidationError{Field: "sidecarContainers", Reason: fmt.Sprintf("invalid sidecar name %q", name)}
		}
		if err := sidecar.Validate("sidecarContainers." + name); err != nil {
			return err
		}
		s.SidecarContainers[name] = sidecar
	}
	if s.Timeout < 0 {
		return &ValidationError{Field: "timeout", Reason: fmt.Sprintf("must be >= 0, got %s", s.Timeout)}
	}
	return nil
}

// Clone returns a deep copy of s.
func (s JobSpec) Clone() JobSpec {
	s.PrimaryContainer = s.PrimaryContainer.Clone()
	if s.SidecarContainers != nil {
		sidecars := make(map[string]Container, len(s.SidecarContainers))
		for name, c := range s.SidecarContainers {
			sidecars[name] = c.Clone()
		}
		s.SidecarContainers = sidecars
	}
	if s.Host != nil {
		host := *s.Host
		host.NodeSelector = maps.Clone(host.NodeSelector)
		s.Host = &host
	}
	return s
}
