package workspace

import "context"

// ResourceStatus describes the observed state of a workspace resource.
type ResourceStatus string

const (
	StatusMissing ResourceStatus = "missing"
	StatusRunning ResourceStatus = "running"
	StatusStopped ResourceStatus = "stopped"
)

// Backend creates and destroys workspace resources. The docker backend is the
// production implementation; tests substitute a fake.
type Backend interface {
	// Up pulls the image if needed and ensures the container exists and is
	// running under the given name.
	Up(ctx context.Context, name string, r *Resource, envVars map[string]string) error

	// Down stops and removes the container. Missing containers are not an
	// error.
	Down(ctx context.Context, name string) error

	// Restart restarts a running container.
	Restart(ctx context.Context, name string) error

	// Status reports whether the container exists and is running.
	Status(ctx context.Context, name string) (ResourceStatus, error)
}
