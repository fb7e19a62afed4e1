package servicemanager

import "context"

// Service is the lifecycle every long running component implements.
//
// Init is called synchronously when the service is added. Start runs until ctx is
// done and closes readyCh once the service is serving. Stop is called after every
// Start has returned, in reverse order of registration.
type Service interface {
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
	Init(ctx context.Context) error
	Start(ctx context.Context, readyCh chan<- struct{}) error
	Stop(ctx context.Context) error
}
