package workspace

import (
	"context"

	"github.com/quietops/appsweep/internal/lifecycle"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks github.com/quietops/appsweep/internal/workspace Service,Secrets

// Service is the narrow contract the sweep depends on. The HTTP client
// implements it against the workspace REST API; tests mock it.
type Service interface {
	ListApps(ctx context.Context) ([]lifecycle.App, error)
	StopApp(ctx context.Context, name string) error
	DeleteApp(ctx context.Context, name string) error
}

// Secrets resolves a credential for an application_id within a named scope.
type Secrets interface {
	Get(scope, key string) (string, error)
}
