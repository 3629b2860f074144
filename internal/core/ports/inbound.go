package ports

import (
	"context"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
)

// MatterIntaker is the inbound contract for batch document intake.
type MatterIntaker interface {
	Intake(ctx context.Context, req domain.IntakeRequest) (*domain.IntakeResponse, error)
}

// PackageService is the inbound contract for readiness and package output.
type PackageService interface {
	Readiness(ctx context.Context, key domain.MatterKey) (*domain.Readiness, error)
	BuildPackage(ctx context.Context, key domain.MatterKey) (*domain.Package, error)
	CompiledArtifact(ctx context.Context, key domain.MatterKey) (*domain.CompiledArtifact, error)
	RecordIndex(ctx context.Context, key domain.MatterKey) ([]byte, error)
}

// ProfileCatalog is the read side of the compilation rule catalog.
type ProfileCatalog interface {
	Version() string
	Jurisdiction() string
	Profile(profileID string) (domain.CompilationProfile, error)
	Profiles() []domain.CompilationProfile
	HasForum(forum string) bool
	DefaultProfileForForum(forum string) (domain.CompilationProfile, bool)
}
