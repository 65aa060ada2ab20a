package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func u64Ptr(v uint64) *uint64 { return &v }

func catalogDescriptor(pkgPath string) domain.PackageDescriptor {
	return domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{PkgPath: pkgPath}}
}

func TestPackageDescriptor_InvalidatesExistingResolution(t *testing.T) {
	t.Parallel()

	base := domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
		PkgPath:  "hello",
		Version:  strPtr("1.2"),
		Systems:  []string{"aarch64-linux"},
		Priority: u64Ptr(5),
	}}

	tests := []struct {
		name        string
		edited      domain.PackageDescriptor
		invalidates bool
	}{
		{
			name:        "identical descriptor",
			edited:      base,
			invalidates: false,
		},
		{
			name: "priority edit never invalidates",
			edited: domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
				PkgPath:  "hello",
				Version:  strPtr("1.2"),
				Systems:  []string{"aarch64-linux"},
				Priority: u64Ptr(100),
			}},
			invalidates: false,
		},
		{
			name: "pkg-path edit invalidates",
			edited: domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
				PkgPath:  "ripgrep",
				Version:  strPtr("1.2"),
				Systems:  []string{"aarch64-linux"},
				Priority: u64Ptr(5),
			}},
			invalidates: true,
		},
		{
			name: "version edit invalidates",
			edited: domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
				PkgPath:  "hello",
				Version:  strPtr("1.3"),
				Systems:  []string{"aarch64-linux"},
				Priority: u64Ptr(5),
			}},
			invalidates: true,
		},
		{
			name: "group edit invalidates",
			edited: domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
				PkgPath:  "hello",
				PkgGroup: strPtr("tools"),
				Version:  strPtr("1.2"),
				Systems:  []string{"aarch64-linux"},
				Priority: u64Ptr(5),
			}},
			invalidates: true,
		},
		{
			name: "systems edit invalidates",
			edited: domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
				PkgPath:  "hello",
				Version:  strPtr("1.2"),
				Systems:  []string{"aarch64-linux", "x86_64-linux"},
				Priority: u64Ptr(5),
			}},
			invalidates: true,
		},
		{
			name: "kind change invalidates",
			edited: domain.PackageDescriptor{Flake: &domain.FlakeDescriptor{
				Flake: "github:NixOS/nixpkgs#hello",
			}},
			invalidates: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.invalidates, tc.edited.InvalidatesExistingResolution(base))
		})
	}
}

func TestPackageDescriptor_InvalidatesFlakeAndStorePath(t *testing.T) {
	t.Parallel()

	flake := domain.PackageDescriptor{Flake: &domain.FlakeDescriptor{Flake: "github:NixOS/nixpkgs#hello"}}
	flakeEdited := domain.PackageDescriptor{Flake: &domain.FlakeDescriptor{Flake: "github:NixOS/nixpkgs#ripgrep"}}
	flakePriority := domain.PackageDescriptor{Flake: &domain.FlakeDescriptor{
		Flake: "github:NixOS/nixpkgs#hello", Priority: u64Ptr(1),
	}}
	assert.True(t, flakeEdited.InvalidatesExistingResolution(flake))
	assert.False(t, flakePriority.InvalidatesExistingResolution(flake))

	sp := domain.PackageDescriptor{StorePath: &domain.StorePathDescriptor{StorePath: "/nix/store/abc"}}
	spEdited := domain.PackageDescriptor{StorePath: &domain.StorePathDescriptor{StorePath: "/nix/store/def"}}
	assert.True(t, spEdited.InvalidatesExistingResolution(sp))
	assert.False(t, sp.InvalidatesExistingResolution(sp))
}

func TestPackageDescriptor_JSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want func(t *testing.T, d domain.PackageDescriptor)
	}{
		{
			name: "catalog descriptor from pkg-path",
			data: `{"pkg-path": "hello", "version": "1.2", "pkg-group": "tools"}`,
			want: func(t *testing.T, d domain.PackageDescriptor) {
				require.NotNil(t, d.Catalog)
				assert.Equal(t, "hello", d.Catalog.PkgPath)
				assert.Equal(t, "tools", d.Catalog.Group())
			},
		},
		{
			name: "flake descriptor from flake",
			data: `{"flake": "github:NixOS/nixpkgs#hello"}`,
			want: func(t *testing.T, d domain.PackageDescriptor) {
				require.NotNil(t, d.Flake)
				assert.Equal(t, "github:NixOS/nixpkgs#hello", d.Flake.Flake)
			},
		},
		{
			name: "store path descriptor from store-path",
			data: `{"store-path": "/nix/store/abc", "priority": 3}`,
			want: func(t *testing.T, d domain.PackageDescriptor) {
				require.NotNil(t, d.StorePath)
				assert.Equal(t, uint64(3), d.Priority())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var descriptor domain.PackageDescriptor
			require.NoError(t, json.Unmarshal([]byte(tc.data), &descriptor))
			tc.want(t, descriptor)

			// Re-marshaling must keep the same variant.
			data, err := json.Marshal(descriptor)
			require.NoError(t, err)
			var again domain.PackageDescriptor
			require.NoError(t, json.Unmarshal(data, &again))
			tc.want(t, again)
		})
	}

	t.Run("unknown shape errors", func(t *testing.T) {
		t.Parallel()
		var descriptor domain.PackageDescriptor
		err := json.Unmarshal([]byte(`{"something": "else"}`), &descriptor)
		require.ErrorIs(t, err, domain.ErrParseManifest)
	})
}

func TestPackageDescriptor_ValidateVersionConstraint(t *testing.T) {
	t.Parallel()

	valid := []string{"1.2.3", "1.2", "", "^1.2.3", ">=1.0.0 <2.0.0", "~1.2", "1.*"}
	for _, v := range valid {
		version := v
		descriptor := domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
			PkgPath: "hello", Version: &version,
		}}
		assert.NoError(t, descriptor.ValidateVersionConstraint(), version)
	}

	bad := "^not-a-version"
	descriptor := domain.PackageDescriptor{Catalog: &domain.CatalogDescriptor{
		PkgPath: "hello", Version: &bad,
	}}
	assert.Error(t, descriptor.ValidateVersionConstraint())
}

func TestManifest_EnabledSystems(t *testing.T) {
	t.Parallel()

	manifest := &domain.Manifest{}
	assert.Equal(t, domain.DefaultSystems, manifest.EnabledSystems())

	manifest.Options.Systems = []string{"aarch64-linux"}
	assert.Equal(t, []string{"aarch64-linux"}, manifest.EnabledSystems())
}

func TestIncludeDescriptor_DisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "shared", domain.IncludeDescriptor{Dir: "../envs/shared"}.DisplayName())
	assert.Equal(t, "base", domain.IncludeDescriptor{Dir: "../envs/shared", Name: "base"}.DisplayName())
	assert.Equal(t, "shared", domain.IncludeDescriptor{Dir: "shared"}.DisplayName())
}
