package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitchenstock/scanner/internal/domain"
)

const yamlCatalog = `
- id: p1
  name: Tomates
  unit: kg
- id: p2
  name: "  Courgette "
  unit: kg
`

func writeCatalog(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "yaml list",
			data:    yamlCatalog,
			wantIDs: []string{"p1", "p2"},
		},
		{
			name:    "json list",
			data:    `[{"id":"p1","name":"Tomates","unit":"kg"},{"id":"p3","name":"Ail","unit":"tête"}]`,
			wantIDs: []string{"p1", "p3"},
		},
		{
			name:    "wrapped products",
			data:    `{"products":[{"id":"p9","name":"Persil","unit":"botte"}]}`,
			wantIDs: []string{"p9"},
		},
		{
			name:    "missing name",
			data:    `[{"id":"p1","name":"  "}]`,
			wantErr: true,
		},
		{
			name:    "missing id",
			data:    `[{"name":"Tomates"}]`,
			wantErr: true,
		},
		{
			name:    "duplicate id",
			data:    `[{"id":"p1","name":"Tomates"},{"id":"p1","name":"Tomates cerises"}]`,
			wantErr: true,
		},
		{
			name:    "not a catalog",
			data:    `"just a string"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Decode([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)

			ids := make([]string, len(entries))
			for i, e := range entries {
				ids[i] = e.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDecode_TrimsFields(t *testing.T) {
	entries, err := Decode([]byte(yamlCatalog))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ProductCatalogEntry{ID: "p2", Name: "Courgette", Unit: "kg"}, entries[1])
}

func TestLoad(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		writeCatalog(t, path, yamlCatalog)

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("missing file is unavailable", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	})
}

func TestFileCatalog_Snapshot(t *testing.T) {
	c := Static([]domain.ProductCatalogEntry{{ID: "p1", Name: "Tomates"}})

	snap := c.Snapshot()
	snap[0].Name = "changed"

	assert.Equal(t, "Tomates", c.Snapshot()[0].Name)
}

func TestFileCatalog_Reload(t *testing.T) {
	t.Run("keeps previous entries on bad file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		writeCatalog(t, path, yamlCatalog)

		c, err := Load(path)
		require.NoError(t, err)

		writeCatalog(t, path, `[{"id":"p1"}]`)
		assert.Error(t, c.Reload())
		assert.Equal(t, 2, c.Len())
	})

	t.Run("keeps previous entries on empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		writeCatalog(t, path, yamlCatalog)

		c, err := Load(path)
		require.NoError(t, err)

		writeCatalog(t, path, "")
		assert.ErrorIs(t, c.Reload(), domain.ErrCatalogUnavailable)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("static catalog cannot reload", func(t *testing.T) {
		c := Static(nil)
		assert.ErrorIs(t, c.Reload(), domain.ErrCatalogUnavailable)
	})
}

func TestFileCatalog_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeCatalog(t, path, yamlCatalog)

	c, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Watch(ctx))

	writeCatalog(t, path, yamlCatalog+"- id: p3\n  name: Ail\n  unit: tête\n")

	require.Eventually(t, func() bool {
		return c.Len() == 3
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileCatalog_WatchWithoutPath(t *testing.T) {
	c := Static(nil)
	assert.ErrorIs(t, c.Watch(context.Background()), domain.ErrCatalogUnavailable)
}
