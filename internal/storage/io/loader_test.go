package io_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/deploywatch/internal/model"
	storageio "github.com/slok/deploywatch/internal/storage/io"
)

func TestTemplateCatalogYAMLRepositoryListTemplates(t *testing.T) {
	tests := map[string]struct {
		fs           fstest.MapFS
		path         string
		expTemplates []model.Template
		expErr       bool
		errMsg       string
	}{
		"A valid catalog should load successfully.": {
			fs: fstest.MapFS{
				"templates.yaml": &fstest.MapFile{
					Data: []byte(`templates:
  - name: web-stack
    description: Nginx and app deploy
    kind: template
    steps: [install-packages, render-config, restart-service]
  - name: restart-api
    kind: systemd
`),
				},
			},
			path: "templates.yaml",
			expTemplates: []model.Template{
				{
					Name:        "web-stack",
					Description: "Nginx and app deploy",
					Kind:        model.OperationKindTemplate,
					Steps:       []string{"install-packages", "render-config", "restart-service"},
				},
				{
					Name: "restart-api",
					Kind: model.OperationKindSystemd,
				},
			},
		},

		"A template without kind should be a template kind.": {
			fs: fstest.MapFS{
				"templates.yaml": &fstest.MapFile{
					Data: []byte(`templates:
  - name: web-stack
    steps: [deploy]
`),
				},
			},
			path: "templates.yaml",
			expTemplates: []model.Template{
				{Name: "web-stack", Kind: model.OperationKindTemplate, Steps: []string{"deploy"}},
			},
		},

		"An empty catalog should load successfully.": {
			fs: fstest.MapFS{
				"empty.yaml": &fstest.MapFile{Data: []byte("---\n")},
			},
			path:         "empty.yaml",
			expTemplates: []model.Template{},
		},

		"A missing file should fail.": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading template catalog file",
		},

		"Invalid YAML should fail.": {
			fs: fstest.MapFS{
				"invalid.yaml": &fstest.MapFile{Data: []byte(`invalid: yaml: content: {}`)},
			},
			path:   "invalid.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},

		"A template kind without steps should fail.": {
			fs: fstest.MapFS{
				"templates.yaml": &fstest.MapFile{Data: []byte("templates:\n  - name: web-stack\n")},
			},
			path:   "templates.yaml",
			expErr: true,
			errMsg: "requires at least one step",
		},

		"An unknown kind should fail.": {
			fs: fstest.MapFS{
				"templates.yaml": &fstest.MapFile{Data: []byte("templates:\n  - name: web-stack\n    kind: ansible\n")},
			},
			path:   "templates.yaml",
			expErr: true,
			errMsg: "unknown operation kind",
		},

		"Duplicated names should fail.": {
			fs: fstest.MapFS{
				"templates.yaml": &fstest.MapFile{Data: []byte(`templates:
  - name: api
    kind: shell
  - name: api
    kind: systemd
`)},
			},
			path:   "templates.yaml",
			expErr: true,
			errMsg: "declared more than once",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storageio.NewTemplateCatalogYAMLRepository(tc.fs)
			templates, err := repo.ListTemplates(context.Background(), tc.path)

			if tc.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expTemplates, templates)
		})
	}
}

func TestTemplateCatalogYAMLRepositoryContextCancellation(t *testing.T) {
	fs := fstest.MapFS{
		"templates.yaml": &fstest.MapFile{Data: []byte("templates: []\n")},
	}

	repo := storageio.NewTemplateCatalogYAMLRepository(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListTemplates(ctx, "templates.yaml")
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
