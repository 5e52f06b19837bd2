package main

import (
	"testing"

	"github.com/aligator/gofat32/vfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testConfig = `
logLevel: debug
disks:
  - path: /images/disk0.img
    readOnly: true
  - connector: dummy
    disk: 1
    path: /images/test.img
mounts:
  - prefix: /
  - prefix: /data
    connector: dummy
    disk: 1
    kind: test
`

func TestLoadConfig(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/gofat32.yaml", []byte(testConfig), 0o644))

	c, err := LoadConfig(fsys, "/etc/gofat32.yaml", "")
	require.NoError(t, err)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, []DiskConfig{
		{Path: "/images/disk0.img", ReadOnly: true},
		{Connector: "dummy", Disk: 1, Path: "/images/test.img"},
	}, c.Disks)
	require.Len(t, c.Mounts, 2)

	kind, err := c.Mounts[1].kind()
	require.NoError(t, err)
	require.Equal(t, vfs.KindTest, kind)
	connector, err := c.Mounts[1].connector()
	require.NoError(t, err)
	require.Equal(t, vfs.ConnectorDummy, connector)
	connector, err = c.Mounts[0].connector()
	require.NoError(t, err)
	require.Equal(t, vfs.ConnectorAHCI, connector)
}

func TestLoadConfig_environment(t *testing.T) {
	t.Setenv("GOFAT32_LOG_LEVEL", "warn")
	t.Setenv("GOFAT32_IMAGE", "/tmp/fat.img")
	t.Setenv("GOFAT32_READ_ONLY", "true")

	c, err := LoadConfig(afero.NewMemMapFs(), "/missing.yaml", "")
	require.NoError(t, err)
	require.Equal(t, "warn", c.LogLevel)
	require.Equal(t, []DiskConfig{{Path: "/tmp/fat.img", ReadOnly: true}}, c.Disks)
	require.Equal(t, []MountConfig{{Prefix: "/"}}, c.Mounts)
}

func TestLoadConfig_imageFlag(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/gofat32.yaml", []byte(testConfig), 0o644))

	c, err := LoadConfig(fsys, "/etc/gofat32.yaml", "/other.img")
	require.NoError(t, err)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, []DiskConfig{{Path: "/other.img"}}, c.Disks)
	require.Equal(t, []MountConfig{{Prefix: "/"}}, c.Mounts)
}

func TestLoadConfig_invalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{name: "no disks", config: "logLevel: info\n"},
		{name: "unknown field", config: "disks: [{path: a}]\nmount: []\n"},
		{name: "missing path", config: "disks: [{disk: 1}]\n"},
		{name: "unknown connector", config: "disks: [{path: a, connector: nvme}]\n"},
		{name: "unknown kind", config: "disks: [{path: a}]\nmounts: [{prefix: /, kind: ext4}]\n"},
		{name: "log level", config: "logLevel: loud\ndisks: [{path: a}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fsys, "/c.yaml", []byte(tt.config), 0o644))

			_, err := LoadConfig(fsys, "/c.yaml", "")
			require.Error(t, err)
		})
	}
}
