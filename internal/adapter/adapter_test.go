package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diblac17-eng/weftend/internal/reason"
)

func allPlugins(string) bool { return true }

func TestLoadMaintenance_EnvTokens(t *testing.T) {
	t.Parallel()

	m := LoadMaintenance("archive, Email ,mystery", "")
	assert.Equal(t, []string{"archive", "email"}, m.DisabledAdapters)
	assert.Equal(t, []string{"mystery"}, m.UnknownTokens)
	assert.Empty(t, m.InvalidReasonCode)
}

func TestLoadMaintenance_FilePlusEnv(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "maintenance.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"schema":"weftend.adapterMaintenance/0","disabledAdapters":["container"]}`), 0644))

	m := LoadMaintenance("archive", path)
	assert.Equal(t, []string{"archive", "container"}, m.DisabledAdapters)
}

func TestLoadMaintenance_MalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "maintenance.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema":"wrong/1"`), 0644))

	m := LoadMaintenance("", path)
	assert.Equal(t, reason.AdapterPolicyFileInvalid, m.InvalidReasonCode)

	// A poisoned policy fails every selection closed.
	reg := NewRegistry(m, allPlugins)
	_, err := reg.Select("generic")
	require.NotNil(t, err)
	assert.Equal(t, reason.AdapterPolicyInvalid, err.Code)
	assert.Equal(t, reason.ExitViolated, err.Exit)
}

func TestLoadMaintenance_UppercaseTokensInFileInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "maintenance.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"schema":"weftend.adapterMaintenance/0","disabledAdapters":["Archive"]}`), 0644))

	m := LoadMaintenance("", path)
	assert.Equal(t, reason.AdapterPolicyFileInvalid, m.InvalidReasonCode)
}

func TestSelect_Disabled(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(LoadMaintenance("archive", ""), allPlugins)
	_, err := reg.Select("archive")
	require.NotNil(t, err)
	assert.Equal(t, reason.AdapterTemporarilyUnavailable, err.Code)

	// Unknown tokens never disable anything.
	reg2 := NewRegistry(LoadMaintenance("mystery", ""), allPlugins)
	a, err2 := reg2.Select("archive")
	require.Nil(t, err2)
	assert.Equal(t, "archive", a.Name)
}

func TestSelect_MissingPlugin(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Maintenance{}, func(p string) bool { return p != "dockerd" })
	_, err := reg.Select("container")
	require.NotNil(t, err)
	assert.Equal(t, reason.AdapterTemporarilyUnavailable, err.Code)

	a, err2 := reg.Select("archive")
	require.Nil(t, err2)
	assert.Equal(t, "archive", a.Class)
}

func TestSelectByClass(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Maintenance{}, allPlugins)
	a, err := reg.SelectByClass("web")
	require.Nil(t, err)
	assert.Equal(t, "web", a.Name)
}

func TestDoctor_StrictFailures(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		rep := NewRegistry(Maintenance{}, allPlugins).Doctor()
		assert.Empty(t, rep.StrictFailures)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		rep := NewRegistry(LoadMaintenance("mystery", ""), allPlugins).Doctor()
		assert.Contains(t, rep.StrictFailures, string(reason.AdapterDoctorStrictPolicyUnknownToken))
	})

	t.Run("missing plugin", func(t *testing.T) {
		t.Parallel()
		rep := NewRegistry(Maintenance{}, nil).Doctor()
		assert.Contains(t, rep.StrictFailures, string(reason.AdapterDoctorStrictMissingPlugin))
	})

	t.Run("invalid policy", func(t *testing.T) {
		t.Parallel()
		rep := NewRegistry(Maintenance{InvalidReasonCode: reason.AdapterPolicyFileInvalid}, allPlugins).Doctor()
		assert.Contains(t, rep.StrictFailures, string(reason.AdapterDoctorStrictPolicyInvalid))
	})
}
