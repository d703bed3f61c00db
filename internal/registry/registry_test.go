package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/localnerve/nodues/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrdersAndNormalizes(t *testing.T) {
	r, err := Parse([]byte(`
departments:
  - name: " Accounts "
    order: 20
  - name: Library
    display_name: Central Library
    order: 10
  - name: hostel
    order: 30
    active: false
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"library", "accounts"}, r.ActiveNames())
	assert.Len(t, r.All(), 3)

	d, ok := r.Lookup("LIBRARY")
	require.True(t, ok)
	assert.Equal(t, "Central Library", d.DisplayName)

	d, ok = r.Lookup("accounts")
	require.True(t, ok)
	assert.Equal(t, "accounts", d.DisplayName)

	assert.False(t, r.IsActive("hostel"))
	assert.True(t, r.Known("hostel"))
	assert.False(t, r.Known("canteen"))
	assert.False(t, r.IsActive("canteen"))
	assert.True(t, r.IsActive("Accounts"))
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("departments:\n  - name: library\n    colour: red\n"))
	assert.Error(t, err)
}

func TestNewRejectsDuplicatesAndReserved(t *testing.T) {
	_, err := New([]Department{{Name: "library"}, {Name: "Library"}})
	assert.EqualError(t, err, `duplicate department "library"`)

	_, err = New([]Department{{Name: "ALL"}})
	assert.Error(t, err)

	_, err = New([]Department{{Name: "  "}})
	assert.Error(t, err)
}

func TestFromList(t *testing.T) {
	r, err := FromList("library, accounts,,hostel")
	require.NoError(t, err)
	assert.Equal(t, []string{"library", "accounts", "hostel"}, r.ActiveNames())
}

func TestLoadSources(t *testing.T) {
	r, err := Load(&config.Config{})
	require.NoError(t, err)
	assert.Contains(t, r.ActiveNames(), "library")
	assert.NotContains(t, r.ActiveNames(), "transport")

	r, err = Load(&config.Config{Departments: "a,b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.ActiveNames())

	path := filepath.Join(t.TempDir(), "departments.yaml")
	require.NoError(t, os.WriteFile(path, []byte("departments:\n  - name: exams\n"), 0o600))
	r, err = Load(&config.Config{DepartmentsFile: path, Departments: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []string{"exams"}, r.ActiveNames())
}
