package installer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	for _, version := range []string{"1.6.4", "1.7.2", "1.7.10", "1.8", "1.8.9"} {
		_, err := Select(version)
		assert.NoError(t, err, version)
	}
}

func TestSelectUnsupported(t *testing.T) {
	for _, version := range []string{"1.5.2", "1.12.2", "1.16", "b1.7.3", ""} {
		_, err := Select(version)
		require.Error(t, err, version)
		var uve *UnsupportedVersionError
		require.True(t, errors.As(err, &uve), version)
		assert.Equal(t, version, uve.Version)
	}
}

func TestURLs(t *testing.T) {
	d, err := Select("1.8")
	require.NoError(t, err)

	urls := d.URLs("1.8", "11.14.4.1577")
	require.Len(t, urls, 1)
	assert.Equal(t,
		"https://files.minecraftforge.net/maven/net/minecraftforge/forge/1.8-11.14.4.1577/forge-1.8-11.14.4.1577-installer.jar",
		urls[0])
}

func TestURLsAltSuffix(t *testing.T) {
	d, err := Select("1.7.10")
	require.NoError(t, err)

	urls := d.URLs("1.7.10", "10.13.4.1614")
	require.Len(t, urls, 2)
	assert.Contains(t, urls[0], "1.7.10-10.13.4.1614/forge-1.7.10-10.13.4.1614-installer.jar")
	assert.Contains(t, urls[1], "1.7.10-10.13.4.1614-1.7.10/forge-1.7.10-10.13.4.1614-1.7.10-installer.jar")
}

func TestMatchVersion(t *testing.T) {
	assert.True(t, matchVersion("1.7", "1.7"))
	assert.True(t, matchVersion("1.7.10", "1.7"))
	assert.False(t, matchVersion("1.17.1", "1.7"))
	assert.False(t, matchVersion("1.17", "1.1"))
}

func TestSelectDescriptorOverride(t *testing.T) {
	ins := Installer{
		Overrides: []Override{
			{Prefix: "1.12", URL: "https://example.com/%s.jar"},
		},
	}
	d, err := ins.SelectDescriptor("1.12.2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/%s.jar", d.URL)

	// Overrides win over the built-in table.
	ins.Overrides = []Override{
		{Prefix: "1.7", URL: "https://example.com/forge-%s.jar"},
	}
	d, err = ins.SelectDescriptor("1.7.10")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/forge-%s.jar", d.URL)
}
