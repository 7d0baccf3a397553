package nginx

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePriority(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/etc/nginx/sites-available", 0o755))
	require.NoError(t, fs.MkdirAll("/etc/nginx/sites-enabled", 0o755))

	target, err := Resolve(fs, DefaultCandidates(), "handv")
	require.NoError(t, err)
	assert.Equal(t, "sites-available", target.Candidate)
	assert.Equal(t, "/etc/nginx/sites-available/00_handv", target.ConfPath)
	assert.Equal(t, "/etc/nginx/sites-enabled/00_handv", target.LinkPath)

	// 面板目录优先于发行版目录
	require.NoError(t, fs.MkdirAll("/www/server/nginx/conf/vhost", 0o755))
	target, err = Resolve(fs, DefaultCandidates(), "handv")
	require.NoError(t, err)
	assert.Equal(t, "/www/server/nginx/conf/vhost/00_handv.conf", target.ConfPath)
	assert.Empty(t, target.LinkPath)

	require.NoError(t, fs.MkdirAll("/www/server/panel/vhost/nginx", 0o755))
	target, err = Resolve(fs, DefaultCandidates(), "handv")
	require.NoError(t, err)
	assert.Equal(t, "bt-panel", target.Candidate)
	assert.Equal(t, "/www/server/panel/vhost/nginx/00_handv.conf", target.ConfPath)
}

func TestResolveFallback(t *testing.T) {
	target, err := Resolve(afero.NewMemMapFs(), DefaultCandidates(), "shop")
	require.NoError(t, err)
	assert.Equal(t, "/etc/nginx/conf.d/00_shop.conf", target.ConfPath)
}

func TestResolveSitesAvailableWithoutEnabled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/etc/nginx/sites-available", 0o755))

	target, err := Resolve(fs, DefaultCandidates(), "handv")
	require.NoError(t, err)
	assert.Empty(t, target.LinkPath)
}

func TestResolveCustomCandidates(t *testing.T) {
	fs := afero.NewMemMapFs()
	candidates := append([]Candidate{{Name: "openresty", Dir: "/usr/local/openresty/nginx/conf/sites", Ext: ".conf"}}, DefaultCandidates()...)

	target, err := Resolve(fs, candidates, "handv")
	require.NoError(t, err)
	assert.Equal(t, "conf.d", target.Candidate)

	require.NoError(t, fs.MkdirAll("/usr/local/openresty/nginx/conf/sites", 0o755))
	target, err = Resolve(fs, candidates, "handv")
	require.NoError(t, err)
	assert.Equal(t, "openresty", target.Candidate)

	_, err = Resolve(fs, []Candidate{{Name: "none", Dir: "/missing"}}, "handv")
	assert.Error(t, err)
	_, err = Resolve(fs, candidates, "")
	assert.Error(t, err)
}
