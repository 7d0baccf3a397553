package nginx

import (
	"path/filepath"

	derrors "handv-deploy/internal/errors"

	"github.com/spf13/afero"
)

/**
 * Candidate describes one host convention for nginx site files
 * @property {string} Name - label used in logs
 * @property {string} Dir - directory the site file is written to
 * @property {string} LinkDir - optional directory receiving a symlink to the site file
 * @property {string} Ext - file extension, empty for sites-available style directories
 * @property {bool} Fallback - used even when Dir does not exist
 */
type Candidate struct {
	Name     string
	Dir      string
	LinkDir  string
	Ext      string
	Fallback bool
}

// Target is where the site configuration goes
type Target struct {
	Candidate string
	ConfPath  string
	LinkPath  string // empty when no link is needed
}

// DefaultCandidates lists panel-managed vhost directories before distribution defaults.
// Append to the list to support another host layout.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: "bt-panel", Dir: "/www/server/panel/vhost/nginx", Ext: ".conf"},
		{Name: "bt-nginx", Dir: "/www/server/nginx/conf/vhost", Ext: ".conf"},
		{Name: "sites-available", Dir: "/etc/nginx/sites-available", LinkDir: "/etc/nginx/sites-enabled"},
		{Name: "conf.d", Dir: "/etc/nginx/conf.d", Ext: ".conf", Fallback: true},
	}
}

// FileName is prefixed so the site sorts before any default entry in the same directory
func FileName(site, ext string) string {
	return "00_" + site + ext
}

func isDir(fs afero.Fs, path string) bool {
	ok, err := afero.DirExists(fs, path)
	return err == nil && ok
}

func (c Candidate) resolve(fs afero.Fs, site string) (Target, bool) {
	if !c.Fallback && !isDir(fs, c.Dir) {
		return Target{}, false
	}
	t := Target{
		Candidate: c.Name,
		ConfPath:  filepath.Join(c.Dir, FileName(site, c.Ext)),
	}
	if c.LinkDir != "" && isDir(fs, c.LinkDir) {
		t.LinkPath = filepath.Join(c.LinkDir, FileName(site, c.Ext))
	}
	return t, true
}

// Resolve returns the target of the first applicable candidate
func Resolve(fs afero.Fs, candidates []Candidate, site string) (Target, error) {
	if site == "" {
		return Target{}, derrors.NewPreconditionError("site name is empty")
	}
	for _, c := range candidates {
		if t, ok := c.resolve(fs, site); ok {
			return t, nil
		}
	}
	return Target{}, derrors.NewPreconditionError("no nginx configuration directory found among %d candidates", len(candidates))
}
