// Package nginx renders, installs and activates the reverse proxy site.
package nginx

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"handv-deploy/internal/config"
	derrors "handv-deploy/internal/errors"
)

// Mode selects how "/" is served
type Mode string

const (
	// ModeStatic serves the built bundle from disk with SPA fallback
	ModeStatic Mode = "static"
	// ModeProxy forwards "/" to a running frontend process
	ModeProxy Mode = "proxy"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStatic:
		return ModeStatic, nil
	case ModeProxy:
		return ModeProxy, nil
	}
	return "", derrors.NewPreconditionError("unknown mode %q, expected static or proxy", s)
}

// Params are the inputs of Render
type Params struct {
	Mode              Mode
	ListenPort        int
	BackendPort       int
	FrontendPort      int    // proxy mode only
	StaticRoot        string // static mode only
	ServerName        string
	ClientMaxBodySize string
	ReadTimeout       int
}

// Validate rejects incomplete or out-of-range parameters before anything is written
func (p Params) Validate() error {
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return err
	}
	if err := config.ValidatePort("listen", p.ListenPort); err != nil {
		return err
	}
	if err := config.ValidatePort("backend", p.BackendPort); err != nil {
		return err
	}
	switch p.Mode {
	case ModeProxy:
		if err := config.ValidatePort("frontend", p.FrontendPort); err != nil {
			return err
		}
	case ModeStatic:
		if strings.TrimSpace(p.StaticRoot) == "" {
			return derrors.NewPreconditionError("static mode requires a static root")
		}
	}
	// server_name takes space separated names, root takes exactly one token
	if strings.ContainsAny(p.ServerName, ";{}\t\r\n") {
		return derrors.NewPreconditionError("server name %q must not contain ';', '{', '}', tabs or newlines", p.ServerName)
	}
	if strings.ContainsAny(p.StaticRoot, ";{}") || strings.IndexFunc(p.StaticRoot, unicode.IsSpace) >= 0 {
		return derrors.NewPreconditionError("static root %q must not contain whitespace, ';', '{' or '}'", p.StaticRoot)
	}
	return nil
}

func (p Params) withDefaults() Params {
	if p.ServerName == "" {
		p.ServerName = "_"
	}
	if p.ClientMaxBodySize == "" {
		p.ClientMaxBodySize = "20m"
	}
	if p.ReadTimeout <= 0 {
		p.ReadTimeout = 300
	}
	return p
}

const siteTemplate = `server {
  listen {{.ListenPort}} default_server;
  server_name {{.ServerName}};
{{if eq .Mode "static"}}
  root {{.StaticRoot}};
  index index.html;

  location / {
    try_files $uri $uri/ /index.html;
  }
{{else}}
  location / {
    proxy_pass http://127.0.0.1:{{.FrontendPort}};
    proxy_http_version 1.1;
{{template "forwarded"}}
    proxy_set_header Upgrade $http_upgrade;
    proxy_set_header Connection "upgrade";
  }
{{end}}
  location /api/ {
    proxy_pass http://127.0.0.1:{{.BackendPort}}/api/;
{{template "forwarded"}}
    proxy_read_timeout {{.ReadTimeout}};
  }

  location /uploads/ {
    proxy_pass http://127.0.0.1:{{.BackendPort}}/uploads/;
{{template "forwarded"}}
  }

  client_max_body_size {{.ClientMaxBodySize}};
}
{{define "forwarded"}}    proxy_set_header Host $host;
    proxy_set_header X-Real-IP $remote_addr;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Forwarded-Proto $scheme;{{end}}`

var siteTpl = template.Must(template.New("site").Parse(siteTemplate))

/**
 * Render the nginx server block
 * @param {Params} p - mode, ports, static root and server name
 * @returns {(string, error)} configuration text
 * @description
 * - static: root + index + try_files SPA fallback
 * - proxy: "/" forwarded to the frontend process with WebSocket upgrade headers
 * - both: /api/ and /uploads/ forwarded to the backend with forwarding headers
 */
func Render(p Params) (string, error) {
	p = p.withDefaults()
	if err := p.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := siteTpl.Execute(&buf, p); err != nil {
		return "", derrors.NewConfigurationError(fmt.Sprintf("render %s site failed", p.Mode), "", err)
	}
	return buf.String(), nil
}
