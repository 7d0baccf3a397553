package cmd

import (
	_ "handv-deploy/cmd/build"
	_ "handv-deploy/cmd/deploy"
	_ "handv-deploy/cmd/logs"
	_ "handv-deploy/cmd/metrics"
	_ "handv-deploy/cmd/nginx"
	_ "handv-deploy/cmd/preview"
	_ "handv-deploy/cmd/root"
	_ "handv-deploy/cmd/service"
)
