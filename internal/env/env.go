package env

import (
	"os"
	"path/filepath"
)

// 部署根目录，未配置时使用当前工作目录
var RootDir string = GetRootDir()

/**
 * Get deployment root directory path
 * @returns {string} Returns $HANDV_ROOT when set, otherwise the working directory
 */
func GetRootDir() string {
	if dir := os.Getenv("HANDV_ROOT"); dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			return abs
		}
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// IsElevated reports whether the current process may bind privileged ports
func IsElevated() bool {
	return os.Geteuid() == 0
}
