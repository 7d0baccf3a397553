package proc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"handv-deploy/internal/executor"
	"handv-deploy/internal/logger"
	"handv-deploy/internal/utils"
)

/**
 * Spec 进程启动参数
 * @property {string} Name - 服务名，仅用于日志
 * @property {string} Command - 可执行文件
 * @property {[]string} Args - 命令参数
 * @property {string} Dir - 工作目录
 * @property {map[string]string} Env - 追加的环境变量
 * @property {string} LogFile - stdout/stderr 重定向的日志文件
 */
type Spec struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
	LogFile string
}

// Launcher starts a detached process and returns its PID
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (int, error)
}

// ProcessLauncher is the os/exec implementation of Launcher
type ProcessLauncher struct{}

func NewProcessLauncher() *ProcessLauncher {
	return &ProcessLauncher{}
}

/**
 * Launch 启动进程
 * @param {Spec} spec - 启动参数
 * @returns {(int, error)} 新进程的 PID
 * @description
 * - 日志文件在启动时截断，stdout 与 stderr 合并写入
 * - 子进程在新会话中运行，调用方退出后继续存活
 * - 调用方存活期间由后台协程回收子进程，避免停止后残留僵尸进程
 * - ctx 只约束启动过程本身，不会在返回后结束子进程
 */
func (l *ProcessLauncher) Launch(ctx context.Context, spec Spec) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if spec.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogFile), 0755); err != nil {
			return 0, fmt.Errorf("create log directory for %s failed: %w", spec.Name, err)
		}
	}
	logFile, err := openLog(spec.LogFile)
	if err != nil {
		return 0, fmt.Errorf("open log file for %s failed: %w", spec.Name, err)
	}
	defer logFile.Close()

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = executor.MergeEnv(os.Environ(), spec.Env)
	}
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// 设置进程属性，使子进程在父进程退出后继续运行
	utils.SetNewPG(cmd)

	logger.Infof("Executing command: %s (log: %s)", executor.Command{Name: spec.Command, Args: spec.Args}.String(), spec.LogFile)
	if err := cmd.Start(); err != nil {
		logger.Errorf("Failed to start process '%s', error: %v", spec.Name, err)
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() {
		_ = cmd.Wait()
	}()

	logger.Infof("Process '%s' started (PID: %d)", spec.Name, pid)
	return pid, nil
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
}
