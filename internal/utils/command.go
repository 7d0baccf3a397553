package utils

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// CommandArgs is the data visible to service command templates
type CommandArgs struct {
	Name string
	Port int
	Root string
	Dist string
}

func renderTemplate(name, text string, data interface{}) (string, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template '%s': %w", name, text, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template '%s': %w", name, text, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

/**
 * Render command, arguments and environment templates
 * @param {string} command - command template
 * @param {[]string} args - argument templates
 * @param {map[string]string} env - environment value templates
 * @param {interface{}} data - template data, usually CommandArgs
 * @returns {(string, []string, map[string]string, error)} rendered values
 */
func GetCommandLine(command string, args []string, env map[string]string, data interface{}) (string, []string, map[string]string, error) {
	cmd, err := renderTemplate("command", command, data)
	if err != nil {
		return "", nil, nil, err
	}

	var processedArgs []string
	for _, arg := range args {
		a, err := renderTemplate("arg", arg, data)
		if err != nil {
			return "", nil, nil, err
		}
		processedArgs = append(processedArgs, a)
	}

	var processedEnv map[string]string
	if len(env) > 0 {
		processedEnv = make(map[string]string, len(env))
		for k, v := range env {
			val, err := renderTemplate("env", v, data)
			if err != nil {
				return "", nil, nil, err
			}
			processedEnv[k] = val
		}
	}
	return cmd, processedArgs, processedEnv, nil
}
