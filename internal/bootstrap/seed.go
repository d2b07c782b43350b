// Package bootstrap seeds the four per-agent identity documents spec'd in
// the filesystem layout (SOUL.md, MEMORY.md, HEARTBEAT.md, TOOLS.md) from
// embedded templates, the way the teacher seeds its AGENTS/SOUL/TOOLS
// workspace files: only write what doesn't already exist.
package bootstrap

import (
	"embed"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed templates/*.md
var templateFS embed.FS

const (
	SoulFile      = "SOUL.md"
	MemoryFile    = "MEMORY.md"
	HeartbeatFile = "HEARTBEAT.md"
	ToolsFile     = "TOOLS.md"
)

var templateFiles = []string{SoulFile, MemoryFile, HeartbeatFile, ToolsFile}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureAgentFiles seeds the four identity documents into an agent's
// directory. Only writes files that don't already exist. Returns the list
// of files that were created.
func EnsureAgentFiles(agentDir string) ([]string, error) {
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		return nil, err
	}

	var created []string
	for _, name := range templateFiles {
		ok, err := seedTemplate(agentDir, name)
		if err != nil {
			slog.Warn("bootstrap.seed_failed", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

// seedTemplate writes a template file to dir if it doesn't exist. Returns
// true if the file was created.
func seedTemplate(dir, name string) (bool, error) {
	dstPath := filepath.Join(dir, name)

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}
