// Package filesystem implements the workspace file tools. Every path is
// resolved inside the workspace root; traversal outside it is rejected.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

const maxReadBytes = 256 * 1024

// Workspace roots the file tools at one directory.
type Workspace struct {
	root string
}

// NewWorkspace creates the directory if needed and returns the workspace.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// resolve maps a tool-supplied path into the workspace and rejects escapes.
func (w *Workspace) resolve(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	joined := filepath.Join(w.root, filepath.FromSlash(rel))
	cleaned := filepath.Clean(joined)
	if cleaned != w.root && !strings.HasPrefix(cleaned, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", rel)
	}
	return cleaned, nil
}

const pathSchema = `{
	"type": "object",
	"properties": {
		"path": {
			"type": "string",
			"description": "Path relative to the workspace root."
		}
	},
	"required": ["path"]
}`

// ReadFile builds the read_file tool.
func (w *Workspace) ReadFile() engine.Tool {
	return engine.Tool{
		Name:        "read_file",
		Description: "Read a text file from the workspace.",
		SchemaJSON:  pathSchema,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			full, err := w.resolve(path)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(full)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", path)
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			if len(data) > maxReadBytes {
				return string(data[:maxReadBytes]) + fmt.Sprintf("\n... [file truncated, %d bytes total]", len(data)), nil
			}
			return string(data), nil
		},
	}
}

const writeSchema = `{
	"type": "object",
	"properties": {
		"path": {
			"type": "string",
			"description": "Path relative to the workspace root."
		},
		"content": {
			"type": "string",
			"description": "Full file content to write."
		}
	},
	"required": ["path", "content"]
}`

// WriteFile builds the write_file tool.
func (w *Workspace) WriteFile() engine.Tool {
	return engine.Tool{
		Name:        "write_file",
		Description: "Write a file in the workspace, creating parent directories and replacing any existing content.",
		SchemaJSON:  writeSchema,
		SideEffect:  true,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			full, err := w.resolve(path)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return nil, fmt.Errorf("create parent dirs for %s: %w", path, err)
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", path, err)
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), path), nil
		},
	}
}

// DeleteFile builds the delete_file tool.
func (w *Workspace) DeleteFile() engine.Tool {
	return engine.Tool{
		Name:        "delete_file",
		Description: "Delete a file from the workspace.",
		SchemaJSON:  pathSchema,
		SideEffect:  true,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			full, err := w.resolve(path)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(full)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory, refusing to delete", path)
			}
			if err := os.Remove(full); err != nil {
				return nil, fmt.Errorf("delete %s: %w", path, err)
			}
			return "Deleted " + path, nil
		},
	}
}

const listSchema = `{
	"type": "object",
	"properties": {
		"path": {
			"type": "string",
			"description": "Directory relative to the workspace root, default the root itself."
		}
	}
}`

// ListFiles builds the list_files tool. Entries matched by the workspace's
// .gitignore are skipped.
func (w *Workspace) ListFiles() engine.Tool {
	return engine.Tool{
		Name:        "list_files",
		Description: "List files under a workspace directory, honoring .gitignore.",
		SchemaJSON:  listSchema,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			rel, _ := args["path"].(string)
			if rel == "" {
				rel = "."
			}
			full, err := w.resolve(rel)
			if err != nil {
				return nil, err
			}

			var matcher *ignore.GitIgnore
			if gi, err := ignore.CompileIgnoreFile(filepath.Join(w.root, ".gitignore")); err == nil {
				matcher = gi
			}

			var lines []string
			err = filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				relPath, relErr := filepath.Rel(w.root, path)
				if relErr != nil || relPath == "." {
					return nil
				}
				if d.IsDir() && d.Name() == ".git" {
					return filepath.SkipDir
				}
				if matcher != nil && matcher.MatchesPath(relPath) {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if d.IsDir() {
					lines = append(lines, filepath.ToSlash(relPath)+"/")
				} else {
					lines = append(lines, filepath.ToSlash(relPath))
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", rel, err)
			}
			if len(lines) == 0 {
				return "(empty)", nil
			}
			return strings.Join(lines, "\n"), nil
		},
	}
}
