package registry

// Builtin returns the capability set available to workers out of the box.
// These mirror the file and shell tools a worker needs for most subtasks.
func Builtin() []Capability {
	return []Capability{
		{
			Name:        "read_file",
			Description: "Read a file from the working directory. Returns file contents.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to read",
				},
			},
			Required: []string{"path"},
		},
		{
			Name:        "write_file",
			Description: "Write content to a file. Creates parent directories if needed.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Content to write to the file",
				},
			},
			Required: []string{"path", "content"},
		},
		{
			Name:        "edit_file",
			Description: "Edit a file by replacing text. The old text must be unique in the file.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to edit",
				},
				"old_text": map[string]any{
					"type":        "string",
					"description": "The exact text to find and replace",
				},
				"new_text": map[string]any{
					"type":        "string",
					"description": "The text to replace it with",
				},
			},
			Required: []string{"path", "old_text", "new_text"},
		},
		{
			Name:        "list_directory",
			Description: "List contents of a directory.",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory path to list",
				},
			},
			Required: []string{"path"},
		},
		{
			Name:        "search_files",
			Description: "Search file contents using regex patterns.",
			Properties: map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regex pattern to search for",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "File or directory to search in (optional)",
				},
			},
			Required: []string{"pattern"},
		},
		{
			Name:        "run_shell",
			Description: "Execute a shell command and return the output.",
			Properties: map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to execute",
				},
				"timeout_ms": map[string]any{
					"type":        "integer",
					"description": "Timeout in milliseconds (optional)",
				},
			},
			Required: []string{"command"},
		},
		{
			Name:        "web_search",
			Description: "Search the web and return result snippets.",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
			},
			Required: []string{"query"},
		},
	}
}
