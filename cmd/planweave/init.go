package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize planweave in a project directory",
	Long: `Initialize planweave in a directory. Creates the .planweave
structure (snapshot store, signals directory), a .planweave.yaml
template, and an example worker profiles file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) == 1 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing planweave in %s...\n\n", absPath)

	pwDir := filepath.Join(absPath, ".planweave")
	if _, err := os.Stat(pwDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later, or enable Bedrock)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	for _, dir := range []string{pwDir, filepath.Join(pwDir, "signals")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .planweave directory structure", color.FgGreen)

	configPath := filepath.Join(absPath, ".planweave.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(configPath, []byte(projectConfigTemplate), 0644); err != nil {
			return fmt.Errorf("writing .planweave.yaml: %w", err)
		}
		printStatus("✓", "Created .planweave.yaml template", color.FgGreen)
	}

	profilesPath := filepath.Join(absPath, "worker-profiles.yaml")
	if _, err := os.Stat(profilesPath); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(profilesPath, []byte(workerProfilesTemplate), 0644); err != nil {
			return fmt.Errorf("writing worker-profiles.yaml: %w", err)
		}
		printStatus("✓", "Created example worker profiles", color.FgGreen)
	}

	fmt.Printf("\n%s planweave initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  planweave run \"your first task\"")
	fmt.Println("  planweave config planner.mode enforced")
	return nil
}

// printStatus prints a colored status line.
func printStatus(symbol, message string, attr color.Attribute) {
	c := color.New(attr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

const projectConfigTemplate = `# planweave project configuration
# Overrides ~/.config/planweave/config.yaml for this project.

planner:
  # disable | dynamic | enforced
  mode: dynamic
  max_attempts: 3
  # same-worker | replace
  retry_policy: same-worker

budgets:
  orchestrator: 50
  worker: 20

workers:
  profiles_path: worker-profiles.yaml
`

const workerProfilesTemplate = `# Builtin worker profiles registered at startup.
workers:
  - name: researcher
    description: Reads and searches the codebase, never writes.
    capabilities: [read_file, list_directory, search_files]
    system_prompt: |
      You investigate code and documents. Report what you find with
      file paths and line references. You never modify anything.
  - name: builder
    description: Implements changes on disk.
    capabilities: [read_file, write_file, edit_file, list_directory, search_files, run_shell]
    system_prompt: |
      You implement the requested change. Keep edits minimal and
      verify your work with the shell when possible.
`

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "reinitialize even if already set up")
}
