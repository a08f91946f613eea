package errors

import "fmt"

// SuggestionGenerator generates actionable suggestions based on error category.
type SuggestionGenerator interface {
	Generate(category ErrorCategory, affectedPath string) []string
}

// NewSuggestionGenerator creates a new SuggestionGenerator.
func NewSuggestionGenerator() SuggestionGenerator {
	return &suggestionGenerator{}
}

// suggestionGenerator is the concrete implementation of SuggestionGenerator.
type suggestionGenerator struct{}

// Generate returns actionable suggestions based on the error category and affected path.
//
//nolint:cyclop // One case per taxonomy category
func (g *suggestionGenerator) Generate(category ErrorCategory, affectedPath string) []string {
	switch category {
	case CategoryInvalidSpec:
		return g.generateSpecSuggestions()
	case CategoryRecursive:
		return g.generateRecursiveSuggestions(affectedPath)
	case CategoryCyclicPath:
		return g.generateCyclicSuggestions(affectedPath)
	case CategoryAuth:
		return g.generateAuthSuggestions()
	case CategoryConnect:
		return g.generateConnectSuggestions()
	case CategoryPermission:
		return g.generatePermissionSuggestions(affectedPath)
	case CategoryDiskSpace:
		return g.generateDiskSpaceSuggestions(affectedPath)
	case CategoryNotFound:
		return g.generatePathSuggestions(affectedPath)
	case CategoryIO:
		return g.generateIOSuggestions()
	case CategoryCancelled:
		return g.generateCancelledSuggestions(affectedPath)
	case CategoryUnknown:
		return g.generateUnknownSuggestions(affectedPath)
	default:
		return g.generateUnknownSuggestions(affectedPath)
	}
}

func (g *suggestionGenerator) generateAuthSuggestions() []string {
	return []string{
		"Pass a private key with -i or a password with -p",
		"Check that your key is loaded in the SSH agent ('ssh-add -l')",
		"If the host key changed, verify it and update ~/.ssh/known_hosts",
	}
}

func (g *suggestionGenerator) generateCancelledSuggestions(path string) []string {
	suggestions := []string{
		"Files completed before the interruption were left in place",
	}

	if path != "" {
		suggestions = append(suggestions, "The partially written file may remain at "+path)
	} else {
		suggestions = append(suggestions, "The file being written at the time may be incomplete")
	}

	return suggestions
}

func (g *suggestionGenerator) generateConnectSuggestions() []string {
	return []string{
		"Verify the host name and port (-P or user@host:port:path)",
		"Check that the SSH server is running and reachable",
		"Try 'ssh -v user@host' to diagnose the connection",
	}
}

func (g *suggestionGenerator) generateCyclicSuggestions(path string) []string {
	suggestions := []string{
		"A symbolic link points back into one of its parent directories",
	}

	if path != "" {
		suggestions = append(suggestions, "Inspect links under "+path+" with 'ls -la'")
	}

	return append(suggestions, "Copy a subdirectory that does not contain the loop")
}

func (g *suggestionGenerator) generateDiskSpaceSuggestions(path string) []string {
	suggestions := []string{
		"Free up space on the destination device",
		"Check available space with 'df -h'",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify disk usage for the filesystem containing "+path)
	}

	return suggestions
}

func (g *suggestionGenerator) generateIOSuggestions() []string {
	return []string{
		"Check if there is sufficient disk space on the destination",
		"Check that the connection to the remote host is stable",
		"Try the operation again - this may be a transient I/O error",
	}
}

func (g *suggestionGenerator) generatePathSuggestions(path string) []string {
	suggestions := []string{
		"Verify the path exists and is spelled correctly",
	}

	if path != "" {
		suggestions = append(suggestions, "Check if the path exists: "+path)
		suggestions = append(suggestions, "Ensure all parent directories exist for "+path)
	} else {
		suggestions = append(suggestions, "Ensure all parent directories exist")
	}

	return suggestions
}

func (g *suggestionGenerator) generatePermissionSuggestions(path string) []string {
	suggestions := []string{
		"Ensure you have read/write permissions for the files and directories",
	}

	if path != "" {
		suggestions = append(suggestions, fmt.Sprintf("Check permissions with 'ls -la %s'", path))
	} else {
		suggestions = append(suggestions, "Check permissions with 'ls -la' on the affected path")
	}

	return suggestions
}

func (g *suggestionGenerator) generateRecursiveSuggestions(path string) []string {
	if path != "" {
		return []string{"Re-run with -r to copy the directory " + path}
	}

	return []string{"Re-run with -r to copy directories"}
}

func (g *suggestionGenerator) generateSpecSuggestions() []string {
	return []string{
		"Remote paths use the form user@host:path or user@host:port:path",
		"Copying between two remote hosts is not supported",
	}
}

func (g *suggestionGenerator) generateUnknownSuggestions(path string) []string {
	suggestions := []string{
		"Check the error message for more details",
		"Re-run with --debug and inspect debug.log",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify the path is accessible: "+path)
	}

	return suggestions
}
