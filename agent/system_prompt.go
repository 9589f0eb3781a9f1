package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

const basePrompt = `You are a coding assistant operating inside the user's project directory.
You can inspect and modify files through the tools declared in each request.
Use tools when you need concrete information about the project; answer directly
when you already have what you need. When you finish, reply with a plain text
answer and no further tool calls.`

// BuildSystemPrompt assembles the session system prompt: base instructions,
// an environment block, project instruction files, and any user-supplied
// instructions appended last.
func BuildSystemPrompt(workDir string, toolNames []string, userInstructions string) string {
	var sections []string
	sections = append(sections, basePrompt)

	if len(toolNames) > 0 {
		sections = append(sections, "Available tools: "+strings.Join(toolNames, ", "))
	}

	sections = append(sections, buildEnvironmentContext(workDir))

	if docs := discoverProjectDocs(workDir); docs != "" {
		sections = append(sections, docs)
	}

	if userInstructions != "" {
		sections = append(sections, "# User Instructions\n\n"+userInstructions)
	}

	return strings.Join(sections, "\n\n")
}

// buildEnvironmentContext generates the structured environment block.
func buildEnvironmentContext(workDir string) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", workDir)
	if branch := gitBranch(workDir); branch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", branch)
	}
	fmt.Fprintf(&sb, "Platform: %s\n", runtime.GOOS)
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	sb.WriteString("</environment>")
	return sb.String()
}

// discoverProjectDocs loads recognized project instruction files from the
// working directory, capped at 32KB total.
func discoverProjectDocs(workDir string) string {
	recognized := []string{"AGENTS.md", "DUET.md"}

	var docs []string
	totalBytes := 0
	for _, name := range recognized {
		content, err := os.ReadFile(filepath.Join(workDir, name))
		if err != nil {
			continue
		}
		remaining := maxProjectDocBytes - totalBytes
		if remaining <= 0 {
			docs = append(docs, "[Project instructions truncated at 32KB]")
			break
		}
		text := string(content)
		if len(text) > remaining {
			text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
		}
		docs = append(docs, "# "+name+"\n\n"+text)
		totalBytes += len(text)
	}

	if len(docs) == 0 {
		return ""
	}
	return strings.Join(docs, "\n\n---\n\n")
}

func gitBranch(dir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
