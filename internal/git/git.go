package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ChangedFile is one file touched by a diff. ChangedLines are line numbers
// in the new version of the file; a pure deletion marks the line it
// follows.
type ChangedFile struct {
	Path         string
	ChangedLines []int
	Deleted      bool
}

// Touches reports whether any changed line falls in [start, end].
func (f ChangedFile) Touches(start, end int) bool {
	for _, l := range f.ChangedLines {
		if l >= start && l <= end {
			return true
		}
	}
	return false
}

// ChangedFiles diffs the working tree under dir against baseRef. Paths are
// absolute.
func ChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	top, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	out, err := run(ctx, dir, "diff", "-U0", "--no-color", "--no-ext-diff", baseRef, "--", ".")
	if err != nil {
		return nil, err
	}
	changes, err := parseDiff(out)
	if err != nil {
		return nil, err
	}
	root := strings.TrimSpace(string(top))
	for i := range changes {
		changes[i].Path = filepath.Join(root, filepath.FromSlash(changes[i].Path))
	}
	return changes, nil
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// @@ -oldStart,oldLen +newStart,newLen @@
var chunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var changes []ChangedFile
	var current *ChangedFile
	flush := func() {
		if current != nil {
			changes = append(changes, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git ") {
			flush()
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				// Prefer the b/ side: it names the file as it exists now
				current = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/"), ChangedLines: []int{}}
			}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "deleted file mode"), line == "+++ /dev/null":
			current.Deleted = true
		case strings.HasPrefix(line, "@@"):
			m := chunkHeader.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("malformed hunk header %q", line)
			}
			start, _ := strconv.Atoi(m[1])
			count := 1
			if m[2] != "" {
				count, _ = strconv.Atoi(m[2])
			}
			if count == 0 {
				if start > 0 {
					current.ChangedLines = append(current.ChangedLines, start)
				}
				continue
			}
			for i := 0; i < count; i++ {
				current.ChangedLines = append(current.ChangedLines, start+i)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return changes, nil
}
