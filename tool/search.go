package tool

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// SearchTool searches file contents under the working directory. Patterns
// match literally unless the tool was constructed with regex enabled;
// literal matching keeps model-supplied punctuation from being interpreted.
type SearchTool struct {
	regex      bool
	maxMatches int
}

// SearchToolOptions configures NewSearchTool.
type SearchToolOptions struct {
	// Regex interprets patterns as Go regular expressions instead of
	// literal substrings.
	Regex bool

	// MaxMatches caps the number of returned matches. Defaults to 100.
	MaxMatches int
}

// NewSearchTool constructs the search tool.
func NewSearchTool(optFns ...func(*SearchToolOptions)) *SearchTool {
	opts := SearchToolOptions{MaxMatches: 100}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SearchTool{regex: opts.Regex, maxMatches: opts.MaxMatches}
}

// Name implements Tool.
func (t *SearchTool) Name() string { return "search" }

// Description implements Tool.
func (t *SearchTool) Description() string {
	if t.regex {
		return "Search files under the working directory for a regular expression."
	}
	return "Search files under the working directory for a literal text pattern."
}

// Parameters implements Tool.
func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "The text to search for.",
			},
			"glob": map[string]any{
				"type":        "string",
				"description": "Optional file name glob, e.g. *.go.",
			},
		},
		"required": []string{"pattern"},
	}
}

type searchMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Call implements Tool.
func (t *SearchTool) Call(execCtx *ExecContext, args map[string]any) (any, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return nil, NewToolError(t.Name(), "pattern must not be empty", "invalid_argument")
	}
	glob, _ := args["glob"].(string)

	match := func(line string) bool { return strings.Contains(line, pattern) }
	if t.regex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, NewToolError(t.Name(), fmt.Sprintf("invalid pattern: %v", err), "invalid_argument")
		}
		match = re.MatchString
	}

	root := execCtx.WorkDir()
	if root == "" {
		root = "."
	}

	var matches []searchMatch
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctxErr := execCtx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if glob != "" {
			if ok, _ := filepath.Match(glob, d.Name()); !ok {
				return nil
			}
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if scanErr := t.scanFile(path, rel, match, &matches); scanErr != nil {
			return scanErr
		}
		if len(matches) >= t.maxMatches {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (t *SearchTool) scanFile(path, rel string, match func(string) bool, matches *[]searchMatch) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // skip unreadable files
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if match(line) {
			*matches = append(*matches, searchMatch{File: rel, Line: lineNo, Text: line})
			if len(*matches) >= t.maxMatches {
				return nil
			}
		}
	}
	return nil
}
