package gitsrc

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// refLogFields is the minimum number of space-separated fields in the header
// portion of a reflog line: old hash, new hash, identity, timestamp, zone.
const refLogFields = 5

// GetReflog returns the recorded positions of a local branch ref, newest
// first. Neither libgit2 nor the porcelain expose reflogs through the object
// database; the on-disk log under .git/logs is the only record, so it is
// parsed directly. A missing log (never written, or expired and pruned)
// yields an empty slice, not an error.
func (s *GitSource) GetReflog(ctx context.Context, refName string) ([]ReflogEntry, error) {
	s.mu.Lock()
	gitDir := s.repo.Path()
	s.mu.Unlock()

	logPath := filepath.Join(gitDir, "logs", normalizeRefName(refName))

	file, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("open reflog %s: %w", refName, err)
	}
	defer file.Close()

	var entries []ReflogEntry

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		entry, ok := parseReflogLine(scanner.Text())
		if !ok {
			continue
		}

		entries = append(entries, entry)
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return nil, fmt.Errorf("read reflog %s: %w", refName, scanErr)
	}

	// On disk the log is oldest first; callers expect git's @{0}-is-newest order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

func normalizeRefName(refName string) string {
	if strings.HasPrefix(refName, "refs/") || refName == "HEAD" {
		return refName
	}

	return "refs/heads/" + refName
}

// parseReflogLine parses one line of the on-disk reflog format:
//
//	<old-sha> <new-sha> <name> <<email>> <unix-ts> <tz>\t<message>
func parseReflogLine(line string) (ReflogEntry, bool) {
	header, message, _ := strings.Cut(line, "\t")

	fields := strings.Fields(header)
	if len(fields) < refLogFields {
		return ReflogEntry{}, false
	}

	newHash := fields[1]
	if len(newHash) != HashHexSize {
		return ReflogEntry{}, false
	}

	// Timestamp and timezone are the last two fields; the identity between
	// the hashes and the timestamp may itself contain spaces.
	tsField := fields[len(fields)-2]

	unixTS, err := strconv.ParseInt(tsField, 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}

	action, _, _ := strings.Cut(message, ":")

	return ReflogEntry{
		Position: NewHash(newHash),
		Action:   strings.TrimSpace(action),
		When:     time.Unix(unixTS, 0),
	}, true
}
