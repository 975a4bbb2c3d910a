package graph

import (
	"fmt"
	"strings"
)

// NodeID derives a stable node identifier from the file path, the
// containing entity names on the path from the file down, and the
// entity's own name: "file.py:ClassA:method". Anonymous entities
// (names of the form "<...>") get a ":<line>" suffix so distinct
// anonymous siblings stay distinct. IDs never depend on storage
// position, so re-extracting an unchanged file reproduces them exactly.
func NodeID(filePath string, containers []string, name string, startLine int) string {
	var sb strings.Builder
	sb.WriteString(filePath)
	for _, c := range containers {
		sb.WriteByte(':')
		sb.WriteString(c)
	}
	sb.WriteByte(':')
	sb.WriteString(name)
	if strings.HasPrefix(name, "<") {
		fmt.Fprintf(&sb, ":%d", startLine)
	}
	return sb.String()
}

// SplitNodeID splits a node ID into its file path and qualified-name
// segments. The file path is everything before the first ':'.
func SplitNodeID(id string) (filePath string, segments []string) {
	i := strings.IndexByte(id, ':')
	if i < 0 {
		return id, nil
	}
	return id[:i], strings.Split(id[i+1:], ":")
}
