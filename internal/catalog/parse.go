// Package catalog turns flat provider tool lists into a server-grouped
// catalog and answers free-text queries against it.
package catalog

import "strings"

const (
	// Delimiter separates namespace segments inside a tool identifier.
	Delimiter = "_"
	// UnknownServer is used for identifiers that carry no namespace.
	UnknownServer = "unknown"
)

// Parse splits identifier into its server and tool name. The first
// segment is the server and the rest, rejoined, is the name. Identifiers
// without a delimiter land under UnknownServer unchanged.
//
// Parse only sees a single identifier, so multi-segment namespaces such as
// "mcp_com_atlassian_search" are refined later by the Grouper.
func Parse(identifier string) (server, name string) {
	head, rest, ok := strings.Cut(identifier, Delimiter)
	if !ok {
		return UnknownServer, identifier
	}
	return head, rest
}
