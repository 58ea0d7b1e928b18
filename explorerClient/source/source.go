package source

import "fmt"

// Type identifies a data source backing the explorer.
type Type string

const (
	GraphQL Type = "graphql"
	RPC     Type = "rpc"
)

func (t Type) String() string {
	return string(t)
}

// Valid reports whether t is a known source type.
func (t Type) Valid() bool {
	return t == GraphQL || t == RPC
}

// Parse converts a config or query-string value into a source type.
func Parse(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown data source %q (expected %q or %q)", s, GraphQL, RPC)
	}
	return t, nil
}

// All returns every source type in default priority order.
func All() []Type {
	return []Type{GraphQL, RPC}
}
