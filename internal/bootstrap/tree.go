// Package bootstrap walks the shard tree shared by the keyring's known-key
// registration and the coffer store's initial value loading. Both passes
// read the same bootstrap TOML document: a tree of tables where a table is a
// shard iff it has a string "id" field, and any other table is a group to be
// recursed into. Shards must be leaves; a shard table containing a nested
// subtable is a parse error.
package bootstrap

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/arminfriedl/coffer/internal/coffererr"
)

// Shard is one parsed shard: its id and its non-id scalar fields.
type Shard struct {
	ID     string
	Fields map[string]interface{}
}

// Parse parses a bootstrap TOML document into its flat list of shards,
// recursing through group tables and rejecting shards with nested subtables.
func Parse(doc string) ([]Shard, error) {
	var root map[string]interface{}
	if _, err := toml.Decode(doc, &root); err != nil {
		return nil, coffererr.Wrap(coffererr.Parse, "bootstrap.Parse", err)
	}

	var shards []Shard
	if err := walk(root, &shards); err != nil {
		return nil, err
	}
	return shards, nil
}

func walk(table map[string]interface{}, out *[]Shard) error {
	if _, hasID := table["id"]; !hasID {
		for key, val := range table {
			subtable, ok := val.(map[string]interface{})
			if !ok {
				return coffererr.New(coffererr.Parse,
					fmt.Sprintf("bootstrap: field %q in a group table must be a table", key))
			}
			if err := walk(subtable, out); err != nil {
				return err
			}
		}
		return nil
	}

	idVal, ok := table["id"].(string)
	if !ok {
		return coffererr.New(coffererr.Parse, "bootstrap: \"id\" field must be a string")
	}

	fields := make(map[string]interface{}, len(table)-1)
	for key, val := range table {
		if key == "id" {
			continue
		}
		if _, isTable := val.(map[string]interface{}); isTable {
			return coffererr.New(coffererr.Parse,
				fmt.Sprintf("bootstrap: shard %q cannot contain nested table %q", idVal, key))
		}
		fields[key] = val
	}

	*out = append(*out, Shard{ID: idVal, Fields: fields})
	return nil
}
