package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"susu_keeper/internal/domain/group"
)

// GroupsFile is the TOML layout of the groups file:
//
//	[[group]]
//	address = "0x..."
//	name = "Family Circle"
type GroupsFile struct {
	Groups []GroupEntry `toml:"group"`
}

type GroupEntry struct {
	Address string `toml:"address"`
	Name    string `toml:"name"`
}

// LoadGroups decodes and validates a groups file.
func LoadGroups(path string) ([]group.Group, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("groups file does not exist: %s", path)
	}

	var file GroupsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to parse groups file: %w", err)
	}
	return file.Validate()
}

// Validate checks every entry and returns the groups in file order.
func (f GroupsFile) Validate() ([]group.Group, error) {
	seen := make(map[common.Address]bool, len(f.Groups))
	groups := make([]group.Group, 0, len(f.Groups))
	for i, entry := range f.Groups {
		raw := strings.TrimSpace(entry.Address)
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("group %d: invalid address %q", i+1, entry.Address)
		}
		addr := common.HexToAddress(raw)
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("group %d: zero address", i+1)
		}
		if seen[addr] {
			return nil, fmt.Errorf("group %d: duplicate address %s", i+1, addr.Hex())
		}
		seen[addr] = true
		groups = append(groups, group.Group{Address: addr, Name: strings.TrimSpace(entry.Name)})
	}
	return groups, nil
}

// StaticGroupSource serves a fixed list of groups.
type StaticGroupSource []group.Group

func (s StaticGroupSource) ListGroups(_ context.Context) ([]group.Group, error) {
	out := make([]group.Group, len(s))
	copy(out, s)
	return out, nil
}
