package model

import "strings"

// ID names a user, group or station as "seed@address".
type ID string

const (
	Anyone   ID = "anyone@anywhere"
	Everyone ID = "everyone@everywhere"
)

func NewID(seed, address string) ID {
	if seed == "" {
		return ID(address)
	}
	return ID(seed + "@" + address)
}

// Name returns the seed part, or the whole identifier when it has none.
func (id ID) Name() string {
	s := string(id)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[:i]
	}
	return s
}

func (id ID) Address() string {
	s := string(id)
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (id ID) IsEmpty() bool {
	return id == ""
}

// IsBroadcast reports whether the identifier addresses everyone (or anyone)
// instead of a single entity.
func (id ID) IsBroadcast() bool {
	switch id.Address() {
	case "everywhere", "anywhere":
		return true
	}
	return false
}

func (id ID) String() string {
	return string(id)
}

// EntityType discriminates persons, groups and stations.
type EntityType uint8

const (
	EntityPerson  EntityType = 0x01
	EntityGroup   EntityType = 0x10
	EntityStation EntityType = 0x88
)

func (t EntityType) IsUser() bool    { return t == EntityPerson }
func (t EntityType) IsGroup() bool   { return t == EntityGroup }
func (t EntityType) IsStation() bool { return t == EntityStation }
