package event

import "strings"

// Permission is a bit set. The bit layout matches Discord's permission flags
// so the transport can pass member permissions through unchanged.
type Permission int64

const PermissionNone Permission = 0

const (
	PermissionKickMembers    Permission = 1 << 1
	PermissionBanMembers     Permission = 1 << 2
	PermissionAdministrator  Permission = 1 << 3
	PermissionManageChannels Permission = 1 << 4
	PermissionManageGuild    Permission = 1 << 5
	PermissionManageMessages Permission = 1 << 13
	PermissionManageRoles    Permission = 1 << 28
)

// Has reports whether the set grants every bit of want. Administrator grants
// everything.
func (p Permission) Has(want Permission) bool {
	if want == PermissionNone || p&PermissionAdministrator != 0 {
		return true
	}
	return p&want == want
}

var permissionNames = []struct {
	bit  Permission
	name string
}{
	{PermissionKickMembers, "kick_members"},
	{PermissionBanMembers, "ban_members"},
	{PermissionAdministrator, "administrator"},
	{PermissionManageChannels, "manage_channels"},
	{PermissionManageGuild, "manage_guild"},
	{PermissionManageMessages, "manage_messages"},
	{PermissionManageRoles, "manage_roles"},
}

func (p Permission) String() string {
	if p == PermissionNone {
		return "none"
	}
	var parts []string
	for _, pn := range permissionNames {
		if p&pn.bit != 0 {
			parts = append(parts, pn.name)
		}
	}
	if len(parts) == 0 {
		return "custom"
	}
	return strings.Join(parts, "|")
}
