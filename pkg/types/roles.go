package types

// Reserved attachment roles. The web layer and the CLI select attachments by
// these strings, so they must never change.
const (
	RoleStorage   = "storage"
	RoleFullText  = "full-text"
	RoleThumbnail = "thumbnail"
	RoleTag       = "tag"
	RoleAuthor    = "author"
	RoleType      = "type"
	RoleDate      = "date"
	RolePath      = "path"
	RoleDOI       = "doi"
	RoleURL       = "url"
)

// Roles lists every reserved role.
var Roles = []string{
	RoleStorage,
	RoleFullText,
	RoleThumbnail,
	RoleTag,
	RoleAuthor,
	RoleType,
	RoleDate,
	RolePath,
	RoleDOI,
	RoleURL,
}

// IsReservedRole reports whether role is one of the reserved roles.
func IsReservedRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
