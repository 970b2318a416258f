// Package wiki implements the page data model, the title resolver, the
// namespace registry, the repository service and the authorization policy.
package wiki

// Permission strings carried by user groups.
const (
	PermWikiEdit          = "wiki_edit"
	PermWikiDelete        = "wiki_delete"
	PermWikiRename        = "wiki_rename"
	PermWikiRevert        = "wiki_revert"
	PermWikiProtect       = "wiki_protect"
	PermWikiMask          = "wiki_mask"
	PermWikiEditUserPages = "wiki_edit_user_pages"
	PermWikiEditInterface = "wiki_edit_interface"
	PermEditUserGroups    = "edit_user_groups"
	PermBlockUsers        = "block_users"
)

// Built-in group labels. The "all" group is implicit for every principal.
const (
	GroupAll           = "all"
	GroupUsers         = "users"
	GroupAutopatrolled = "autopatrolled"
	GroupPatrollers    = "patrollers"
	GroupAdmins        = "admins"
)

// Page content types.
const (
	ContentTypeWikipage = "wikipage"
	ContentTypeModule   = "module"
	ContentTypeCSS      = "css"
	ContentTypeJS       = "js"
	ContentTypeJSON     = "json"
)

// MimeType returns the raw-content MIME type for a page content type.
func MimeType(contentType string) string {
	switch contentType {
	case ContentTypeModule:
		return "text/x-python3"
	case ContentTypeCSS:
		return "text/css"
	case ContentTypeJS:
		return "text/javascript"
	case ContentTypeJSON:
		return "application/json"
	default:
		return "text/plain"
	}
}
