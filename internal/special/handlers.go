package special

// builtinHandlers returns the closed set of special pages.
func builtinHandlers() []*Handler {
	var out []*Handler
	out = append(out, miscHandlers()...)
	out = append(out, userHandlers()...)
	out = append(out, pageAdminHandlers()...)
	return out
}
