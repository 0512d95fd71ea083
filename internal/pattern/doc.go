// Package pattern compiles route templates into matchers.
//
// Two template grammars are supported:
//
//   - URL templates such as "/users/:id/edit?uid=:id#tab-:tab", compiled by
//     CompileURL into a matcher, an ordered parameter table, query aliases
//     and an optional fragment template.
//   - Handler identity templates such as "Admin\*::list|show", compiled by
//     ParseCallback into an exact matcher and a looser derivative matcher
//     that accepts any class of a handler family.
//
// # Parameter Types
//
// Placeholders are written as a prefix character followed by a name,
// optionally wrapped in braces ("{:id}"):
//
//	:name   anything but a slash
//	!name   identifier characters, starting with a letter
//	^name   digits
//	@name   letters
//	*name   anything, including slashes
//
// A parameter name may appear only once per template.
package pattern
