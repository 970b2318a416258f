package wiki

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions without parameters.
var (
	ErrEmptyTitle             = errors.New("wiki: empty title")
	ErrBlocked                = errors.New("wiki: user is blocked")
	ErrProtected              = errors.New("wiki: page is protected")
	ErrPageDoesNotExist       = errors.New("wiki: page does not exist")
	ErrTitleAlreadyExists     = errors.New("wiki: title already exists")
	ErrConcurrentEdit         = errors.New("wiki: page edited concurrently")
	ErrEditSpecialPage        = errors.New("wiki: special pages cannot be edited")
	ErrNoRevisions            = errors.New("wiki: page has no revisions")
	ErrCannotMaskLastRevision = errors.New("wiki: cannot mask the last visible revision")
	ErrRevisionDoesNotExist   = errors.New("wiki: page revision does not exist")
	ErrFollowSpecialPage      = errors.New("wiki: special pages cannot be followed")
	ErrParseTooLarge          = errors.New("wiki: parsed text exceeds the size ceiling")
)

// BadTitleError reports a title containing a forbidden character.
type BadTitleError struct {
	Char rune
}

func (e *BadTitleError) Error() string {
	return fmt.Sprintf("wiki: bad title character %q", e.Char)
}

// MissingPermissionError reports which permissions the principal lacks.
type MissingPermissionError struct {
	Perms []string
}

func (e *MissingPermissionError) Error() string {
	return "wiki: missing permission " + strings.Join(e.Perms, ", ")
}

// CannotEditPageError reports a page that the principal may not edit.
type CannotEditPageError struct {
	FullTitle string
}

func (e *CannotEditPageError) Error() string {
	return fmt.Sprintf("wiki: cannot edit page %q", e.FullTitle)
}
