package domain

import "errors"

var (
	// ErrNotFound indicates a missing project, user or category reference.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a name collision on create.
	ErrDuplicate = errors.New("already exists")
	// ErrNotCollaborator indicates a role or membership lookup for a non-member.
	ErrNotCollaborator = errors.New("not a collaborator")
	// ErrNotAuthorized indicates the actor's role does not permit the mutation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrValidation indicates malformed input or a forbidden edit.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates that the underlying storage rejected a replace
	// because a newer revision of the document is already persisted.
	ErrConflict = errors.New("concurrency conflict")
	// ErrCorruptData indicates a stored document that cannot be decoded.
	ErrCorruptData = errors.New("corrupt data")
)
