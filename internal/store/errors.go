package store

import "errors"

// Store errors.
var (
	ErrTagNotFound     = errors.New("tag not found")
	ErrTagExists       = errors.New("tag already exists")
	ErrAliasNotFound   = errors.New("alias not found")
	ErrAliasExists     = errors.New("alias already exists")
	ErrTaggingNotFound = errors.New("tagging not found")
	ErrEntityNotFound  = errors.New("entity not found")
)
