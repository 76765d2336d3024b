package models

import "context"

// Agent is the minimal contract a language model must satisfy for the
// booking runtime: one prompt in, one completion out.
type Agent interface {
	Generate(context.Context, string) (any, error)
}
