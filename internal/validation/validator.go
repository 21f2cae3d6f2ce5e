package validation

import (
	"github.com/hashicorp/go-multierror"
)

type Validator[T any] interface {
	Validate(obj T) error
}

// CompoundValidator runs every validator and returns all of their problems
// as a single *multierror.Error.
type CompoundValidator[T any] struct {
	validators []Validator[T]
}

func NewCompoundValidator[T any](validators ...Validator[T]) CompoundValidator[T] {
	return CompoundValidator[T]{
		validators: validators,
	}
}

func (c CompoundValidator[T]) Validate(obj T) error {
	var result *multierror.Error
	for _, v := range c.validators {
		if err := v.Validate(obj); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Messages flattens a validation error into one message per problem.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		messages = append(messages, e.Error())
	}
	return messages
}
