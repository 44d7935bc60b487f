package retrieval

import (
	"context"
	"errors"

	errs "igloader/pkg/errors"
)

// Kind tags the result of one retrieval
type Kind int

const (
	// Written means at least one new media file was stored
	Written Kind = iota
	// AlreadyPresent means every media file was already on disk
	AlreadyPresent
	// BadResponse means Instagram answered with something unusable
	BadResponse
	// ProfileNotFound means the owning profile could not be resolved
	ProfileNotFound
	// PostNotFound means no post exists for the shortcode
	PostNotFound
	// ConnectionFailure means Instagram could not be reached
	ConnectionFailure
	// Unexpected covers every other failure
	Unexpected
)

func (k Kind) String() string {
	switch k {
	case Written:
		return "written"
	case AlreadyPresent:
		return "already_present"
	case BadResponse:
		return "bad_response"
	case ProfileNotFound:
		return "profile_not_found"
	case PostNotFound:
		return "post_not_found"
	case ConnectionFailure:
		return "connection_failure"
	case Unexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Success reports whether k is one of the success kinds
func (k Kind) Success() bool {
	return k == Written || k == AlreadyPresent
}

// Outcome is the tagged result of Retriever.Retrieve
type Outcome struct {
	Kind Kind
	// Path is the target directory for the success kinds
	Path string
	// Detail describes the failure for BadResponse and Unexpected
	Detail string
	// Err is the underlying error for failure kinds, for logging only
	Err error
}

// Retriever fetches one post into a directory
type Retriever interface {
	Retrieve(ctx context.Context, postID, target string) Outcome
}

// RetrieverFunc adapts a function to Retriever
type RetrieverFunc func(ctx context.Context, postID, target string) Outcome

// Retrieve calls f
func (f RetrieverFunc) Retrieve(ctx context.Context, postID, target string) Outcome {
	return f(ctx, postID, target)
}

// WrittenTo reports new files written under path
func WrittenTo(path string) Outcome {
	return Outcome{Kind: Written, Path: path}
}

// PresentIn reports that path already held every file
func PresentIn(path string) Outcome {
	return Outcome{Kind: AlreadyPresent, Path: path}
}

// Failed classifies err into a failure outcome
func Failed(err error) Outcome {
	kind, detail := Classify(err)
	return Outcome{Kind: kind, Detail: detail, Err: err}
}

// Classify maps an error from the retrieval path onto a failure kind and its detail
func Classify(err error) (Kind, string) {
	if err == nil {
		return Unexpected, "retrieval failed without an error"
	}

	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		return Unexpected, err.Error()
	}

	switch apiErr.Type {
	case errs.ErrorTypeParsing, errs.ErrorTypeBadResponse:
		return BadResponse, apiErr.Message
	case errs.ErrorTypeProfileNotFound:
		return ProfileNotFound, apiErr.Message
	case errs.ErrorTypeNotFound:
		return PostNotFound, apiErr.Message
	case errs.ErrorTypeNetwork, errs.ErrorTypeRateLimit, errs.ErrorTypeServerError:
		return ConnectionFailure, apiErr.Message
	default:
		return Unexpected, err.Error()
	}
}
