// Package errors provides structured error handling for list operations.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// List errors
	CodeListNameEmpty       Code = "LIST_NAME_EMPTY"
	CodeListInvalidPrivacy  Code = "LIST_INVALID_PRIVACY"
	CodeListInvalidCuration Code = "LIST_INVALID_CURATION"
	CodeListEmptyOwnerID    Code = "LIST_EMPTY_OWNER_ID"

	// Item errors
	CodeItemEmptyResource Code = "ITEM_EMPTY_RESOURCE"
	CodeItemEmptyListID   Code = "ITEM_EMPTY_LIST_ID"

	// Operation errors
	CodeUnauthorized             Code = "UNAUTHORIZED"
	CodeContributionNotPermitted Code = "CONTRIBUTION_NOT_PERMITTED"
	CodeInvalidPosition          Code = "INVALID_POSITION"
	CodeOrderingConflict         Code = "ORDERING_CONFLICT"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeListNameEmpty,
		CodeListInvalidPrivacy,
		CodeListInvalidCuration,
		CodeListEmptyOwnerID,
		CodeItemEmptyResource,
		CodeItemEmptyListID,
		CodeInvalidPosition:
		return codes.InvalidArgument

	// PermissionDenied - actor lacks permission for the mutation
	case CodeUnauthorized,
		CodeContributionNotPermitted:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// AlreadyExists - uniqueness violation on a caller-visible key
	case CodeAlreadyExists:
		return codes.AlreadyExists

	// Internal - ordering conflicts indicate an internal consistency bug
	case CodeOrderingConflict:
		return codes.Internal

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeListNameEmpty,
		CodeListInvalidPrivacy,
		CodeListInvalidCuration,
		CodeListEmptyOwnerID,
		CodeItemEmptyResource,
		CodeItemEmptyListID,
		CodeInvalidPosition:
		return http.StatusBadRequest
	case CodeUnauthorized,
		CodeContributionNotPermitted:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
