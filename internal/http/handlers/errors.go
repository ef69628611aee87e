package handlers

import "errors"

var (
	errInvalidNodeId       = errors.New("id must match ^[A-Za-z0-9_-]{3,64}$")
	errInvalidFingerprint  = errors.New("hardwareFingerprint must be nonempty and at most 128 characters")
	errInvalidLoginFields  = errors.New("nodeId and hardwareFingerprint are required")
	errInvalidIpAddress    = errors.New("ipAddress must be a valid IPv4 or IPv6 literal")
	errInvalidFilePath     = errors.New("filePath must be nonempty after trimming")
	errInvalidJobName      = errors.New("name must be 1-200 characters")
	errInvalidJobType      = errors.New("type is not a known job type")
	errInvalidParameters   = errors.New("parameters exceeds 64 KiB")
	errInvalidRowVersion   = errors.New("rowVersion is required when status is present")
	errInvalidPagination   = errors.New("page and pageSize must be positive integers")
	errInvalidFolderStatus = errors.New("status is not a known folder status")
	errActorMismatch       = errors.New("authenticated node does not match the requested actor")
	errInvalidID           = errors.New("id must be a positive integer")
)
