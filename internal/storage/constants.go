package storage

// Operation names recorded in the deletion log
const (
	OperationDeleteTag    = "delete_tag"
	OperationDeleteDigest = "delete_digest"
	OperationDeleteAll    = "delete_all"
)

// validOperations lists the operations LogDeletion accepts
var validOperations = map[string]bool{
	OperationDeleteTag:    true,
	OperationDeleteDigest: true,
	OperationDeleteAll:    true,
}
