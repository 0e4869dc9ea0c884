package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Catalog errors
	CodeCatalogInvalid  Code = "CATALOG_INVALID"
	CodeTemplateInvalid Code = "TEMPLATE_INVALID"

	// Generation errors
	CodeSelectionFailed     Code = "SELECTION_FAILED"
	CodeCompositionFailed   Code = "COMPOSITION_FAILED"
	CodeDuplicateExhaustion Code = "DUPLICATE_EXHAUSTION"

	// Output errors
	CodeMetadataWriteFailed Code = "METADATA_WRITE_FAILED"
	CodeMetadataInvalid     Code = "METADATA_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)
