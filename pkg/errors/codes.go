package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	CodeOK                 ErrorCode = "OK"
	CodeUnknown            ErrorCode = "COMMON_000"
	CodeInternal           ErrorCode = "COMMON_001"
	CodeInvalidParam       ErrorCode = "COMMON_002"
	CodeNotFound           ErrorCode = "COMMON_003"
	CodeConflict           ErrorCode = "COMMON_004"
	CodeServiceUnavailable ErrorCode = "COMMON_005"
	CodeTimeout            ErrorCode = "COMMON_006"
	CodeSerialization      ErrorCode = "COMMON_007"
	CodeDatabaseError      ErrorCode = "COMMON_008"
	CodeCacheError         ErrorCode = "COMMON_009"
	CodeNotImplemented     ErrorCode = "COMMON_010"
)

// Molecule toolkit error codes
const (
	CodeInvalidSMILES      ErrorCode = "CHEM_001"
	CodeEmptyMolecule      ErrorCode = "CHEM_002"
	CodeAtomOutOfRange     ErrorCode = "CHEM_003"
	CodeUnknownElement     ErrorCode = "CHEM_004"
	CodeCanonicalizeFailed ErrorCode = "CHEM_005"
)

// Decomposition engine error codes
const (
	CodeUnknownRuleFamily ErrorCode = "DECOMP_001"
	CodeCleavageFailed    ErrorCode = "DECOMP_002"
)

// Reference library error codes
const (
	CodeInsufficientSample ErrorCode = "LIB_001"
	CodeLibraryNotFound    ErrorCode = "LIB_002"
	CodeLibraryCorrupt     ErrorCode = "LIB_003"
)

// Similarity counter error codes
const (
	CodeVectorDimMismatch ErrorCode = "SIM_001"
	CodeUnknownMetric     ErrorCode = "SIM_002"
	CodeSearchFailed      ErrorCode = "SIM_003"
	CodeBackendUnknown    ErrorCode = "SIM_004"
)

// Subsetting pipeline error codes
const (
	CodeCompoundRejected ErrorCode = "PIPE_001"
	CodeSinkFailed       ErrorCode = "PIPE_002"
	CodeSourceExhausted  ErrorCode = "PIPE_003"
)
