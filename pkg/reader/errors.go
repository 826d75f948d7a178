package reader

import (
	"github.com/quartzdata/sasarrow/pkg/engine"
	"github.com/quartzdata/sasarrow/pkg/saserrors"
)

// translate maps an engine status plus the dynamically captured last-error
// detail into a structured bridge error. The static message for the code and
// the detail are concatenated so no diagnostic information is dropped.
func translate(st engine.StatusCode, detail string) *saserrors.Error {
	msg := st.Message()
	if detail != "" {
		msg = msg + ": " + detail
	}
	return saserrors.New(codeFor(st), msg).WithDetail("engine_status", uint32(st))
}

// codeFor is the closed status-to-code mapping. Unknown statuses map to the
// internal code with the raw status preserved as a detail by translate.
func codeFor(st engine.StatusCode) saserrors.Code {
	switch st {
	case engine.StatusFileNotFound:
		return saserrors.CodeFileNotFound
	case engine.StatusInvalidFile:
		return saserrors.CodeInvalidFile
	case engine.StatusOutOfMemory:
		return saserrors.CodeOutOfMemory
	case engine.StatusEndOfData:
		return saserrors.CodeEndOfData
	case engine.StatusInvalidBatchIndex:
		return saserrors.CodeInvalidBatchIndex
	case engine.StatusNullPointer:
		return saserrors.CodeNullPointer
	default:
		return saserrors.CodeInternal
	}
}
