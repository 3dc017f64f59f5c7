package litmuserrors

import (
	"errors"
	"fmt"
	"strings"
)

// Setup (S) Errors
var (
	ErrLoadArchConfig = errors.New("S1|LoadArchConfig: loading aarch64 architecture failed")
)

// Parse (P) Errors
var (
	ErrParseToml           = errors.New("P1|ParseToml: parsing test TOML failed")
	ErrGetTomlValue        = errors.New("P2|GetTomlValue: parsing value from test TOML failed")
	ErrParseResetValue     = errors.New("P3|ParseResetValue: parsing reset expression from TOML failed")
	ErrParseThread         = errors.New("P4|ParseThread: parsing thread failed")
	ErrParseFinalAssertion = errors.New("P5|ParseFinalAssertion: parsing final assertion failed")
	ErrParseReg            = errors.New("P6|ParseReg: parsing register name failed")
	ErrPageTableSetup      = errors.New("P7|PageTableSetup: page table setup failed")
	ErrGetFunctionArg      = errors.New("P8|GetFunctionArg: function lacks argument")
	ErrParseExp            = errors.New("P9|ParseExp: parsing expression failed")
	ErrParseBits           = errors.New("P10|ParseBits: parsing bits from string failed")
	ErrParseSyncHandler    = errors.New("P11|ParseSyncHandler: parsing sync handler failed")
)

// Translation (T) Errors
var (
	ErrUnimplementedFunction = errors.New("T1|UnimplementedFunction: unimplemented function")
	ErrUnknownThread         = errors.New("T2|UnknownThread: assertion names a thread that is not declared")
	ErrUnsupported           = errors.New("T3|Unsupported: test not supported")
)

// Internal (I) Errors. These indicate a combination the translator can reach
// but has no representation for, never bad input.
var (
	ErrNotImmediate    = errors.New("I1|NotImmediate: value is not an immediate")
	ErrUnrepresentable = errors.New("I2|Unrepresentable: value has no output representation")
)

// Category groups errors the way the driver tallies them.
type Category int

const (
	CategoryNone Category = iota
	CategorySetup
	CategoryFailed
	CategoryUnsupported
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategorySetup:
		return "setup"
	case CategoryFailed:
		return "failed"
	case CategoryUnsupported:
		return "unsupported"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Wrap attaches detail to a sentinel so errors.Is keeps working.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// Unsupported is shorthand for Wrap(ErrUnsupported, ...).
func Unsupported(format string, args ...any) error {
	return Wrap(ErrUnsupported, format, args...)
}

// Classify returns the category of err. Unsupported wins over anything else
// in the chain so deliberately out-of-scope tests are never counted as bugs.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrUnsupported):
		return CategoryUnsupported
	case errors.Is(err, ErrLoadArchConfig):
		return CategorySetup
	case errors.Is(err, ErrNotImmediate), errors.Is(err, ErrUnrepresentable):
		return CategoryInternal
	default:
		return CategoryFailed
	}
}

// IsUnsupported reports whether err marks a deliberately unsupported construct.
func IsUnsupported(err error) bool {
	return Classify(err) == CategoryUnsupported
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	// Split on ':' to separate the error name from its description.
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(err.Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
