package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"
)

// Code is the type representing a namespace error code.
type Code[MT any] struct {
	Code     uint16
	Name     string
	GrpcCode grpccodes.Code
}

// New creates a new error with the given code and the message
func (c Code[MT]) New(msg string, args ...any) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: fmt.Errorf(msg, args...),
	}
}

// Wrap creates a new Error with the given code and the cause error
func (c Code[MT]) Wrap(cause error) TypedError[MT] {
	return &ErrorImpl[MT]{
		code:  c,
		cause: cause,
	}
}

func (c Code[MT]) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.Code)
}

type Error interface {
	error
	Log() *log.Entry
	Code() uint16
	CodeName() string
	GrpcCode() grpccodes.Code
	Metadata() map[string]string
}

type TypedError[MT any] interface {
	Error
	WithMetadata(MT) TypedError[MT]
}

// ErrorImpl is the default concrete implementation of TypedError.
type ErrorImpl[MT any] struct {
	code     Code[MT]
	cause    error
	metadata MT
}

func (e *ErrorImpl[MT]) Log() *log.Entry {
	return log.WithField("name", e.code.Name).
		WithField("code", e.code.Code).
		WithField("metadata", e.metadata)
}

func (e *ErrorImpl[MT]) Metadata() map[string]string {
	// flatten the typed metadata into strings
	metadata := make(map[string]string)
	buf, err := json.Marshal(e.metadata)
	if err == nil {
		var genericMap map[string]any
		if err := json.Unmarshal(buf, &genericMap); err == nil {
			for k, v := range genericMap {
				vStr := ""
				if v != nil {
					vStr = fmt.Sprintf("%v", v)
				}
				metadata[k] = vStr
			}
		}
	}
	return metadata
}

func (e *ErrorImpl[MT]) GrpcCode() grpccodes.Code {
	return e.code.GrpcCode
}

func (e *ErrorImpl[MT]) Code() uint16 {
	return e.code.Code
}

func (e *ErrorImpl[MT]) CodeName() string {
	return e.code.Name
}

// Error() implements the error interface.
func (e *ErrorImpl[MT]) Error() string {
	return fmt.Sprintf("%s: %s", e.code.String(), e.cause.Error())
}

// Unwrap exposes the cause so that serializer or storage failures stay
// reachable with errors.Is/As.
func (e *ErrorImpl[MT]) Unwrap() error {
	return e.cause
}

func (e *ErrorImpl[MT]) WithMetadata(metadata MT) TypedError[MT] {
	e.metadata = metadata
	return e
}

// CodeOf returns the numeric code of the first typed error found in err's
// chain.
func CodeOf(err error) (uint16, bool) {
	var typed Error
	if !stderrors.As(err, &typed) {
		return 0, false
	}
	return typed.Code(), true
}

// Is reports whether err carries the given code, regardless of metadata type.
func Is[MT any](err error, code Code[MT]) bool {
	c, ok := CodeOf(err)
	return ok && c == code.Code
}

type UnderflowMetadata struct {
	Operation string `json:"operation"`
}

type SerializationMetadata struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type CorruptIndexMetadata struct {
	Position   int    `json:"position"`
	Height     uint32 `json:"height"`
	BlockCount uint32 `json:"block_count"`
	Reason     string `json:"reason"`
}

type BlockHeightMetadata struct {
	ExpectedHeight uint32 `json:"expected_height"`
	GotHeight      uint32 `json:"got_height"`
}

type NegativeAmountMetadata struct {
	Height uint32 `json:"height"`
	Amount int64  `json:"amount"`
}

type IndexNotFoundMetadata struct {
	Name string `json:"name"`
}

var INTERNAL_ERROR = Code[map[string]any]{0, "INTERNAL_ERROR", grpccodes.Internal}

var INDEX_UNDERFLOW = Code[UnderflowMetadata]{
	1,
	"INDEX_UNDERFLOW",
	grpccodes.FailedPrecondition,
}

var SERIALIZATION_FAILED = Code[SerializationMetadata]{
	2,
	"SERIALIZATION_FAILED",
	grpccodes.DataLoss,
}
var CORRUPT_INDEX = Code[CorruptIndexMetadata]{3, "CORRUPT_INDEX", grpccodes.DataLoss}

var INVALID_BLOCK_HEIGHT = Code[BlockHeightMetadata]{
	4,
	"INVALID_BLOCK_HEIGHT",
	grpccodes.InvalidArgument,
}

var NEGATIVE_DEPOSIT_AMOUNT = Code[NegativeAmountMetadata]{
	5,
	"NEGATIVE_DEPOSIT_AMOUNT",
	grpccodes.InvalidArgument,
}
var INDEX_NOT_FOUND = Code[IndexNotFoundMetadata]{6, "INDEX_NOT_FOUND", grpccodes.NotFound}
var INVALID_ARGUMENT = Code[map[string]any]{7, "INVALID_ARGUMENT", grpccodes.InvalidArgument}
