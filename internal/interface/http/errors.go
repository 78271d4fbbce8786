package httpservice

import (
	stderrors "errors"

	"github.com/arkade-os/depositd/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	log "github.com/sirupsen/logrus"
)

var somethingWentWrong = errors.INTERNAL_ERROR.New("something went wrong")

// abortWithError writes err as a json error body, the http status is derived
// from the grpc code attached to the error.
func abortWithError(c *gin.Context, err error) {
	var structuredErr errors.Error
	if !stderrors.As(err, &structuredErr) {
		structuredErr = errors.INTERNAL_ERROR.Wrap(err)
	}

	if structuredErr.Code() == errors.INTERNAL_ERROR.Code {
		structuredErr.Log().
			WithField("path", c.FullPath()).
			Error(structuredErr.Error())
	}

	c.AbortWithStatusJSON(
		runtime.HTTPStatusFromCode(structuredErr.GrpcCode()),
		errorResponse{
			Error:    structuredErr.Error(),
			Code:     structuredErr.Code(),
			Name:     structuredErr.CodeName(),
			Metadata: structuredErr.Metadata(),
		},
	)
}

func invalidArgument(c *gin.Context, format string, args ...any) {
	abortWithError(c, errors.INVALID_ARGUMENT.New(format, args...))
}

// recovery converts panics into INTERNAL_ERROR responses.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, r any) {
		log.Errorf("panic-recovery middleware recovered from panic: %v", r)
		abortWithError(c, somethingWentWrong)
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithField("status", c.Writer.Status()).
			Debugf("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}
