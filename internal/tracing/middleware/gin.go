package middleware

import (
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/apmtrace/internal/tracing"
	"github.com/GriffinCanCode/apmtrace/internal/tracing/cat"
)

// Gin creates middleware that runs every request inside a web transaction.
func Gin(tracer *tracing.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := tracer.StartTransaction(transactionName(c), true)
		defer txn.End()

		txn.AcceptInboundRequest(tracing.HTTPHeader(c.Request.Header))
		c.Request = c.Request.WithContext(tracing.NewContext(c.Request.Context(), txn))
		cw := &catWriter{ResponseWriter: c.Writer, txn: txn}
		c.Writer = cw

		c.Next()

		// Body-less responses are flushed by gin through the unwrapped
		// writer; the header map is shared, so setting it here is enough.
		if !cw.Written() {
			cw.addAppData()
		}
	}
}

// Transaction returns the transaction opened by Gin for this request.
func Transaction(c *gin.Context) *tracing.Transaction {
	return tracing.FromContext(c.Request.Context())
}

func transactionName(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		return c.Request.Method + " NotFound"
	}
	return c.Request.Method + " " + path
}

// catWriter adds the App-Data header just before the response header is sent.
type catWriter struct {
	gin.ResponseWriter
	txn  *tracing.Transaction
	once sync.Once
}

func (w *catWriter) addAppData() {
	w.once.Do(func() {
		length := int64(-1)
		if v := w.Header().Get("Content-Length"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				length = n
			}
		}
		if value, ok := w.txn.ResponseAppDataHeader(length); ok {
			w.Header().Set(cat.HeaderAppData, value)
		}
	})
}

func (w *catWriter) WriteHeaderNow() {
	w.addAppData()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *catWriter) Write(data []byte) (int, error) {
	w.addAppData()
	return w.ResponseWriter.Write(data)
}

func (w *catWriter) WriteString(s string) (int, error) {
	w.addAppData()
	return w.ResponseWriter.WriteString(s)
}

func (w *catWriter) Flush() {
	w.addAppData()
	w.ResponseWriter.Flush()
}
