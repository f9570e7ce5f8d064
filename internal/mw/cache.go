package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body    *bytes.Buffer
	maxBody int
}

func (w *bodyCacheWriter) capture(n int, b []byte) {
	if w.body != nil && w.body.Len()+n <= w.maxBody {
		w.body.Write(b)
		return
	}
	// Too large to keep.
	w.body = nil
}

func (w *bodyCacheWriter) Write(b []byte) (int, error) {
	w.capture(len(b), b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCacheWriter) WriteString(s string) (int, error) {
	w.capture(len(s), []byte(s))
	return w.ResponseWriter.WriteString(s)
}

// ImmutableCache keeps successful GET responses in memory. Only use it for
// routes whose content never changes for a given URI, such as attachment
// objects whose keys embed the upload time. Bodies larger than maxBody are
// served but not kept.
func ImmutableCache(store *cache.Cache, duration time.Duration, maxBody int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.Path
		if resp, found := store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer, maxBody: maxBody}
		c.Writer = blw

		c.Next()

		if blw.Status() == http.StatusOK && blw.body != nil {
			store.Set(key, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}, duration)
		}
	}
}
