package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commentBody struct {
	Text string `json:"text" binding:"required,notblank,max=10"`
}

func bindBody(t *testing.T, body string) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var dst commentBody
	return Bind(c, &dst)
}

func TestBind(t *testing.T) {
	Setup()

	assert.Nil(t, bindBody(t, `{"text":"hello"}`))

	fields := bindBody(t, `{"text":"   "}`)
	require.Contains(t, fields, "text")
	assert.Equal(t, "text must not be blank", fields["text"])

	fields = bindBody(t, `{"text":"this is far too long"}`)
	require.Contains(t, fields, "text")

	fields = bindBody(t, `{"text":`)
	assert.Contains(t, fields, "detail")
}
