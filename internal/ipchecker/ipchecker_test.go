package ipchecker

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareBehindProxy(t *testing.T) {
	checker, err := New("192.168.1.0/24", WithTrustProxyHeaders(true))
	require.NoError(t, err)

	handler := checker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	testCases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       int
	}{
		{name: "remote addr inside", remoteAddr: "192.168.1.7:5000", want: http.StatusOK},
		{name: "remote addr outside", remoteAddr: "10.1.1.1:5000", want: http.StatusForbidden},
		{name: "x-real-ip inside", remoteAddr: "10.1.1.1:5000", headers: map[string]string{"X-Real-IP": "192.168.1.9"}, want: http.StatusOK},
		{name: "x-forwarded-for first hop", remoteAddr: "10.1.1.1:5000", headers: map[string]string{"X-Forwarded-For": "192.168.1.3, 10.0.0.1"}, want: http.StatusOK},
		{name: "garbage forwarded", remoteAddr: "192.168.1.7:5000", headers: map[string]string{"X-Forwarded-For": "nonsense"}, want: http.StatusForbidden},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = testCase.remoteAddr
			for key, value := range testCase.headers {
				req.Header.Set(key, value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, testCase.want, rec.Code)
		})
	}
}

func TestMiddlewareIgnoresForwardingHeadersByDefault(t *testing.T) {
	checker, err := New("127.0.0.2/32")
	require.NoError(t, err)

	handler := checker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	testCases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       int
	}{
		{name: "remote addr inside", remoteAddr: "127.0.0.2:5000", want: http.StatusOK},
		{name: "remote addr outside", remoteAddr: "127.0.0.1:5000", want: http.StatusForbidden},
		{name: "spoofed x-real-ip", remoteAddr: "127.0.0.1:5000", headers: map[string]string{"X-Real-IP": "127.0.0.2"}, want: http.StatusForbidden},
		{name: "spoofed x-forwarded-for", remoteAddr: "127.0.0.1:5000", headers: map[string]string{"X-Forwarded-For": "127.0.0.2"}, want: http.StatusForbidden},
		{name: "header does not lock out a trusted peer", remoteAddr: "127.0.0.2:5000", headers: map[string]string{"X-Real-IP": "8.8.8.8"}, want: http.StatusOK},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = testCase.remoteAddr
			for key, value := range testCase.headers {
				req.Header.Set(key, value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, testCase.want, rec.Code)
		})
	}
}

func TestEmptySubnetAllowsEveryone(t *testing.T) {
	checker, err := New("")
	require.NoError(t, err)
	assert.True(t, checker.Allowed(nil))
}

func TestInvalidSubnet(t *testing.T) {
	_, err := New("300.0.0.0/8")
	assert.Error(t, err)
}
