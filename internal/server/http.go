package server

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/park285/child-safety-server-go/internal/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 120 * time.Second
	// 분류 요청은 모델 호출을 동기적으로 기다리므로 모델 타임아웃보다 여유를 둔다.
	writeTimeoutSlack = 10 * time.Second
)

// NewHTTPServer 는 HTTP 서버를 생성한다. HTTP2Enabled 이면 h2c 로 감싼다.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port)),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Gemini.Timeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
	}

	if cfg.HTTP.HTTP2Enabled {
		server.Handler = h2c.NewHandler(handler, &http2.Server{IdleTimeout: idleTimeout})
	}

	return server
}
