package flagstore

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const defaultValkeyPort = "6379"

type storeConnInfo struct {
	addr     string
	username string
	password string
	selectDB int
	useTLS   bool
}

// parseStoreURL 은 redis(s)://, valkey(s):// URL 또는 host[:port] 주소를 해석한다.
// DB 번호는 경로(/2) 또는 ?db=2 로 지정한다.
func parseStoreURL(raw string) (storeConnInfo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return storeConnInfo{}, errors.New("flag store url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "redis://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return storeConnInfo{}, fmt.Errorf("parse url: %w", err)
	}

	var info storeConnInfo
	switch strings.ToLower(parsed.Scheme) {
	case "redis", "valkey":
	case "rediss", "valkeys":
		info.useTLS = true
	default:
		return storeConnInfo{}, fmt.Errorf("unsupported flag store scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return storeConnInfo{}, errors.New("flag store host missing")
	}
	port := parsed.Port()
	if port == "" {
		port = defaultValkeyPort
	}
	info.addr = net.JoinHostPort(host, port)

	if parsed.User != nil {
		info.username = parsed.User.Username()
		info.password, _ = parsed.User.Password()
	}

	dbValue := strings.Trim(parsed.Path, "/")
	if q := parsed.Query().Get("db"); q != "" {
		dbValue = q
	}
	if dbValue != "" {
		db, err := strconv.Atoi(dbValue)
		if err != nil || db < 0 {
			return storeConnInfo{}, fmt.Errorf("invalid flag store db: %q", dbValue)
		}
		info.selectDB = db
	}
	return info, nil
}
