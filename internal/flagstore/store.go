package flagstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/park285/child-safety-server-go/internal/cache"
	"github.com/park285/child-safety-server-go/internal/config"
)

// ErrStoreDisabled 는 플래그 저장소 비활성 오류다.
var ErrStoreDisabled = errors.New("flag store disabled")

// memoryCapacity 는 메모리 백엔드가 유지하는 최대 카운터 수다.
const memoryCapacity = 50000

type storeBackend int

const (
	storeBackendDisabled storeBackend = iota
	storeBackendMemory
	storeBackendValkey
)

// Levels 는 집계 대상 플래그 단계 순서다.
var Levels = []string{"green", "yellow", "red"}

// Summary 는 아동 한 명의 구간 내 플래그 집계다.
type Summary struct {
	ChildID       string `json:"childId"`
	Green         int64  `json:"green"`
	Yellow        int64  `json:"yellow"`
	Red           int64  `json:"red"`
	WindowMinutes int    `json:"window_minutes"`
}

func (s *Summary) set(level string, count int64) {
	switch level {
	case "green":
		s.Green = count
	case "yellow":
		s.Yellow = count
	case "red":
		s.Red = count
	}
}

// Store 는 아동별 플래그 단계 카운터 저장소다.
// 카운터는 첫 기록 시점부터 window 동안 유지되고 이후 초기화된다. 정책 판단은 하지 않는다.
type Store struct {
	client  valkey.Client
	backend storeBackend
	window  time.Duration
	memory  *cache.TTLCache[string, int64]
}

// NewStore 는 설정에 따라 Valkey, 메모리 또는 비활성 저장소를 생성한다.
func NewStore(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	fc := cfg.FlagStore

	if !fc.Enabled {
		if fc.Required {
			return nil, errors.New("flag store required but disabled")
		}
		return &Store{backend: storeBackendDisabled}, nil
	}
	if fc.WindowMinutes <= 0 {
		return nil, fmt.Errorf("flag store window must be positive: %d", fc.WindowMinutes)
	}

	url := strings.TrimSpace(fc.URL)
	if url == "" || strings.EqualFold(url, "memory") {
		return newMemoryStore(fc.Window()), nil
	}

	conn, err := parseStoreURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse flag store url: %w", err)
	}

	var tlsConfig *tls.Config
	if conn.useTLS {
		host, _, splitErr := net.SplitHostPort(conn.addr)
		if splitErr != nil {
			return nil, fmt.Errorf("parse flag store addr: %w", splitErr)
		}
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		TLSConfig:    tlsConfig,
		Username:     conn.username,
		Password:     conn.password,
		InitAddress:  []string{conn.addr},
		SelectDB:     conn.selectDB,
		DisableCache: fc.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}

	return &Store{
		client:  client,
		backend: storeBackendValkey,
		window:  fc.Window(),
	}, nil
}

func newMemoryStore(window time.Duration) *Store {
	return &Store{
		backend: storeBackendMemory,
		window:  window,
		memory:  cache.NewTTLCache[string, int64](memoryCapacity, window),
	}
}

// IsEnabled 는 저장소 활성화 여부를 반환한다.
func (s *Store) IsEnabled() bool {
	return s != nil && s.backend != storeBackendDisabled
}

// Backend 는 로그용 백엔드 이름을 반환한다.
func (s *Store) Backend() string {
	if s == nil {
		return "disabled"
	}
	switch s.backend {
	case storeBackendValkey:
		return "valkey"
	case storeBackendMemory:
		return "memory"
	default:
		return "disabled"
	}
}

// Close 는 Valkey 연결을 종료한다.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.backend == storeBackendValkey && s.client != nil {
		s.client.Close()
	}
}

func counterKey(childID string, level string) string {
	return fmt.Sprintf("flags:%s:%s", childID, level)
}

func validLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Record 는 아동의 플래그 단계 카운터를 1 증가시키고 새 값을 반환한다.
func (s *Store) Record(ctx context.Context, childID string, level string) (int64, error) {
	if !s.IsEnabled() {
		return 0, ErrStoreDisabled
	}
	if strings.TrimSpace(childID) == "" {
		return 0, errors.New("child id is empty")
	}
	if !validLevel(level) {
		return 0, fmt.Errorf("unknown flag level: %q", level)
	}

	key := counterKey(childID, level)
	if s.backend == storeBackendMemory {
		count, _ := s.memory.Modify(key, func(current int64, _ bool) int64 { return current + 1 })
		return count, nil
	}

	// INCR 과 TTL 을 한 번에 보내고, 만료가 없을 때만 EXPIRE 를 건다.
	results := s.client.DoMulti(ctx,
		s.client.B().Incr().Key(key).Build(),
		s.client.B().Ttl().Key(key).Build(),
	)
	count, err := results[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("incr flag counter: %w", err)
	}
	ttl, err := results[1].AsInt64()
	if err != nil {
		return count, fmt.Errorf("read flag counter ttl: %w", err)
	}
	if ttl < 0 {
		cmd := s.client.B().Expire().Key(key).Seconds(int64(s.window.Seconds())).Build()
		if err := s.client.Do(ctx, cmd).Error(); err != nil {
			return count, fmt.Errorf("expire flag counter: %w", err)
		}
	}
	return count, nil
}

// Summary 는 아동의 단계별 카운터를 조회한다. 기록이 없으면 0 이다.
func (s *Store) Summary(ctx context.Context, childID string) (Summary, error) {
	if !s.IsEnabled() {
		return Summary{}, ErrStoreDisabled
	}
	summary := Summary{ChildID: childID, WindowMinutes: int(s.window / time.Minute)}

	if s.backend == storeBackendMemory {
		for _, level := range Levels {
			count, _ := s.memory.Get(counterKey(childID, level))
			summary.set(level, count)
		}
		return summary, nil
	}

	keys := make([]string, 0, len(Levels))
	for _, level := range Levels {
		keys = append(keys, counterKey(childID, level))
	}
	values, err := s.client.Do(ctx, s.client.B().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return Summary{}, fmt.Errorf("get flag counters: %w", err)
	}
	for i, value := range values {
		if i >= len(Levels) || value.IsNil() {
			continue
		}
		count, err := value.AsInt64()
		if err != nil {
			return Summary{}, fmt.Errorf("parse flag counter %s: %w", Levels[i], err)
		}
		summary.set(Levels[i], count)
	}
	return summary, nil
}

// Ping 은 Valkey 연결을 확인한다.
func (s *Store) Ping(ctx context.Context) error {
	if !s.IsEnabled() {
		return ErrStoreDisabled
	}
	if s.backend == storeBackendMemory {
		return nil
	}
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping valkey: %w", err)
	}
	return nil
}
