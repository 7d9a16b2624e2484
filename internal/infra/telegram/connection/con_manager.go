// Package connection — состояние MTProto-соединения одной сессии.
// Manager предоставляет координационный слой для остального кода сессии:
//   - WaitOnline(ctx) — блокирует до восстановления связи, если клиент офлайн;
//   - MarkConnected/MarkDisconnected — явные переходы между состояниями;
//   - мониторинг с периодическими RPC-вызовами и детекцией сетевых сбоев;
//   - безопасная остановка и «генерационный» канал ожидания для снятия гонок.
//
// Каждая сессия (Tenant) владеет собственным Manager: состояние одной сессии
// никогда не должно влиять на ожидателей другой.
package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"pvz-shift-monitor/internal/infra/logger"

	"github.com/gotd/td/pool"
	"github.com/gotd/td/rpc"
	"github.com/gotd/td/telegram"
)

const (
	// reconnectPingInterval определяет период, с которым выполняются легковесные RPC-вызовы
	// при ожидании восстановления соединения.
	reconnectPingInterval = 10 * time.Second
	// reconnectPingTimeout задает максимальное время ожидания ответа на RPC-вызов.
	reconnectPingTimeout = 5 * time.Second
)

// Manager хранит ссылку на клиент, текущее состояние online/offline и
// «поколенческий» канал ожидания восстановления (waitCh). Когда связь
// теряется, создаётся новый открытый канал и стартует monitorLoop; при
// восстановлении канал закрывается, что неблокирующим образом снимает всех
// ожидателей.
type Manager struct {
	client *telegram.Client // присваивается после успешного логина через SetClient

	connected atomic.Bool

	mu            sync.RWMutex
	waitCh        chan struct{}
	monitorCancel context.CancelFunc
	baseCtx       context.Context
}

// New создаёт менеджер в состоянии online (ожидатели не должны блокироваться
// «на ровном месте» до первого реального обрыва).
func New() *Manager {
	m := &Manager{baseCtx: context.Background()}
	m.connected.Store(true)
	ready := make(chan struct{})
	close(ready)
	m.waitCh = ready
	return m
}

// SetClient привязывает клиента, используемого для проверочных RPC-вызовов
// во время ожидания переподключения.
func (m *Manager) SetClient(client *telegram.Client) {
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
}

// WaitOnline блокирует вызывающую горутину до восстановления соединения или
// отмены контекста.
func (m *Manager) WaitOnline(ctx context.Context) {
	if m == nil || ctx == nil || ctx.Err() != nil {
		return
	}
	if m.connected.Load() {
		return
	}

	callerLocation := "unknown"
	if _, file, line, ok := runtime.Caller(1); ok {
		if wd, err := os.Getwd(); err == nil {
			if rel, relErr := filepath.Rel(wd, file); relErr == nil {
				file = rel
			}
		}
		callerLocation = file + ":" + strconv.Itoa(line)
	}
	logger.Debugf("WaitOnline: blocking caller: %s", callerLocation)

	for {
		ch := m.currentWaitCh()
		select {
		case <-ctx.Done():
			logger.Debugf("WaitOnline: context done before reconnect: %v", ctx.Err())
			return
		case <-ch:
			if ch == m.currentWaitCh() {
				logger.Debug("WaitOnline: connection restored, resuming")
				return
			}
		}
	}
}

// HandleError анализирует ошибку, полученную из RPC-слоя. Если она похожа
// на сетевую и свидетельствует о разрыве соединения, менеджер переводится в
// offline и функция возвращает true.
func (m *Manager) HandleError(err error) bool {
	if !isNetworkError(err) {
		return false
	}
	m.MarkDisconnected()
	return true
}

// MarkConnected переводит состояние в online, останавливает мониторинг и
// закрывает текущий wait-канал, разблокируя всех ожидателей. Идемпотентен.
func (m *Manager) MarkConnected() {
	if m == nil {
		return
	}
	if m.connected.Swap(true) {
		return
	}

	m.mu.Lock()
	if m.monitorCancel != nil {
		m.monitorCancel()
		m.monitorCancel = nil
	}
	ch := m.waitCh
	if ch == nil {
		ch = make(chan struct{})
		m.waitCh = ch
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
	m.mu.Unlock()

	logger.Debug("connection: restored")
}

// MarkDisconnected переводит состояние в offline. Идемпотентен. Создаёт новое
// «поколение» wait-канала и запускает мониторинг восстановления.
func (m *Manager) MarkDisconnected() {
	if m == nil {
		return
	}
	if !m.connected.CompareAndSwap(true, false) {
		return
	}

	m.mu.Lock()
	if m.monitorCancel != nil {
		m.monitorCancel()
		m.monitorCancel = nil
	}
	m.waitCh = make(chan struct{})
	monitorCtx, cancel := context.WithCancel(m.baseCtx)
	m.monitorCancel = cancel
	m.mu.Unlock()

	logger.Debug("connection: lost, waiting for restore")
	go m.monitorLoop(monitorCtx)
}

// Shutdown останавливает мониторинг и закрывает канал ожидания, гарантируя,
// что все заблокированные ожидатели проснутся.
func (m *Manager) Shutdown() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.monitorCancel != nil {
		m.monitorCancel()
		m.monitorCancel = nil
	}
	wait := m.waitCh
	m.waitCh = nil
	m.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		default:
			close(wait)
		}
	}
}

func (m *Manager) currentWaitCh() <-chan struct{} {
	m.mu.RLock()
	ch := m.waitCh
	m.mu.RUnlock()
	if ch == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return ch
}

func (m *Manager) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(reconnectPingInterval)
	defer ticker.Stop()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		attempt++
		start := time.Now()

		m.mu.RLock()
		client := m.client
		m.mu.RUnlock()

		if client == nil {
			logger.Debugf("connection: client is nil, waiting for reconnect (attempt=%d)", attempt)
		} else {
			pingCtx, cancel := context.WithTimeout(ctx, reconnectPingTimeout)
			err := safeRPCClient(pingCtx, client)
			cancel()

			if err == nil {
				logger.Debugf("connection: RPC call ok (attempt=%d, duration=%v)", attempt, time.Since(start))
				m.MarkConnected()
				return
			}

			switch {
			case errors.Is(err, net.ErrClosed), errors.Is(err, pool.ErrConnDead), errors.Is(err, rpc.ErrEngineClosed):
				logger.Debugf("connection: RPC call aborted, connection closed (attempt=%d): %v", attempt, err)
			case !isNetworkError(err):
				logger.Errorf("connection: RPC call failed (attempt=%d): %v", attempt, err)
			default:
				logger.Debugf("connection: RPC call failed (attempt=%d): %v", attempt, err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func safeRPCClient(ctx context.Context, client *telegram.Client) (err error) {
	if client == nil {
		return net.ErrClosed
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Debugf("connection: RPC call panic recovered: %v", r)
			err = net.ErrClosed
		}
	}()
	_, err = client.Self(ctx)
	return err
}

// isNetworkError определяет, сигнализирует ли ошибка о сетевой проблеме/разрыве.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, pool.ErrConnDead) {
		return true
	}
	if errors.Is(err, rpc.ErrEngineClosed) {
		return true
	}
	var retryErr *rpc.RetryLimitReachedErr
	if errors.As(err, &retryErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
