// Package logger пишет логи с префиксом сервиса через асинхронный буфер,
// чтобы горячие пути (SSE-стримы, отправка сообщений) не ждали записи в stderr.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const asyncBufferSize = 8192

// SlowThreshold — вызовы дольше этого порога пишутся LogDuration и на уровне info.
const SlowThreshold = 100 * time.Millisecond

var (
	prefix   atomic.Value
	logLevel atomic.Int32
	dropped  atomic.Int64
	ch       chan string
	once     sync.Once
)

type level int32

const (
	levelDebug level = iota
	levelInfo
)

func init() {
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// SetLevel переключает уровень: "debug"/"trace" включают отладочные сообщения, остальное — info.
func SetLevel(l string) {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug", "trace":
		logLevel.Store(int32(levelDebug))
	default:
		logLevel.Store(int32(levelInfo))
	}
}

// DebugEnabled сообщает, включён ли уровень debug.
func DebugEnabled() bool {
	return level(logLevel.Load()) == levelDebug
}

func initWorker() {
	ch = make(chan string, asyncBufferSize)
	go func() {
		for msg := range ch {
			log.Print(msg)
		}
	}()
}

func enqueue(msg string) {
	once.Do(initWorker)
	select {
	case ch <- msg:
	default:
		// буфер полон, запись теряется
		dropped.Add(1)
	}
}

// Dropped — сколько записей потеряно из-за переполнения буфера.
func Dropped() int64 { return dropped.Load() }

// SetPrefix задаёт префикс для всех последующих логов (например "api", "push", "chat").
func SetPrefix(p string) {
	prefix.Store(p)
}

func tag() string {
	p, _ := prefix.Load().(string)
	if p == "" {
		return ""
	}
	return "[" + p + "] "
}

// Info пишет в log с префиксом (асинхронно).
func Info(v ...any) {
	enqueue(tag() + fmt.Sprint(v...))
}

// Infof форматирует и пишет с префиксом (асинхронно).
func Infof(format string, v ...any) {
	enqueue(tag() + fmt.Sprintf(format, v...))
}

func Debug(v ...any) {
	if DebugEnabled() {
		enqueue(tag() + "DEBUG: " + fmt.Sprint(v...))
	}
}

func Debugf(format string, v ...any) {
	if DebugEnabled() {
		enqueue(tag() + "DEBUG: " + fmt.Sprintf(format, v...))
	}
}

// Error пишет ошибку с префиксом (асинхронно).
func Error(v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprint(v...))
}

// Errorf форматирует ошибку с префиксом (асинхронно).
func Errorf(format string, v ...any) {
	enqueue(tag() + "ERROR: " + fmt.Sprintf(format, v...))
}

// LogDuration логирует имя функции и время выполнения в миллисекундах.
// На уровне info пишутся только вызовы дольше SlowThreshold, на debug — все.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if DebugEnabled() || elapsed >= SlowThreshold {
		enqueue(fmt.Sprintf("%sfn=%s duration_ms=%d", tag(), fn, elapsed.Milliseconds()))
	}
}

// DeferLogDuration возвращает функцию для defer: defer logger.DeferLogDuration("FetchInbox", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}
