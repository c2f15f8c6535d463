package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"
)

// maxKeptDumps bounds how many generation dump directories survive a new dump.
const maxKeptDumps = 200

var seq uint64

// Logger writes the exchange for one generation into its own directory.
// A disabled Logger is a no-op, so callers never need to check.
type Logger struct {
	enabled   bool
	dir       string
	startTime time.Time
}

// New 创建新的调试日志记录器
func New(enabled bool, baseDir, key string) *Logger {
	if !enabled {
		return &Logger{enabled: false}
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	name := fmt.Sprintf("%s_%04d_%s", timestamp, atomic.AddUint64(&seq, 1)%10000, key)
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Logger{enabled: false}
	}
	cleanupOldDirs(baseDir, maxKeptDumps)

	return &Logger{
		enabled:   true,
		dir:       dir,
		startTime: time.Now(),
	}
}

// CleanupAllLogs 清理所有调试日志（启动时调用）
func CleanupAllLogs(baseDir string) {
	os.RemoveAll(baseDir)
	os.MkdirAll(baseDir, 0o755)
}

// Dir 返回日志目录
func (l *Logger) Dir() string {
	if !l.enabled {
		return ""
	}
	return l.dir
}

// LogUpstreamRequest records the request body sent to the provider.
func (l *Logger) LogUpstreamRequest(model string, body interface{}) {
	if !l.enabled {
		return
	}
	l.writeJSON("1_upstream_request.json", map[string]interface{}{
		"model": model,
		"body":  body,
	})
}

// LogToolArguments records the raw tool call arguments as returned by the model.
func (l *Logger) LogToolArguments(raw string) {
	if !l.enabled {
		return
	}
	l.writeFile("2_tool_arguments.json", raw)
}

// LogContent records the SVG text after trimming.
func (l *Logger) LogContent(content string) {
	if !l.enabled {
		return
	}
	l.writeFile("3_content.svg", content)
}

// LogSummary 记录请求摘要
func (l *Logger) LogSummary(model string, err error) {
	if !l.enabled {
		return
	}

	summary := map[string]interface{}{
		"model":       model,
		"duration_ms": time.Since(l.startTime).Milliseconds(),
		"ok":          err == nil,
	}
	if err != nil {
		summary["error"] = err.Error()
	}
	l.writeJSON("4_summary.json", summary)
}

func (l *Logger) writeJSON(filename string, data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}
	os.WriteFile(filepath.Join(l.dir, filename), jsonData, 0o644)
}

func (l *Logger) writeFile(filename string, content string) {
	os.WriteFile(filepath.Join(l.dir, filename), []byte(content), 0o644)
}

func cleanupOldDirs(basePath string, maxKeep int) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		return
	}

	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}

	if len(dirs) <= maxKeep {
		return
	}

	// 按名称排序（时间戳格式，越新越大）
	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].Name() > dirs[j].Name()
	})

	for i := maxKeep; i < len(dirs); i++ {
		os.RemoveAll(filepath.Join(basePath, dirs[i].Name()))
	}
}
